package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/flock-sim/flock-sim/sim/internal/testutil"
)

func TestIntegrateRange_AdvancesAlongHeading(t *testing.T) {
	s := newSimForTest(t, testConfig(1))

	placeAgent(s, 0, r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 1})
	s.agents.cruise.Set(0, 4)
	s.agents.scales.Set(0, 1)

	out := s.back.ReadWriter()
	s.integrateRange(0, 1, 0.5, out)

	// speed 4 for half a second along +X
	want := r3.Vec{X: 3, Y: 2, Z: 3}
	assert.Equal(t, want, s.agents.positions.At(0))
	assert.Equal(t, r3.Vec{X: 4}, s.agents.velocities.At(0))
	assert.Equal(t, want, out.At(0).Position())
	testutil.AssertVecEqual(t, "forward", r3.Vec{X: 1}, out.At(0).Forward(), 1e-12)
}

func TestIntegrateRange_SpeedStaysInsideEnvelope(t *testing.T) {
	tests := []struct {
		name       string
		multiplier float64
	}{
		{"multiplier pushes past max", 100},
		{"multiplier pulls below min", 0.01},
		{"neutral multiplier", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(32)
			cfg.Motion.SpeedMultiplier = tt.multiplier
			s := newSimForTest(t, cfg)

			out := s.back.ReadWriter()
			s.integrateRange(0, 32, 0.1, out)

			for i := 0; i < 32; i++ {
				speed := r3.Norm(s.agents.velocities.At(i))
				assert.GreaterOrEqual(t, speed, cfg.Motion.MinSpeed-1e-9)
				assert.LessOrEqual(t, speed, cfg.Motion.MaxSpeed+1e-9)
			}
		})
	}
}

func TestIntegrateRange_TransformCarriesAgentScale(t *testing.T) {
	s := newSimForTest(t, testConfig(1))

	placeAgent(s, 0, r3.Vec{}, r3.Vec{Z: 1})
	s.agents.scales.Set(0, 1.5)

	out := s.back.ReadWriter()
	s.integrateRange(0, 1, 0.01, out)

	testutil.AssertFloat64Equal(t, "scale", 1.5, out.At(0).Scale(), 1e-12)
}
