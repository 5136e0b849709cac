package sim

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// testConfig returns a small, fast configuration for behavior tests.
// Separation is off by default so single-force tests start from a clean
// slate; tests switch terms on as needed.
func testConfig(population int) Config {
	cfg := DefaultConfig()
	cfg.Population = population
	cfg.Workers = 1
	cfg.Seed = 42
	cfg.Behavior.SeparationDistance = 0
	cfg.Behavior.ObstacleAvoidWeight = 0
	cfg.Behavior.GroundAvoidWeight = 0
	// Spawn well above ground so the ground term stays quiet unless a test
	// reaches for it.
	cfg.Behavior.GroundLevel = -1000
	cfg.Spawn.Radius = 4
	return cfg
}

// newSimForTest builds a simulation and tears it down with the test.
func newSimForTest(t *testing.T, cfg Config) *Simulation {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Teardown)
	return s
}

// placeAgent pins one agent's position and heading, overriding spawn.
func placeAgent(s *Simulation, i int, pos, heading r3.Vec) {
	s.agents.positions.Set(i, pos)
	s.agents.headings.Set(i, unitOr(heading, r3.Vec{Z: 1}))
}
