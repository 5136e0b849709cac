package sim

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/flock-sim/flock-sim/sim/buf"
	"github.com/flock-sim/flock-sim/sim/slab"
)

// agentData holds per-agent state in structure-of-arrays form. Every field
// is a slab-backed buffer of population length, indexed by agent.
type agentData struct {
	positions  *buf.Buffer[r3.Vec]
	headings   *buf.Buffer[r3.Vec]
	velocities *buf.Buffer[r3.Vec]
	scales     *buf.Buffer[float64]
	cruise     *buf.Buffer[float64]
	macroIdx   *buf.Buffer[int32]
	microIdx   *buf.Buffer[int32]
}

func newAgentData(alloc *slab.Allocator, population int) agentData {
	return agentData{
		positions:  buf.NewBuffer[r3.Vec](alloc, population),
		headings:   buf.NewBuffer[r3.Vec](alloc, population),
		velocities: buf.NewBuffer[r3.Vec](alloc, population),
		scales:     buf.NewBuffer[float64](alloc, population),
		cruise:     buf.NewBuffer[float64](alloc, population),
		macroIdx:   buf.NewBuffer[int32](alloc, population),
		microIdx:   buf.NewBuffer[int32](alloc, population),
	}
}

// spawn seeds the population inside a sphere around the first goal point.
// Each attribute draws from its own subsystem stream, so the layout of one
// attribute never perturbs another across config changes.
func (ad *agentData) spawn(cfg Config, rng *PartitionedRNG) {
	spawnRNG := rng.ForSubsystem(SubsystemSpawn)
	headingRNG := rng.ForSubsystem(SubsystemHeading)
	scaleRNG := rng.ForSubsystem(SubsystemScale)
	speedRNG := rng.ForSubsystem(SubsystemSpeed)

	anchor := cfg.Goals[0]
	for i := 0; i < cfg.Population; i++ {
		// Cube-root radius draw keeps density uniform over the sphere volume.
		radius := cfg.Spawn.Radius * math.Cbrt(spawnRNG.Float64())
		pos := r3.Add(anchor, r3.Scale(radius, randomUnit(spawnRNG)))
		heading := randomUnit(headingRNG)
		scale := lerp(cfg.Spawn.MinScale, cfg.Spawn.MaxScale, scaleRNG.Float64())
		speed := lerp(cfg.Motion.MinSpeed, cfg.Motion.MaxSpeed, speedRNG.Float64())

		mustAppend(ad.positions, pos)
		mustAppend(ad.headings, heading)
		mustAppend(ad.velocities, r3.Scale(speed, heading))
		mustAppend(ad.scales, scale)
		mustAppend(ad.cruise, speed)
		mustAppend(ad.macroIdx, -1)
		mustAppend(ad.microIdx, -1)
	}
}

func (ad *agentData) free() {
	ad.positions.Free()
	ad.headings.Free()
	ad.velocities.Free()
	ad.scales.Free()
	ad.cruise.Free()
	ad.macroIdx.Free()
	ad.microIdx.Free()
}

// randomUnit draws a uniformly distributed unit vector.
func randomUnit(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		if n := r3.Norm(v); n > 1e-9 {
			return r3.Scale(1/n, v)
		}
	}
}

func lerp(lo, hi, t float64) float64 {
	return lo + (hi-lo)*t
}

// mustAppend is for buffers sized to hold exactly what will be appended;
// overflow here is a programming error, not a recoverable condition.
func mustAppend[T any](b *buf.Buffer[T], v T) {
	if err := b.Append(v); err != nil {
		panic(fmt.Sprintf("sim: agent buffer overflow: %v", err))
	}
}
