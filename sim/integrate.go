package sim

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/flock-sim/flock-sim/sim/buf"
)

// integrateRange advances one agent range: velocity from the blended
// heading and per-agent cruise speed, then position, then the world matrix
// into the unpublished transform buffer.
func (s *Simulation) integrateRange(lo, hi int, dt float64, out buf.ReadWriter[Transform]) {
	m := s.cfg.Motion
	positions := s.agents.positions.ReadWriter()
	headings := s.agents.headings.Reader()
	velocities := s.agents.velocities.ReadWriter()
	scales := s.agents.scales.Reader()
	cruise := s.agents.cruise.Reader()

	for i := lo; i < hi; i++ {
		heading := headings.At(i)
		speed := clampFloat(cruise.At(i)*m.SpeedMultiplier, m.MinSpeed, m.MaxSpeed)
		vel := r3.Scale(speed, heading)
		velocities.Set(i, vel)

		pos := r3.Add(positions.At(i), r3.Scale(dt, vel))
		positions.Set(i, pos)

		out.Set(i, composeTransform(pos, heading, scales.At(i)))
	}
}
