package sim

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Contact reports one agent inside avoidance range of an obstacle during a
// tick. The contact buffer is capacity-bounded; overflow drops entries and
// is counted, never fatal.
type Contact struct {
	Agent    int32
	Obstacle int32
}

// updateHeadings is the force phase for one agent range. Group tables and
// positions are read-only here and each agent writes only its own heading
// slot, so disjoint ranges share nothing but the contact writer, which is
// safe under concurrent appends.
func (s *Simulation) updateHeadings(lo, hi int, dt float64) {
	b := s.cfg.Behavior
	blend := clampFloat(s.cfg.Motion.RotateSpeed*dt, 0, 1)

	positions := s.agents.positions.Reader()
	macroIdx := s.agents.macroIdx.Reader()
	microIdx := s.agents.microIdx.Reader()
	headings := s.agents.headings.ReadWriter()
	macro := s.macroGroups.Reader()
	micro := s.microGroups.Reader()
	goals := s.goals.Slice()
	obstacles := s.obstacles.Slice()
	contacts := s.contacts.Writer()

	for i := lo; i < hi; i++ {
		pos := positions.At(i)
		old := headings.At(i)
		var desired r3.Vec

		if mi := macroIdx.At(i); mi >= 0 {
			g := macro.At(int(mi))
			inv := 1 / float64(g.Count)

			groupHeading := unitOr(r3.Scale(inv, g.HeadingSum), old)
			desired = r3.Add(desired, r3.Scale(b.AlignmentWeight, r3.Sub(groupHeading, old)))

			toCentroid := r3.Sub(r3.Scale(inv, g.PositionSum), pos)
			desired = r3.Add(desired, r3.Scale(b.CohesionWeight, unitOr(toCentroid, r3.Vec{})))

			toGoal := r3.Sub(goals[g.GoalIdx], pos)
			desired = r3.Add(desired, r3.Scale(b.GoalWeight, unitOr(toGoal, r3.Vec{})))

			if g.ObstacleIdx >= 0 {
				obs := obstacles[g.ObstacleIdx]
				away := r3.Sub(pos, obs.pos)
				if r3.Norm(away) < b.ObstacleAvoidDistance {
					awayDir := unitOr(away, worldUp)
					target := r3.Add(obs.pos, r3.Scale(b.ObstacleAvoidDistance, awayDir))
					steer := unitOr(r3.Sub(target, pos), awayDir)
					desired = r3.Add(desired, r3.Scale(b.ObstacleAvoidWeight*obs.weight, steer))
					if !contacts.Append(Contact{Agent: int32(i), Obstacle: obs.id}) {
						s.Metrics.ContactsDropped.Add(1)
					}
				}
			}
		} else {
			// No macro group this tick: hold course, keep only the
			// collision-avoidance terms below.
			desired = old
		}

		if mi := microIdx.At(i); mi >= 0 && b.SeparationDistance > 0 {
			g := micro.At(int(mi))
			if g.Count > 1 {
				fromCentroid := r3.Sub(pos, r3.Scale(1/float64(g.Count), g.PositionSum))
				if d := r3.Norm(fromCentroid); d < b.SeparationDistance {
					falloff := 1 - d/b.SeparationDistance
					push := unitOr(fromCentroid, worldUp)
					desired = r3.Add(desired, r3.Scale(b.SeparationWeight*falloff, push))
				}
			}
		}

		if height := pos.Y - b.GroundLevel; height < b.GroundAvoidDistance {
			deficit := b.GroundAvoidDistance - height
			desired = r3.Add(desired, r3.Scale(b.GroundAvoidWeight*deficit, worldUp))
		}

		next := r3.Add(old, r3.Scale(blend, r3.Sub(unitOr(desired, old), old)))
		headings.Set(i, unitOr(next, old))
	}
}
