package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Spatial hash primes, one per axis.
const (
	hashPrimeX = 73856093
	hashPrimeY = 19349663
	hashPrimeZ = 83492791
)

// MacroGroup is one coarse spatial bucket, rebuilt every tick. It carries
// the running sums behind alignment and cohesion plus the goal and
// obstacle the bucket's leader resolved for everyone in it.
type MacroGroup struct {
	Key         uint32
	Count       int32
	Leader      int32
	GoalIdx     int32
	ObstacleIdx int32
	HeadingSum  r3.Vec
	PositionSum r3.Vec
}

// MicroGroup is one fine spatial bucket, rebuilt every tick, feeding the
// separation force.
type MicroGroup struct {
	Key         uint32
	Count       int32
	PositionSum r3.Vec
}

// cellKey hashes the lattice cell containing p into a 32-bit key. Distinct
// cells may collide; colliding cells share a group by design of the hash
// table, which stores keys only.
func cellKey(p r3.Vec, cellSize float64) uint32 {
	x := uint32(int32(math.Floor(p.X / cellSize)))
	y := uint32(int32(math.Floor(p.Y / cellSize)))
	z := uint32(int32(math.Floor(p.Z / cellSize)))
	return x*hashPrimeX ^ y*hashPrimeY ^ z*hashPrimeZ
}

// rebuildGroups runs the sequential grouping phase. Both tables are
// cleared and repopulated, and every agent leaves with a group index per
// partition, or -1 when its table had no room.
func (s *Simulation) rebuildGroups() {
	s.macroGroups.Reset()
	s.microGroups.Reset()

	positions := s.agents.positions.Slice()
	headings := s.agents.headings.Slice()
	macroIdx := s.agents.macroIdx.Slice()
	microIdx := s.agents.microIdx.Slice()

	for i := range positions {
		macroIdx[i] = s.macroInsert(int32(i), positions[i], headings[i])
		microIdx[i] = s.microInsert(positions[i])
	}
}

// macroInsert folds one agent into its macro bucket, creating the bucket
// with the agent as leader when the key is new. The first member resolves
// the nearest goal and obstacle once for the whole bucket.
func (s *Simulation) macroInsert(agent int32, pos, heading r3.Vec) int32 {
	key := cellKey(pos, s.cfg.Grouping.MacroCellSize)
	groups := s.macroGroups.Slice()
	for j := range groups {
		if groups[j].Key == key {
			g := &groups[j]
			g.Count++
			g.HeadingSum = r3.Add(g.HeadingSum, heading)
			g.PositionSum = r3.Add(g.PositionSum, pos)
			return int32(j)
		}
	}
	rec := MacroGroup{
		Key:         key,
		Count:       1,
		Leader:      agent,
		GoalIdx:     s.nearestGoal(pos),
		ObstacleIdx: s.nearestObstacle(pos),
		HeadingSum:  heading,
		PositionSum: pos,
	}
	if err := s.macroGroups.Append(rec); err != nil {
		s.Metrics.MacroDropped++
		return -1
	}
	return int32(s.macroGroups.Len() - 1)
}

func (s *Simulation) microInsert(pos r3.Vec) int32 {
	key := cellKey(pos, s.cfg.Grouping.MicroCellSize)
	groups := s.microGroups.Slice()
	for j := range groups {
		if groups[j].Key == key {
			g := &groups[j]
			g.Count++
			g.PositionSum = r3.Add(g.PositionSum, pos)
			return int32(j)
		}
	}
	rec := MicroGroup{Key: key, Count: 1, PositionSum: pos}
	if err := s.microGroups.Append(rec); err != nil {
		s.Metrics.MicroDropped++
		return -1
	}
	return int32(s.microGroups.Len() - 1)
}

// nearestGoal picks the goal closest to pos. The goal list is never empty.
func (s *Simulation) nearestGoal(pos r3.Vec) int32 {
	goals := s.goals.Slice()
	best := int32(0)
	bestDist := math.Inf(1)
	for j := range goals {
		if d := r3.Norm2(r3.Sub(goals[j], pos)); d < bestDist {
			bestDist = d
			best = int32(j)
		}
	}
	return best
}

// nearestObstacle picks the obstacle closest to pos, or -1 when none are
// registered.
func (s *Simulation) nearestObstacle(pos r3.Vec) int32 {
	obstacles := s.obstacles.Slice()
	best := int32(-1)
	bestDist := math.Inf(1)
	for j := range obstacles {
		if d := r3.Norm2(r3.Sub(obstacles[j].pos, pos)); d < bestDist {
			bestDist = d
			best = int32(j)
		}
	}
	return best
}
