package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestCellKey_CellBoundaries(t *testing.T) {
	// GIVEN two positions inside the same 8-unit cell
	a := cellKey(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, 8)
	b := cellKey(r3.Vec{X: 7.9, Y: 7.9, Z: 7.9}, 8)
	assert.Equal(t, a, b, "same cell must share a key")

	// WHEN a position crosses into the next cell
	c := cellKey(r3.Vec{X: 8.1, Y: 0.5, Z: 0.5}, 8)
	assert.NotEqual(t, a, c, "neighboring cells must differ")
}

func TestCellKey_NegativeCoordinatesFloor(t *testing.T) {
	// Cell indices floor, so -0.5 and +0.5 straddle a boundary.
	neg := cellKey(r3.Vec{X: -0.5}, 1)
	pos := cellKey(r3.Vec{X: 0.5}, 1)
	assert.NotEqual(t, neg, pos)

	// And everything in [-1, 0) shares the -1 cell.
	assert.Equal(t, cellKey(r3.Vec{X: -0.1}, 1), cellKey(r3.Vec{X: -0.9}, 1))
}

func TestRebuildGroups_AccumulatesMemberSums(t *testing.T) {
	s := newSimForTest(t, testConfig(3))

	// GIVEN two agents in one macro cell and one far away
	placeAgent(s, 0, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{X: 1})
	placeAgent(s, 1, r3.Vec{X: 2, Y: 2, Z: 2}, r3.Vec{Z: 1})
	placeAgent(s, 2, r3.Vec{X: 100, Y: 100, Z: 100}, r3.Vec{Y: 1})

	// WHEN groups rebuild
	s.rebuildGroups()

	// THEN the shared cell holds both members' sums
	macroIdx := s.agents.macroIdx.Slice()
	require.Equal(t, macroIdx[0], macroIdx[1])
	require.NotEqual(t, macroIdx[0], macroIdx[2])

	g := s.macroGroups.At(int(macroIdx[0]))
	assert.Equal(t, int32(2), g.Count)
	assert.Equal(t, int32(0), g.Leader, "first member leads")
	assert.Equal(t, r3.Vec{X: 1, Y: 0, Z: 1}, g.HeadingSum)
	assert.Equal(t, r3.Vec{X: 3, Y: 3, Z: 3}, g.PositionSum)

	far := s.macroGroups.At(int(macroIdx[2]))
	assert.Equal(t, int32(1), far.Count)
	assert.Equal(t, int32(2), far.Leader)
}

func TestRebuildGroups_RerunFromScratchIsIdentical(t *testing.T) {
	s := newSimForTest(t, testConfig(16))

	s.rebuildGroups()
	firstMacro := append([]MacroGroup(nil), s.macroGroups.Slice()...)
	firstMicro := append([]MicroGroup(nil), s.microGroups.Slice()...)
	firstIdx := append([]int32(nil), s.agents.macroIdx.Slice()...)

	// Rebuilding with unchanged positions reproduces the same tables.
	s.rebuildGroups()
	assert.Equal(t, firstMacro, s.macroGroups.Slice())
	assert.Equal(t, firstMicro, s.microGroups.Slice())
	assert.Equal(t, firstIdx, s.agents.macroIdx.Slice())
}

func TestRebuildGroups_FullTableLeavesAgentsUngrouped(t *testing.T) {
	cfg := testConfig(3)
	cfg.Grouping.MacroTableCapacity = 1
	cfg.Grouping.MicroTableCapacity = 1
	s := newSimForTest(t, cfg)

	// Three agents in three distinct cells, one table slot.
	placeAgent(s, 0, r3.Vec{}, r3.Vec{X: 1})
	placeAgent(s, 1, r3.Vec{X: 50}, r3.Vec{X: 1})
	placeAgent(s, 2, r3.Vec{X: 100}, r3.Vec{X: 1})

	s.rebuildGroups()

	macroIdx := s.agents.macroIdx.Slice()
	assert.Equal(t, int32(0), macroIdx[0])
	assert.Equal(t, int32(-1), macroIdx[1])
	assert.Equal(t, int32(-1), macroIdx[2])
	assert.Equal(t, int64(2), s.Metrics.MacroDropped)
	assert.Equal(t, int64(2), s.Metrics.MicroDropped)

	// The slot that did land is intact.
	assert.Equal(t, int32(1), s.macroGroups.At(0).Count)
}

func TestMacroInsert_LeaderResolvesNearestGoalAndObstacle(t *testing.T) {
	cfg := testConfig(2)
	cfg.Goals = []r3.Vec{{X: -40}, {X: 40}}
	cfg.Obstacles = []Obstacle{
		{Position: r3.Vec{X: -30}, Weight: 1},
		{Position: r3.Vec{X: 30}, Weight: 1},
	}
	s := newSimForTest(t, cfg)

	placeAgent(s, 0, r3.Vec{X: 35}, r3.Vec{X: 1})  // near goal 1, obstacle 1
	placeAgent(s, 1, r3.Vec{X: -35}, r3.Vec{X: 1}) // near goal 0, obstacle 0

	s.rebuildGroups()

	macroIdx := s.agents.macroIdx.Slice()
	right := s.macroGroups.At(int(macroIdx[0]))
	left := s.macroGroups.At(int(macroIdx[1]))
	assert.Equal(t, int32(1), right.GoalIdx)
	assert.Equal(t, int32(1), right.ObstacleIdx)
	assert.Equal(t, int32(0), left.GoalIdx)
	assert.Equal(t, int32(0), left.ObstacleIdx)
}

func TestMacroInsert_NoObstaclesYieldsNoSelection(t *testing.T) {
	s := newSimForTest(t, testConfig(1))
	placeAgent(s, 0, r3.Vec{}, r3.Vec{X: 1})

	s.rebuildGroups()

	g := s.macroGroups.At(int(s.agents.macroIdx.At(0)))
	assert.Equal(t, int32(-1), g.ObstacleIdx)
	assert.Equal(t, int32(0), g.GoalIdx)
}
