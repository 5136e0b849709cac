package sim

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/flock-sim/flock-sim/sim/buf"
	"github.com/flock-sim/flock-sim/sim/slab"
)

// ErrTornDown is returned by operations on a simulation after Teardown.
var ErrTornDown = errors.New("sim: simulation already torn down")

// obstacleRec is the internal obstacle record. The id survives SwapRemove
// compaction, so handles returned by AddObstacle stay stable.
type obstacleRec struct {
	pos    r3.Vec
	weight float64
	id     int32
}

// Simulation owns the agent population, every buffer behind it, and the
// per-tick pipeline. Construct with New, advance with Step, release with
// Teardown. A single mutex serializes Step, Teardown, and the between-tick
// mutators, so an in-flight tick always completes before anything else
// observes or changes simulation state.
type Simulation struct {
	cfg   Config
	alloc *slab.Allocator
	rng   *PartitionedRNG

	agents      agentData
	macroGroups *buf.Buffer[MacroGroup]
	microGroups *buf.Buffer[MicroGroup]
	goals       buf.List[r3.Vec]
	obstacles   buf.List[obstacleRec]
	contacts    *buf.Buffer[Contact]

	// front holds the published transforms, back the ones being built.
	// The swap at the end of Step is the only writer of these pointers.
	front *buf.Buffer[Transform]
	back  *buf.Buffer[Transform]

	workers        int
	nextObstacleID int32

	Metrics *Metrics

	mu    sync.Mutex // serializes Step, Teardown, and mutators
	pubMu sync.Mutex // guards the front/back pointer swap
	dead  bool
}

// New validates cfg, builds the backing allocator, and spawns the
// population. The returned simulation is ready to Step, and its transform
// buffer already holds the spawn-time matrices.
func New(cfg Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sim config: %w", err)
	}
	alloc, err := slab.New(cfg.Allocator)
	if err != nil {
		return nil, fmt.Errorf("sim allocator: %w", err)
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	s := &Simulation{
		cfg:         cfg,
		alloc:       alloc,
		rng:         NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		agents:      newAgentData(alloc, cfg.Population),
		macroGroups: buf.NewBuffer[MacroGroup](alloc, cfg.Grouping.macroCapacity(cfg.Population)),
		microGroups: buf.NewBuffer[MicroGroup](alloc, cfg.Grouping.microCapacity(cfg.Population)),
		goals:       buf.NewList[r3.Vec](alloc, len(cfg.Goals)),
		obstacles:   buf.NewList[obstacleRec](alloc, max(len(cfg.Obstacles), 4)),
		contacts:    buf.NewBuffer[Contact](alloc, cfg.Population),
		front:       buf.NewBuffer[Transform](alloc, cfg.Population),
		back:        buf.NewBuffer[Transform](alloc, cfg.Population),
		workers:     workers,
		Metrics:     NewMetrics(),
	}
	for _, g := range cfg.Goals {
		s.goals.Append(g)
	}
	for _, o := range cfg.Obstacles {
		s.obstacles.Append(obstacleRec{pos: o.Position, weight: o.Weight, id: s.nextObstacleID})
		s.nextObstacleID++
	}

	s.agents.spawn(cfg, s.rng)
	s.publishInitialTransforms()

	logrus.Infof("sim: spawned %d agents (seed %d, %d workers, %d goals, %d obstacles)",
		cfg.Population, cfg.Seed, workers, s.goals.Len(), s.obstacles.Len())
	return s, nil
}

// publishInitialTransforms fills both transform buffers from the spawn
// state so Transforms is meaningful before the first Step.
func (s *Simulation) publishInitialTransforms() {
	positions := s.agents.positions.Slice()
	headings := s.agents.headings.Slice()
	scales := s.agents.scales.Slice()
	for i := range positions {
		t := composeTransform(positions[i], headings[i], scales[i])
		mustAppend(s.front, t)
		mustAppend(s.back, t)
	}
}

// Step advances the flock by dt seconds: sequential regrouping, parallel
// force blending, parallel integration, then publication of the fresh
// transform buffer.
func (s *Simulation) Step(dt float64) error {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("Step dt must be a positive finite number, got %v", dt)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return ErrTornDown
	}

	start := time.Now()
	droppedBefore := s.Metrics.MacroDropped + s.Metrics.MicroDropped
	s.rebuildGroups()
	if droppedBefore == 0 && s.Metrics.MacroDropped+s.Metrics.MicroDropped > 0 {
		// Warn once per run; the per-tick counts land in the final report.
		logrus.Warnf("sim: group tables full, some agents hold course this tick (macro cap %d, micro cap %d)",
			s.macroGroups.Cap(), s.microGroups.Cap())
	}
	groupingDone := time.Now()

	s.contacts.Reset()
	s.parallel(func(lo, hi int) { s.updateHeadings(lo, hi, dt) })
	forcesDone := time.Now()

	out := s.back.ReadWriter()
	s.parallel(func(lo, hi int) { s.integrateRange(lo, hi, dt, out) })
	integrateDone := time.Now()

	s.pubMu.Lock()
	s.front, s.back = s.back, s.front
	s.pubMu.Unlock()

	s.Metrics.observeTick(
		groupingDone.Sub(start),
		forcesDone.Sub(groupingDone),
		integrateDone.Sub(forcesDone),
		s.macroGroups.Len(), s.microGroups.Len(), s.contacts.Len())
	return nil
}

// parallel fans fn out over disjoint agent index ranges and waits for all
// of them to finish.
func (s *Simulation) parallel(fn func(lo, hi int)) {
	n := s.cfg.Population
	if s.workers == 1 {
		fn(0, n)
		return
	}
	g := new(errgroup.Group)
	chunk := (n + s.workers - 1) / s.workers
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	// Range workers never fail; Wait is only the join point.
	_ = g.Wait()
}

// Transforms returns the most recently published transform buffer, one
// column-major world matrix per agent in spawn order. The slice is valid
// until the next Step publishes a fresh buffer.
func (s *Simulation) Transforms() []Transform {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	return s.front.Slice()
}

// Contacts returns the obstacle contacts recorded by the last tick, in no
// particular order. Valid until the next Step.
func (s *Simulation) Contacts() []Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts.Slice()
}

// SetGoal repositions the goal at index i. Takes effect next tick.
func (s *Simulation) SetGoal(i int, pos r3.Vec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return ErrTornDown
	}
	if i < 0 || i >= s.goals.Len() {
		return fmt.Errorf("goal index %d out of range [0, %d)", i, s.goals.Len())
	}
	s.goals.Set(i, pos)
	return nil
}

// Goals returns a snapshot of the current goal points.
func (s *Simulation) Goals() []r3.Vec {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]r3.Vec, s.goals.Len())
	copy(out, s.goals.Slice())
	return out
}

// AddObstacle registers an avoidance sphere and returns a handle for
// RemoveObstacle. Takes effect next tick.
func (s *Simulation) AddObstacle(o Obstacle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return 0, ErrTornDown
	}
	if o.Weight < 0 {
		return 0, fmt.Errorf("obstacle Weight must be >= 0, got %v", o.Weight)
	}
	id := s.nextObstacleID
	s.nextObstacleID++
	s.obstacles.Append(obstacleRec{pos: o.Position, weight: o.Weight, id: id})
	return int(id), nil
}

// RemoveObstacle drops the obstacle returned by an earlier AddObstacle.
func (s *Simulation) RemoveObstacle(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return ErrTornDown
	}
	idx := s.obstacles.Index(func(r obstacleRec) bool { return int(r.id) == id })
	if idx < 0 {
		return fmt.Errorf("obstacle %d not found", id)
	}
	s.obstacles.SwapRemove(idx)
	return nil
}

// Obstacles returns a snapshot of the live obstacles.
func (s *Simulation) Obstacles() []Obstacle {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.obstacles.Slice()
	out := make([]Obstacle, len(recs))
	for i, r := range recs {
		out[i] = Obstacle{Position: r.pos, Weight: r.weight}
	}
	return out
}

// AllocatorStats snapshots the backing allocator.
func (s *Simulation) AllocatorStats() slab.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc.Stats()
}

// Teardown waits for any in-flight tick, releases every buffer back to the
// allocator, and retires the simulation. After it returns the allocator is
// expected to be at its baseline; anything still outstanding is a leak and
// is logged. Teardown is idempotent.
func (s *Simulation) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return
	}

	s.agents.free()
	s.macroGroups.Free()
	s.microGroups.Free()
	s.goals.Free()
	s.obstacles.Free()
	s.contacts.Free()
	s.front.Free()
	s.back.Free()
	s.dead = true

	if st := s.alloc.Stats(); st.LiveSlices != 0 || st.HeaderSlotsInUse != 0 {
		logrus.Warnf("sim: teardown leaked %d slices (%d bytes) and %d header slots",
			st.LiveSlices, st.LiveBytes, st.HeaderSlotsInUse)
	} else {
		logrus.Debugf("sim: teardown complete, allocator at baseline")
	}
}
