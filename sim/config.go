package sim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/flock-sim/flock-sim/sim/slab"
)

// BehaviorConfig groups the per-term flocking weights and distances. A zero
// weight disables its term; distances gate the separation, obstacle, and
// ground terms.
type BehaviorConfig struct {
	AlignmentWeight       float64 `yaml:"alignment_weight"`
	CohesionWeight        float64 `yaml:"cohesion_weight"`
	SeparationWeight      float64 `yaml:"separation_weight"`
	SeparationDistance    float64 `yaml:"separation_distance"` // 0 disables separation
	GoalWeight            float64 `yaml:"goal_weight"`
	ObstacleAvoidWeight   float64 `yaml:"obstacle_avoid_weight"`
	ObstacleAvoidDistance float64 `yaml:"obstacle_avoid_distance"`
	GroundAvoidWeight     float64 `yaml:"ground_avoid_weight"`
	GroundAvoidDistance   float64 `yaml:"ground_avoid_distance"`
	GroundLevel           float64 `yaml:"ground_level"` // world Y of the ground plane
}

// MotionConfig groups the speed envelope and turn rate.
type MotionConfig struct {
	MinSpeed        float64 `yaml:"min_speed"`
	MaxSpeed        float64 `yaml:"max_speed"`
	SpeedMultiplier float64 `yaml:"speed_multiplier"`
	RotateSpeed     float64 `yaml:"rotate_speed"` // heading blend rate per second
}

// GroupingConfig groups the spatial partition parameters. A zero table
// capacity derives the default from the population (macro: population/8
// capped at 128, micro: population/4 capped at 256).
type GroupingConfig struct {
	MacroCellSize      float64 `yaml:"macro_cell_size"`
	MicroCellSize      float64 `yaml:"micro_cell_size"`
	MacroTableCapacity int     `yaml:"macro_table_capacity"`
	MicroTableCapacity int     `yaml:"micro_table_capacity"`
}

// SpawnConfig groups initial agent placement: positions are drawn inside a
// sphere of Radius around the first goal, scales uniformly from
// [MinScale, MaxScale].
type SpawnConfig struct {
	Radius   float64 `yaml:"radius"`
	MinScale float64 `yaml:"min_scale"`
	MaxScale float64 `yaml:"max_scale"`
}

// Obstacle is a point agents steer away from. Weight scales the avoidance
// term per obstacle.
type Obstacle struct {
	Position r3.Vec  `yaml:"position"`
	Weight   float64 `yaml:"weight"`
}

// Config is the root simulation configuration.
type Config struct {
	Population int   `yaml:"population"`
	Workers    int   `yaml:"workers"` // 0 = GOMAXPROCS
	Seed       int64 `yaml:"seed"`

	Behavior BehaviorConfig `yaml:"behavior"`
	Motion   MotionConfig   `yaml:"motion"`
	Grouping GroupingConfig `yaml:"grouping"`
	Spawn    SpawnConfig    `yaml:"spawn"`

	Goals     []r3.Vec   `yaml:"goals"`
	Obstacles []Obstacle `yaml:"obstacles"`

	Allocator slab.Config `yaml:"allocator"`
}

// DefaultConfig returns a runnable configuration: a mid-sized flock seeking
// a single goal at the origin over a ground plane at Y = 0.
func DefaultConfig() Config {
	return Config{
		Population: 512,
		Workers:    0,
		Seed:       1,
		Behavior: BehaviorConfig{
			AlignmentWeight:       1.0,
			CohesionWeight:        1.0,
			SeparationWeight:      1.5,
			SeparationDistance:    1.2,
			GoalWeight:            1.0,
			ObstacleAvoidWeight:   3.0,
			ObstacleAvoidDistance: 6.0,
			GroundAvoidWeight:     2.0,
			GroundAvoidDistance:   2.0,
			GroundLevel:           0.0,
		},
		Motion: MotionConfig{
			MinSpeed:        2.0,
			MaxSpeed:        6.0,
			SpeedMultiplier: 1.0,
			RotateSpeed:     2.5,
		},
		Grouping: GroupingConfig{
			MacroCellSize: 8.0,
			MicroCellSize: 1.0,
		},
		Spawn: SpawnConfig{
			Radius:   16.0,
			MinScale: 0.8,
			MaxScale: 1.2,
		},
		Goals:     []r3.Vec{{X: 0, Y: 12, Z: 0}},
		Allocator: slab.DefaultConfig(),
	}
}

// Validate checks the configuration and returns an error describing the
// first problem found. A simulation never starts from an invalid Config.
func (c Config) Validate() error {
	if c.Population <= 0 {
		return fmt.Errorf("Population must be > 0, got %d", c.Population)
	}
	if c.Workers < 0 {
		return fmt.Errorf("Workers must be >= 0, got %d", c.Workers)
	}
	if len(c.Goals) == 0 {
		return fmt.Errorf("at least one goal is required")
	}
	if err := c.Behavior.validate(); err != nil {
		return err
	}
	if err := c.Motion.validate(); err != nil {
		return err
	}
	if err := c.Grouping.validate(); err != nil {
		return err
	}
	if err := c.Spawn.validate(); err != nil {
		return err
	}
	for i, o := range c.Obstacles {
		if o.Weight < 0 {
			return fmt.Errorf("Obstacles[%d].Weight must be >= 0, got %v", i, o.Weight)
		}
	}
	if err := c.Allocator.Validate(); err != nil {
		return fmt.Errorf("Allocator: %w", err)
	}
	return nil
}

func (c BehaviorConfig) validate() error {
	weights := []struct {
		name string
		v    float64
	}{
		{"AlignmentWeight", c.AlignmentWeight},
		{"CohesionWeight", c.CohesionWeight},
		{"SeparationWeight", c.SeparationWeight},
		{"GoalWeight", c.GoalWeight},
		{"ObstacleAvoidWeight", c.ObstacleAvoidWeight},
		{"GroundAvoidWeight", c.GroundAvoidWeight},
	}
	for _, w := range weights {
		if w.v < 0 {
			return fmt.Errorf("Behavior.%s must be >= 0, got %v", w.name, w.v)
		}
	}
	if c.SeparationDistance < 0 {
		return fmt.Errorf("Behavior.SeparationDistance must be >= 0, got %v", c.SeparationDistance)
	}
	if c.ObstacleAvoidDistance < 0 {
		return fmt.Errorf("Behavior.ObstacleAvoidDistance must be >= 0, got %v", c.ObstacleAvoidDistance)
	}
	if c.GroundAvoidDistance < 0 {
		return fmt.Errorf("Behavior.GroundAvoidDistance must be >= 0, got %v", c.GroundAvoidDistance)
	}
	return nil
}

func (c MotionConfig) validate() error {
	if c.MinSpeed <= 0 {
		return fmt.Errorf("Motion.MinSpeed must be > 0, got %v", c.MinSpeed)
	}
	if c.MaxSpeed < c.MinSpeed {
		return fmt.Errorf("Motion.MaxSpeed must be >= MinSpeed (%v), got %v", c.MinSpeed, c.MaxSpeed)
	}
	if c.SpeedMultiplier <= 0 {
		return fmt.Errorf("Motion.SpeedMultiplier must be > 0, got %v", c.SpeedMultiplier)
	}
	if c.RotateSpeed <= 0 {
		return fmt.Errorf("Motion.RotateSpeed must be > 0, got %v", c.RotateSpeed)
	}
	return nil
}

func (c GroupingConfig) validate() error {
	if c.MacroCellSize <= 0 {
		return fmt.Errorf("Grouping.MacroCellSize must be > 0, got %v", c.MacroCellSize)
	}
	if c.MicroCellSize <= 0 {
		return fmt.Errorf("Grouping.MicroCellSize must be > 0, got %v", c.MicroCellSize)
	}
	if c.MacroTableCapacity < 0 {
		return fmt.Errorf("Grouping.MacroTableCapacity must be >= 0, got %d", c.MacroTableCapacity)
	}
	if c.MicroTableCapacity < 0 {
		return fmt.Errorf("Grouping.MicroTableCapacity must be >= 0, got %d", c.MicroTableCapacity)
	}
	return nil
}

func (c SpawnConfig) validate() error {
	if c.Radius <= 0 {
		return fmt.Errorf("Spawn.Radius must be > 0, got %v", c.Radius)
	}
	if c.MinScale <= 0 {
		return fmt.Errorf("Spawn.MinScale must be > 0, got %v", c.MinScale)
	}
	if c.MaxScale < c.MinScale {
		return fmt.Errorf("Spawn.MaxScale must be >= MinScale (%v), got %v", c.MinScale, c.MaxScale)
	}
	return nil
}

// macroCapacity resolves the macro group-table capacity for a population.
func (c GroupingConfig) macroCapacity(population int) int {
	if c.MacroTableCapacity > 0 {
		return c.MacroTableCapacity
	}
	return clampInt(population/8, 1, 128)
}

// microCapacity resolves the micro group-table capacity for a population.
func (c GroupingConfig) microCapacity(population int) int {
	if c.MicroTableCapacity > 0 {
		return c.MicroTableCapacity
	}
	return clampInt(population/4, 1, 256)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
