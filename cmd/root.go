package cmd

import (
	"os"
	"time"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	sim "github.com/flock-sim/flock-sim/sim"
)

var (
	// CLI flags for the run loop
	scenarioPath string  // Path to a scenario YAML, empty = built-in defaults
	ticks        int     // Number of ticks to simulate
	dt           float64 // Seconds of simulated time per tick
	logLevel     string  // Log verbosity level
	metricsOut   string  // Path for the JSON run summary, empty = skip
	profileMode  string  // Profiler to attach (cpu, mem, goroutine), empty = none

	// CLI flag overrides for the scenario
	population int   // Number of agents
	seed       int64 // Master seed for all spawn-time draws
	workers    int   // Goroutines per parallel phase, 0 = GOMAXPROCS
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "flock-sim",
	Short: "Parallel agent flocking simulation engine",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the flocking simulation",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if profileMode != "" {
			switch profileMode {
			case "cpu":
				defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
			case "mem":
				defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
			case "goroutine":
				defer profile.Start(profile.GoroutineProfile, profile.ProfilePath(".")).Stop()
			default:
				logrus.Fatalf("Unknown profile mode: %s (want cpu, mem, or goroutine)", profileMode)
			}
		}

		cfg := loadScenarioOrDefaults(scenarioPath)
		applyOverrides(cmd, &cfg)

		if ticks <= 0 {
			logrus.Fatalf("--ticks must be > 0, got %d", ticks)
		}
		if dt <= 0 {
			logrus.Fatalf("--dt must be > 0, got %v", dt)
		}

		logrus.Infof("Starting simulation: %d agents, %d ticks of %.3fs, seed=%d",
			cfg.Population, ticks, dt, cfg.Seed)

		s, err := sim.New(cfg)
		if err != nil {
			logrus.Fatalf("Failed to initialize simulation: %v", err)
		}
		defer s.Teardown()

		startTime := time.Now()
		for i := 0; i < ticks; i++ {
			if err := s.Step(dt); err != nil {
				logrus.Fatalf("Tick %d failed: %v", i, err)
			}
		}
		elapsed := time.Since(startTime)

		s.Metrics.Print(s.AllocatorStats())
		if metricsOut != "" {
			if err := s.Metrics.SaveResults(metricsOut, s.AllocatorStats()); err != nil {
				logrus.Fatalf("Failed to save run summary: %v", err)
			}
		}

		// Digest of the final frame so runs with the same scenario and seed
		// can be compared at a glance.
		transforms := s.Transforms()
		var centroid r3.Vec
		for _, tr := range transforms {
			centroid = r3.Add(centroid, tr.Position())
		}
		if len(transforms) > 0 {
			centroid = r3.Scale(1/float64(len(transforms)), centroid)
		}
		logrus.Infof("Final frame: %d transforms, flock centroid (%.2f, %.2f, %.2f)",
			len(transforms), centroid.X, centroid.Y, centroid.Z)

		logrus.Infof("Simulated %.1fs of flock time in %v (%.0f ticks/s)",
			float64(ticks)*dt, elapsed, float64(ticks)/elapsed.Seconds())
	},
}

// validateCmd checks a scenario file without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a scenario file",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if scenarioPath == "" {
			logrus.Fatalf("--scenario is required")
		}
		cfg, err := LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("Scenario rejected: %v", err)
		}
		logrus.Infof("Scenario OK: %d agents, %d goals, %d obstacles",
			cfg.Population, len(cfg.Goals), len(cfg.Obstacles))
	},
}

// loadScenarioOrDefaults resolves the run configuration.
func loadScenarioOrDefaults(path string) sim.Config {
	if path == "" {
		return sim.DefaultConfig()
	}
	cfg, err := LoadScenario(path)
	if err != nil {
		logrus.Fatalf("Failed to load scenario: %v", err)
	}
	return cfg
}

// applyOverrides folds explicitly-set flags into the scenario config.
// Flags left at their defaults never clobber scenario values.
func applyOverrides(cmd *cobra.Command, cfg *sim.Config) {
	if cmd.Flags().Changed("population") {
		cfg.Population = population
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to a scenario YAML file (empty = built-in defaults)")
	runCmd.Flags().IntVar(&ticks, "ticks", 1000, "Number of ticks to simulate")
	runCmd.Flags().Float64Var(&dt, "dt", 0.016, "Simulated seconds per tick")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write a JSON run summary to this path")
	runCmd.Flags().StringVar(&profileMode, "profile", "", "Attach a profiler (cpu, mem, goroutine)")

	// Scenario overrides
	runCmd.Flags().IntVar(&population, "population", 512, "Number of agents")
	runCmd.Flags().Int64Var(&seed, "seed", 1, "Master seed for spawn-time draws")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Worker goroutines per parallel phase (0 = GOMAXPROCS)")

	validateCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to a scenario YAML file")
	validateCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Attach subcommands to `root`
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
