package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	sim "github.com/flock-sim/flock-sim/sim"
)

// LoadScenario reads a scenario YAML into a validated simulation config.
// Fields omitted by the file keep their built-in defaults, so a scenario
// only states what it changes.
func LoadScenario(path string) (sim.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sim.Config{}, fmt.Errorf("read scenario: %w", err)
	}

	// Parse YAML with strict field checking so typos cause errors instead
	// of silently-ignored settings.
	cfg := sim.DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return sim.Config{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return sim.Config{}, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return cfg, nil
}
