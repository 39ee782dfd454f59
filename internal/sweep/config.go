package sweep

import (
	"fmt"
	"time"
)

// Algorithm is one routing strategy under test. Its optimization level is
// forwarded to the service's transpiler.
type Algorithm struct {
	Name              string `toml:"name"`
	OptimizationLevel int    `toml:"optimization_level"`
}

// DepthEntry maps a distance ratio to the extra CX depth of its circuit.
type DepthEntry struct {
	Ratio float64 `toml:"ratio"`
	Depth int     `toml:"depth"`
}

// Config describes the experiment matrix.
type Config struct {
	Scenarios []int `toml:"scenarios"`
	TimeSteps int   `toml:"time_steps"`
	// SeedBase of 0 derives the base from the clock at session start.
	SeedBase       int64        `toml:"seed_base"`
	DistanceRatios []float64    `toml:"distance_ratios"`
	SDPairs        []int        `toml:"sd_pairs"`
	Algorithms     []Algorithm  `toml:"algorithms"`
	DistanceDepths []DepthEntry `toml:"distance_depths"`
}

// DefaultConfig returns the experiment matrix of the published runs.
func DefaultConfig() Config {
	return Config{
		Scenarios:      []int{1, 2},
		TimeSteps:      36,
		DistanceRatios: []float64{0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0},
		SDPairs:        []int{10, 15, 20, 25, 30},
		Algorithms: []Algorithm{
			{Name: "Q-RITA", OptimizationLevel: 1},
			{Name: "Classical-RR", OptimizationLevel: 3},
			{Name: "Static-RIS", OptimizationLevel: 0},
		},
		DistanceDepths: []DepthEntry{
			{Ratio: 0.01, Depth: 6},
			{Ratio: 0.02, Depth: 5},
			{Ratio: 0.05, Depth: 4},
			{Ratio: 0.1, Depth: 3},
			{Ratio: 0.2, Depth: 2},
			{Ratio: 0.5, Depth: 1},
			{Ratio: 1.0, Depth: 0},
		},
	}
}

// DepthFor looks up the depth of ratio in the depth table.
func (c Config) DepthFor(ratio float64) (int, bool) {
	for _, e := range c.DistanceDepths {
		if e.Ratio == ratio {
			return e.Depth, true
		}
	}
	return 0, false
}

func (c Config) Validate() error {
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("sweep scenarios must not be empty")
	}
	if c.TimeSteps < 0 {
		return fmt.Errorf("sweep time_steps must not be negative")
	}
	if len(c.Algorithms) == 0 {
		return fmt.Errorf("sweep algorithms must not be empty")
	}
	seen := make(map[string]bool, len(c.Algorithms))
	for _, a := range c.Algorithms {
		if a.Name == "" {
			return fmt.Errorf("sweep algorithm name must be specified")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate sweep algorithm: %s", a.Name)
		}
		seen[a.Name] = true
		if a.OptimizationLevel < 0 || a.OptimizationLevel > 3 {
			return fmt.Errorf("algorithm %s optimization_level must be between 0 and 3", a.Name)
		}
	}
	for _, e := range c.DistanceDepths {
		if e.Depth < 0 {
			return fmt.Errorf("distance depth for ratio %v must not be negative", e.Ratio)
		}
	}
	for _, r := range c.DistanceRatios {
		if _, ok := c.DepthFor(r); !ok {
			return fmt.Errorf("distance ratio %v has no entry in distance_depths", r)
		}
	}
	for _, n := range c.SDPairs {
		if n <= 0 {
			return fmt.Errorf("sd_pairs values must be positive, got %d", n)
		}
	}
	return nil
}

// ResolveSeedBase returns SeedBase, or the session's clock-derived base
// when it is unset.
func (c Config) ResolveSeedBase(now time.Time) int64 {
	if c.SeedBase != 0 {
		return c.SeedBase
	}
	return now.Unix() % 10_000
}
