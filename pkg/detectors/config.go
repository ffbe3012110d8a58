package detectors

import (
	"fmt"
)

// Config holds common configuration for detectors.
type Config struct {
	// NumTrees is the ensemble size.
	NumTrees int `yaml:"num_trees"`
	// SampleSize is the bootstrap sample size per tree.
	SampleSize int `yaml:"sample_size"`
	// Threshold is the score threshold for classifying anomalies.
	Threshold float64 `yaml:"threshold"`
	// MaxDepth caps tree height. Zero derives it from the effective sample size.
	MaxDepth int `yaml:"max_depth"`
	// Seed for reproducibility. Nil seeds from the wall clock.
	Seed *int64 `yaml:"seed"`
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	return Config{
		NumTrees:   100,
		SampleSize: 256,
		Threshold:  0.5,
	}
}

// Validate reports configuration values no detector can run with.
func (c Config) Validate() error {
	if c.NumTrees <= 0 {
		return fmt.Errorf("num_trees must be positive, got %d", c.NumTrees)
	}
	if c.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive, got %d", c.SampleSize)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in [0, 1], got %g", c.Threshold)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	return nil
}
