// Package config loads goguardml settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hed1ad/goguardml/pkg/detectors"
)

// Config is the top-level configuration file.
//
//	detector:
//	  num_trees: 100
//	  sample_size: 256
//	  threshold: 0.5
//	  seed: 42
//	log:
//	  level: info
//	  format: text
//	metrics:
//	  textfile: /var/lib/node_exporter/goguardml.prom
//	workers: 4
type Config struct {
	Detector detectors.Config `yaml:"detector"`
	Log      Log              `yaml:"log"`
	Metrics  Metrics          `yaml:"metrics"`
	// Workers bounds parallel batch scoring. Zero uses GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Metrics configures Prometheus export.
type Metrics struct {
	// Textfile is written after each command when set.
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Detector: detectors.DefaultConfig(),
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path on top of Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML on top of Default.
func Parse(raw []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// NewLogger builds a logger writing to w.
func (l Log) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", l.Format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
