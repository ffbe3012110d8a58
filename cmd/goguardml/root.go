package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hed1ad/goguardml/pkg/config"
	"github.com/hed1ad/goguardml/pkg/detectors/iforest"
	"github.com/hed1ad/goguardml/pkg/metrics"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	// flags
	configPath  string
	logLevel    string
	logFormat   string
	metricsFile string
	trees       int
	sampleSize  int
	threshold   float64
	maxDepth    int
	seed        int64
	workers     int

	input inputFlags

	// built in PersistentPreRunE
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	forest   *iforest.IsolationForest
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "goguardml",
		Short:        "Unsupervised anomaly detection with isolation forests",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.flushMetrics()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")
	pf.IntVar(&a.trees, "trees", 0, "number of isolation trees")
	pf.IntVar(&a.sampleSize, "sample-size", 0, "bootstrap sample size per tree")
	pf.Float64Var(&a.threshold, "threshold", 0, "anomaly score threshold in [0, 1]")
	pf.IntVar(&a.maxDepth, "max-depth", 0, "maximum tree depth (0 derives it from the sample size)")
	pf.Int64Var(&a.seed, "seed", 0, "random seed; omit for a clock seed")
	pf.IntVar(&a.workers, "workers", 0, "parallel scoring workers (0 = GOMAXPROCS)")

	root.AddCommand(
		newFitCmd(a),
		newDetectCmd(a),
		newScoreCmd(a),
		newTopCmd(a),
	)
	return root
}

// setup merges the config file with explicitly set flags and builds the
// logger, metrics registry and forest.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = a.metricsFile
	}
	if flags.Changed("trees") {
		cfg.Detector.NumTrees = a.trees
	}
	if flags.Changed("sample-size") {
		cfg.Detector.SampleSize = a.sampleSize
	}
	if flags.Changed("threshold") {
		cfg.Detector.Threshold = a.threshold
	}
	if flags.Changed("max-depth") {
		cfg.Detector.MaxDepth = a.maxDepth
	}
	if flags.Changed("seed") {
		seed := a.seed
		cfg.Detector.Seed = &seed
	}
	if flags.Changed("workers") {
		cfg.Workers = a.workers
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger.With("run_id", uuid.NewString(), "command", cmd.Name())

	a.registry = prometheus.NewRegistry()
	collector, err := metrics.New(a.registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	if cfg.Detector.Seed == nil {
		a.logger.Warn("no seed configured, results will not be reproducible")
	}

	a.forest = iforest.New(
		iforest.WithConfig(cfg.Detector),
		iforest.WithLogger(a.logger),
		iforest.WithObserver(collector),
	)
	a.cfg = cfg
	return nil
}

func (a *app) flushMetrics() error {
	if a.cfg.Metrics.Textfile == "" || a.registry == nil {
		return nil
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	a.logger.Debug("metrics written", "path", a.cfg.Metrics.Textfile)
	return nil
}

var errNoInput = errors.New("one of --input or --pcap is required")
