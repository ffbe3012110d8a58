package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hed1ad/goguardml/pkg/detectors"
)

// =============================================================================
// FIT
// =============================================================================

func newFitCmd(a *app) *cobra.Command {
	var modelPath string

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a forest on the input and save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := a.loadData()
			if err != nil {
				return err
			}
			if err := a.forest.Fit(data); err != nil {
				return fmt.Errorf("fit: %w", err)
			}

			blob, err := a.forest.Save()
			if err != nil {
				return err
			}
			if err := os.WriteFile(modelPath, blob, 0o644); err != nil {
				return fmt.Errorf("write model: %w", err)
			}
			a.logger.Info("model saved", "path", modelPath, "bytes", len(blob))
			return nil
		},
	}

	a.input.register(cmd)
	cmd.Flags().StringVar(&modelPath, "model", "", "where to write the fitted forest")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

// =============================================================================
// DETECT
// =============================================================================

func newDetectCmd(a *app) *cobra.Command {
	var (
		modelPath string
		out       outputFlags
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Score the input against a saved forest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadModel(modelPath); err != nil {
				return err
			}
			data, err := a.loadData()
			if err != nil {
				return err
			}

			results, err := a.forest.DetectBatchContext(cmd.Context(), data, a.cfg.Workers)
			if err != nil {
				return fmt.Errorf("detect: %w", err)
			}
			a.logSummary(len(results), countAnomalies(results))
			return out.write(cmd, results, data)
		},
	}

	a.input.register(cmd)
	out.register(cmd)
	cmd.Flags().StringVar(&modelPath, "model", "", "forest written by fit")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

// =============================================================================
// SCORE
// =============================================================================

func newScoreCmd(a *app) *cobra.Command {
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Fit on the input and score the same rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := a.loadData()
			if err != nil {
				return err
			}
			if err := a.forest.Fit(data); err != nil {
				return fmt.Errorf("fit: %w", err)
			}

			results, err := a.forest.DetectBatchContext(cmd.Context(), data, a.cfg.Workers)
			if err != nil {
				return fmt.Errorf("detect: %w", err)
			}
			a.logSummary(len(results), countAnomalies(results))
			return out.write(cmd, results, data)
		},
	}

	a.input.register(cmd)
	out.register(cmd)
	return cmd
}

// =============================================================================
// TOP
// =============================================================================

func newTopCmd(a *app) *cobra.Command {
	var (
		modelPath string
		k         int
		out       outputFlags
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the k most anomalous rows",
		Long: "Print the k most anomalous rows of the input, most anomalous first.\n" +
			"Without --model the forest is fitted on the input itself.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if k < 0 {
				return errors.New("--count must not be negative")
			}
			if modelPath != "" {
				if err := a.loadModel(modelPath); err != nil {
					return err
				}
			}
			data, err := a.loadData()
			if err != nil {
				return err
			}
			if modelPath == "" {
				if err := a.forest.Fit(data); err != nil {
					return fmt.Errorf("fit: %w", err)
				}
			}

			top, err := a.forest.TopKAnomalies(data, k)
			if err != nil {
				return fmt.Errorf("top: %w", err)
			}
			return out.write(cmd, top, data)
		},
	}

	a.input.register(cmd)
	out.register(cmd)
	cmd.Flags().StringVar(&modelPath, "model", "", "forest written by fit (default: fit on the input)")
	cmd.Flags().IntVarP(&k, "count", "k", 10, "number of rows to print")
	return cmd
}

func (a *app) loadModel(path string) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}
	if err := a.forest.Load(blob); err != nil {
		return err
	}
	a.logger.Info("model loaded",
		"path", path,
		"trees", a.forest.TreeCount(),
		"features", a.forest.NumFeatures())
	return nil
}

func (a *app) logSummary(rows, anomalies int) {
	a.logger.Info("detection complete",
		"rows", rows,
		"anomalies", anomalies,
		"threshold", a.forest.Threshold())
}

func countAnomalies(results []detectors.Result) int {
	n := 0
	for _, r := range results {
		if r.IsAnomaly {
			n++
		}
	}
	return n
}
