package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hed1ad/goguardml/pkg/detectors"
	gio "github.com/hed1ad/goguardml/pkg/io"
	"github.com/hed1ad/goguardml/pkg/io/csv"
	"github.com/hed1ad/goguardml/pkg/io/jsonl"
	"github.com/hed1ad/goguardml/pkg/io/pcap"
)

type inputFlags struct {
	csvPath  string
	pcapPath string
	noHeader bool
	strict   bool
}

func (in *inputFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&in.csvPath, "input", "", "CSV file of numeric features")
	f.StringVar(&in.pcapPath, "pcap", "", "PCAP file; packets are turned into feature vectors")
	f.BoolVar(&in.noHeader, "no-header", false, "the CSV input has no header row")
	f.BoolVar(&in.strict, "strict", false, "fail on malformed CSV rows instead of skipping them")
	cmd.MarkFlagsMutuallyExclusive("input", "pcap")
}

// loadData reads the whole input table.
func (a *app) loadData() ([][]float64, error) {
	var (
		r     gio.Reader
		names []string
	)

	switch {
	case a.input.csvPath != "":
		cr, err := csv.NewReader(a.input.csvPath,
			csv.WithHeader(!a.input.noHeader),
			csv.WithStrict(a.input.strict),
			csv.WithLogger(a.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		r, names = cr, cr.FeatureNames()
	case a.input.pcapPath != "":
		pr, err := pcap.NewFileReader(a.input.pcapPath, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open pcap: %w", err)
		}
		r, names = pr, pr.Extractor().FeatureNames()
	default:
		return nil, errNoInput
	}
	defer r.Close()

	start := time.Now()
	data, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	a.logger.Info("input loaded",
		"rows", len(data),
		"features", strings.Join(names, ","),
		"elapsed", time.Since(start))
	return data, nil
}

type outputFlags struct {
	format        string
	path          string
	anomaliesOnly bool
}

func (out *outputFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&out.format, "format", "csv", "output format: csv or json")
	f.StringVarP(&out.path, "output", "o", "", "output file (default stdout)")
	f.BoolVar(&out.anomaliesOnly, "anomalies-only", false, "only emit rows classified as anomalies")
}

// write emits results in the requested format.
func (out *outputFlags) write(cmd *cobra.Command, results []detectors.Result, data [][]float64) error {
	if out.format != "csv" && out.format != "json" {
		return fmt.Errorf("unknown output format %q", out.format)
	}

	if out.anomaliesOnly {
		kept := results[:0:0]
		for _, r := range results {
			if r.IsAnomaly {
				kept = append(kept, r)
			}
		}
		results = kept
	}

	var dst io.Writer = cmd.OutOrStdout()
	if out.path != "" {
		file, err := os.Create(out.path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		dst = file
	}

	var w gio.Writer = csv.NewWriter(dst)
	if out.format == "json" {
		w = jsonl.NewWriter(dst)
	}

	if err := w.WriteAll(gio.NewRecords(results, data, time.Now())); err != nil {
		return errors.Join(err, w.Close())
	}
	return w.Close()
}
