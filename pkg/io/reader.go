// Package io provides input/output utilities for feeding the detectors and
// recording their verdicts.
package io

import (
	"context"
	"time"

	"github.com/hed1ad/goguardml/pkg/detectors"
)

// Reader is the interface for reading feature vectors from various sources.
type Reader interface {
	// Read returns the complete dataset.
	Read() ([][]float64, error)

	// Stream returns a channel of samples for real-time processing.
	Stream(ctx context.Context) (<-chan []float64, error)

	// Close releases resources.
	Close() error
}

// FeatureExtractor extracts numerical features from raw data.
type FeatureExtractor interface {
	// FeatureNames returns the names of extracted features, in vector order.
	FeatureNames() []string
}

// Writer is the interface for writing detection records.
type Writer interface {
	// Write outputs a single record.
	Write(rec Record) error

	// WriteAll outputs multiple records.
	WriteAll(recs []Record) error

	// Close flushes and releases resources.
	Close() error
}

// Record is a detection result as written to an output sink.
type Record struct {
	Timestamp int64 `json:"timestamp"`
	detectors.Result
	Features []float64 `json:"features,omitempty"`
}

// NewRecords pairs results with the rows they were computed from. Rows are
// looked up by result index; indices outside data leave Features empty.
func NewRecords(results []detectors.Result, data [][]float64, at time.Time) []Record {
	recs := make([]Record, len(results))
	for i, r := range results {
		recs[i] = Record{Timestamp: at.Unix(), Result: r}
		if r.Index >= 0 && r.Index < len(data) {
			recs[i].Features = data[r.Index]
		}
	}
	return recs
}
