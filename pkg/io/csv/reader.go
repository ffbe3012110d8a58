// Package csv provides CSV reading of feature tables and writing of
// detection results.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	gio "github.com/hed1ad/goguardml/pkg/io"
)

var (
	_ gio.Reader           = (*Reader)(nil)
	_ gio.FeatureExtractor = (*Reader)(nil)
)

// Reader reads feature vectors from CSV files.
type Reader struct {
	closer    io.Closer
	reader    *csv.Reader
	hasHeader bool
	strict    bool
	headers   []string
	logger    *slog.Logger
	line      int
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithHeader indicates the CSV has a header row.
func WithHeader(has bool) Option {
	return func(r *Reader) {
		r.hasHeader = has
	}
}

// WithStrict makes a malformed row fail the read instead of being skipped.
func WithStrict(strict bool) Option {
	return func(r *Reader) {
		r.strict = strict
	}
}

// WithLogger sets the logger that reports skipped rows.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = l
	}
}

// NewReader opens filename for reading.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r, err := NewReaderFrom(file, opts...)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// NewReaderFrom reads CSV from src. Close does not close src.
func NewReaderFrom(src io.Reader, opts ...Option) (*Reader, error) {
	r := &Reader{
		reader:    csv.NewReader(src),
		hasHeader: true,
	}
	// Width is checked by parseRow and the detector, not the csv package.
	r.reader.FieldsPerRecord = -1
	r.reader.TrimLeadingSpace = true

	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}

	// Read header if present
	if r.hasHeader {
		headers, err := r.reader.Read()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		r.headers = headers
		r.line++
	}

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// FeatureNames returns the header row, or nil without one.
func (r *Reader) FeatureNames() []string {
	return r.headers
}

// next returns the next parsed row, skipping malformed rows unless strict.
func (r *Reader) next() ([]float64, error) {
	for {
		record, err := r.reader.Read()
		if err != nil {
			return nil, err
		}
		r.line++

		row, err := parseRow(record)
		if err == nil {
			return row, nil
		}
		if r.strict {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		r.logger.Warn("skipping malformed row", "line", r.line, "error", err)
	}
}

// Read returns all data as a 2D float slice.
func (r *Reader) Read() ([][]float64, error) {
	var data [][]float64

	for {
		row, err := r.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		data = append(data, row)
	}

	return data, nil
}

// Stream returns a channel of rows for real-time processing. The channel is
// closed at end of input, on a read error, or when ctx is done.
func (r *Reader) Stream(ctx context.Context) (<-chan []float64, error) {
	out := make(chan []float64, 100)

	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}
			row, err := r.next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				r.logger.Error("csv stream stopped", "line", r.line, "error", err)
				return
			}

			select {
			case out <- row:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// parseRow converts string slice to float slice.
func parseRow(record []string) ([]float64, error) {
	if len(record) == 0 {
		return nil, errors.New("empty row")
	}

	row := make([]float64, len(record))
	for i, val := range record {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		row[i] = f
	}
	return row, nil
}
