package csv

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	gio "github.com/hed1ad/goguardml/pkg/io"
)

var _ gio.Writer = (*Writer)(nil)

// header is the column layout of written results.
var header = []string{"index", "anomaly_score", "is_anomaly", "severity", "average_path_length"}

// Writer writes detection records as CSV, one row per record.
type Writer struct {
	closer      io.Closer
	w           *csv.Writer
	wroteHeader bool
}

// NewWriter writes to dst. Close flushes but does not close dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(dst)}
}

// Create truncates filename and writes to it.
func Create(filename string) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := NewWriter(file)
	w.closer = file
	return w, nil
}

// Write outputs a single record.
func (w *Writer) Write(rec gio.Record) error {
	if !w.wroteHeader {
		if err := w.w.Write(header); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	return w.w.Write([]string{
		strconv.Itoa(rec.Index),
		strconv.FormatFloat(rec.AnomalyScore, 'f', 6, 64),
		strconv.FormatBool(rec.IsAnomaly),
		string(rec.Severity),
		strconv.FormatFloat(rec.AveragePathLength, 'f', 4, 64),
	})
}

// WriteAll outputs multiple records.
func (w *Writer) WriteAll(recs []gio.Record) error {
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes buffered rows and releases resources.
func (w *Writer) Close() error {
	w.w.Flush()
	err := w.w.Error()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
