// Package jsonl writes detection records as newline-delimited JSON.
package jsonl

import (
	"bufio"
	"encoding/json"
	"io"

	gio "github.com/hed1ad/goguardml/pkg/io"
)

var _ gio.Writer = (*Writer)(nil)

// Writer emits one JSON object per record.
type Writer struct {
	buf *bufio.Writer
	enc *json.Encoder
}

// NewWriter writes to dst. Close flushes but does not close dst.
func NewWriter(dst io.Writer) *Writer {
	buf := bufio.NewWriter(dst)
	return &Writer{buf: buf, enc: json.NewEncoder(buf)}
}

// Write outputs a single record.
func (w *Writer) Write(rec gio.Record) error {
	return w.enc.Encode(rec)
}

// WriteAll outputs multiple records.
func (w *Writer) WriteAll(recs []gio.Record) error {
	for _, rec := range recs {
		if err := w.enc.Encode(rec); err != nil {
			return err
		}
	}
	return w.buf.Flush()
}

// Close flushes buffered output.
func (w *Writer) Close() error {
	return w.buf.Flush()
}
