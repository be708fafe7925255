// Package json reads record sets from JSON arrays and writes detection
// reports as JSON.
package json

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	ghio "github.com/hed1ad/ghostml/pkg/io"
	"github.com/hed1ad/ghostml/pkg/records"
)

// ErrKey is returned for record keys that are neither strings nor numbers.
var ErrKey = errors.New("record key must be a string or a number")

type wireRecord struct {
	Key  json.RawMessage `json:"key"`
	Vals []any           `json:"vals"`
}

// Reader decodes a JSON array of {"key": ..., "vals": [...]} objects.
type Reader struct {
	src    io.Reader
	closer io.Closer
}

// NewReader opens filename for reading.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	return &Reader{src: file, closer: file}, nil
}

// NewStreamReader reads from src. Close does not close src.
func NewStreamReader(src io.Reader) *Reader {
	return &Reader{src: src}
}

// Read decodes the whole input.
func (r *Reader) Read(ctx context.Context) (records.RecordSet, error) {
	dec := json.NewDecoder(r.src)
	dec.UseNumber()

	var wire []wireRecord
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := make(records.RecordSet, len(wire))
	for i, w := range wire {
		key, err := decodeKey(w.Key)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		vals := make([]any, len(w.Vals))
		for j, v := range w.Vals {
			vals[j] = normalize(v)
		}
		set[i] = records.Record{Key: key, Vals: vals}
	}
	return set, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func decodeKey(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ErrKey
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: %s", ErrKey, raw)
	}
	return n.String(), nil
}

// normalize turns numbers into float64, leaving other cells untouched.
func normalize(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// Writer renders reports as JSON.
type Writer struct {
	w      io.Writer
	indent bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithIndent pretty-prints the output.
func WithIndent(indent bool) WriterOption {
	return func(w *Writer) {
		w.indent = indent
	}
}

// NewWriter creates a JSON writer on w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	jw := &Writer{w: w}
	for _, opt := range opts {
		opt(jw)
	}
	return jw
}

// Write implements io.Writer.
func (w *Writer) Write(report *ghio.Report) error {
	enc := json.NewEncoder(w.w)
	if w.indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}
