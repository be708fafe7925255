// Package msgpack reads record sets from and writes detection reports to
// MessagePack.
package msgpack

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hed1ad/ghostml/pkg/encoding"
	ghio "github.com/hed1ad/ghostml/pkg/io"
	"github.com/hed1ad/ghostml/pkg/records"
)

// Reader decodes an array of records encoded with the records msgpack tags.
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
	var set records.RecordSet
	if err := msgpack.NewDecoder(r.src).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, rec := range set {
		for j, v := range rec.Vals {
			if nonFinite(v) {
				return nil, fmt.Errorf("record %d (%q) column %d: %w", i, rec.Key, j, encoding.ErrNonFinite)
			}
		}
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

func nonFinite(v any) bool {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	default:
		return false
	}
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// Writer renders reports as MessagePack. Map keys are sorted so equal
// reports encode to equal bytes.
type Writer struct {
	w io.Writer
}

// NewWriter creates a msgpack writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write implements io.Writer.
func (w *Writer) Write(report *ghio.Report) error {
	enc := msgpack.NewEncoder(w.w)
	enc.SetSortMapKeys(true)
	enc.SetCustomStructTag("json")
	return enc.Encode(report)
}
