// Package csv reads record sets from CSV and writes detection reports as CSV.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/hed1ad/ghostml/pkg/encoding"
	"github.com/hed1ad/ghostml/pkg/records"
)

// ErrKeyColumn is returned when the configured key column is not in the header.
var ErrKeyColumn = errors.New("key column not found in header")

// Reader reads records from CSV input.
type Reader struct {
	closer    io.Closer
	reader    *csv.Reader
	hasHeader bool
	keyColumn string
	headers   []string
	keyIndex  int
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithHeader indicates the CSV has a header row.
func WithHeader(has bool) Option {
	return func(r *Reader) {
		r.hasHeader = has
	}
}

// WithKeyColumn names the header column holding record keys. Without it,
// keys are the zero-based row ordinals.
func WithKeyColumn(name string) Option {
	return func(r *Reader) {
		r.keyColumn = name
	}
}

// WithComma sets the field delimiter.
func WithComma(c rune) Option {
	return func(r *Reader) {
		r.reader.Comma = c
	}
}

// NewReader opens filename for reading.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r, err := newReader(file, file, opts)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// NewStreamReader reads from src. Close does not close src.
func NewStreamReader(src io.Reader, opts ...Option) (*Reader, error) {
	return newReader(src, nil, opts)
}

func newReader(src io.Reader, closer io.Closer, opts []Option) (*Reader, error) {
	r := &Reader{
		closer:    closer,
		reader:    csv.NewReader(src),
		hasHeader: true,
		keyIndex:  -1,
	}
	r.reader.TrimLeadingSpace = true

	for _, opt := range opts {
		opt(r)
	}

	if r.hasHeader {
		headers, err := r.reader.Read()
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		r.headers = headers
	}

	if r.keyColumn != "" {
		r.keyIndex = slices.Index(r.headers, r.keyColumn)
		if r.keyIndex < 0 {
			return nil, fmt.Errorf("%w: %q", ErrKeyColumn, r.keyColumn)
		}
	}

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Read returns every row as a record.
func (r *Reader) Read(ctx context.Context) (records.RecordSet, error) {
	var set records.RecordSet

	for line := 0; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		rec, err := r.record(line, row)
		if err != nil {
			return nil, err
		}
		set = append(set, rec)
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

func (r *Reader) record(line int, row []string) (records.Record, error) {
	rec := records.Record{
		Key:  strconv.Itoa(line),
		Vals: make([]any, 0, len(row)),
	}
	for i, cell := range row {
		if i == r.keyIndex {
			rec.Key = cell
			continue
		}
		v, err := parseCell(cell)
		if err != nil {
			return records.Record{}, fmt.Errorf("row %d column %d: %w", line, i, err)
		}
		rec.Vals = append(rec.Vals, v)
	}
	return rec, nil
}

// parseCell returns a float64 for numeric cells, nil for empty ones and
// the trimmed string otherwise. NaN and infinities are refused.
func parseCell(cell string) (any, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %q", encoding.ErrNonFinite, cell)
		}
		return f, nil
	}
	return cell, nil
}
