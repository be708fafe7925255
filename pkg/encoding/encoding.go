// Package encoding converts record sets into numeric feature matrices.
//
// Categorical (string) columns are mapped to ordinal codes. The mapping has no
// notion of string nearness: "cat" and "cats" may land far apart. Detectors
// require numeric input, so the encoder accepts that loss instead of refusing
// string data outright.
package encoding

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/hed1ad/ghostml/pkg/records"
)

var (
	// ErrRagged is returned when records carry differing numbers of values.
	ErrRagged = errors.New("records have differing numbers of values")
	// ErrMissingValue is returned for nil cells.
	ErrMissingValue = errors.New("record contains a missing value")
	// ErrUnsupportedValue is returned for cells that are neither numeric, bool nor string.
	ErrUnsupportedValue = errors.New("record contains an unsupported value type")
	// ErrNonFinite is returned for NaN and infinite numeric cells.
	ErrNonFinite = errors.New("record contains a non-finite value")
)

// Diagnostics describes what the encoder did.
type Diagnostics struct {
	StringColumns int    `json:"Number of string columns in input" msgpack:"Number of string columns in input" yaml:"string_columns"`
	Operation     string `json:"Encoding Operation" msgpack:"Encoding Operation" yaml:"operation"`
}

// Encoder maps a record set to a numeric matrix with one row per record,
// preserving order and count.
type Encoder interface {
	Encode(set records.RecordSet) ([][]float64, Diagnostics, error)
}

// Ordinal encodes string columns as the index of the value in the sorted
// set of distinct column values. Numeric and bool columns pass through.
type Ordinal struct{}

// Encode implements Encoder.
func (Ordinal) Encode(set records.RecordSet) ([][]float64, Diagnostics, error) {
	var diag Diagnostics
	if len(set) == 0 {
		diag.Operation = "No encoding necessary because all columns are numeric."
		return [][]float64{}, diag, nil
	}

	width := len(set[0].Vals)
	for i, r := range set {
		if len(r.Vals) != width {
			return nil, diag, fmt.Errorf("%w: record %d (%q) has %d values, expected %d",
				ErrRagged, i, r.Key, len(r.Vals), width)
		}
	}

	matrix := make([][]float64, len(set))
	for i := range matrix {
		matrix[i] = make([]float64, width)
	}

	for j := 0; j < width; j++ {
		isString, err := stringColumn(set, j)
		if err != nil {
			return nil, diag, err
		}
		if isString {
			diag.StringColumns++
			encodeStrings(set, j, matrix)
			continue
		}
		for i, r := range set {
			v, _ := numeric(r.Vals[j])
			matrix[i][j] = v
		}
	}

	if diag.StringColumns > 0 {
		diag.Operation = "Encoding performed on string columns."
	} else {
		diag.Operation = "No encoding necessary because all columns are numeric."
	}
	return matrix, diag, nil
}

// stringColumn reports whether any cell of column j is a string.
func stringColumn(set records.RecordSet, j int) (bool, error) {
	isString := false
	for i, r := range set {
		cell := r.Vals[j]
		if cell == nil {
			return false, fmt.Errorf("%w: record %d (%q) column %d", ErrMissingValue, i, r.Key, j)
		}
		if _, ok := cell.(string); ok {
			isString = true
			continue
		}
		v, ok := numeric(cell)
		if !ok {
			return false, fmt.Errorf("%w: record %d (%q) column %d: %T", ErrUnsupportedValue, i, r.Key, j, cell)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false, fmt.Errorf("%w: record %d (%q) column %d: %v", ErrNonFinite, i, r.Key, j, v)
		}
	}
	return isString, nil
}

func encodeStrings(set records.RecordSet, j int, matrix [][]float64) {
	cells := make([]string, len(set))
	distinct := make(map[string]struct{})
	for i, r := range set {
		cells[i] = text(r.Vals[j])
		distinct[cells[i]] = struct{}{}
	}

	categories := make([]string, 0, len(distinct))
	for c := range distinct {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	codes := make(map[string]float64, len(categories))
	for code, c := range categories {
		codes[c] = float64(code)
	}
	for i, c := range cells {
		matrix[i][j] = codes[c]
	}
}

func text(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func numeric(cell any) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
