package encoding

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/ghostml/pkg/records"
)

func TestOrdinalNumericPassThrough(t *testing.T) {
	set := records.RecordSet{
		{Key: "1", Vals: []any{1.5, 2}},
		{Key: "2", Vals: []any{-3.0, true}},
		{Key: "3", Vals: []any{json.Number("4.25"), false}},
	}

	matrix, diag, err := Ordinal{}.Encode(set)
	require.NoError(t, err)

	assert.Equal(t, [][]float64{{1.5, 2}, {-3, 1}, {4.25, 0}}, matrix)
	assert.Equal(t, 0, diag.StringColumns)
	assert.Equal(t, "No encoding necessary because all columns are numeric.", diag.Operation)
}

func TestOrdinalStringColumns(t *testing.T) {
	set := records.RecordSet{
		{Key: "1", Vals: []any{"dog", 1.0}},
		{Key: "2", Vals: []any{"cat", 2.0}},
		{Key: "3", Vals: []any{"emu", 3.0}},
		{Key: "4", Vals: []any{"cat", 4.0}},
	}

	matrix, diag, err := Ordinal{}.Encode(set)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 0, 2, 0}, []float64{matrix[0][0], matrix[1][0], matrix[2][0], matrix[3][0]})
	assert.Equal(t, 4.0, matrix[3][1])
	assert.Equal(t, 1, diag.StringColumns)
	assert.Equal(t, "Encoding performed on string columns.", diag.Operation)
}

func TestOrdinalMixedColumnIsCategorical(t *testing.T) {
	set := records.RecordSet{
		{Key: "1", Vals: []any{"b"}},
		{Key: "2", Vals: []any{10.0}},
		{Key: "3", Vals: []any{"a"}},
	}

	matrix, _, err := Ordinal{}.Encode(set)
	require.NoError(t, err)

	// sorted categories: "10", "a", "b"
	assert.Equal(t, [][]float64{{2}, {0}, {1}}, matrix)
}

func TestOrdinalErrors(t *testing.T) {
	tests := []struct {
		name    string
		set     records.RecordSet
		wantErr error
	}{
		{
			name:    "ragged",
			set:     records.RecordSet{{Key: "1", Vals: []any{1.0, 2.0}}, {Key: "2", Vals: []any{1.0}}},
			wantErr: ErrRagged,
		},
		{
			name:    "missing",
			set:     records.RecordSet{{Key: "1", Vals: []any{nil}}},
			wantErr: ErrMissingValue,
		},
		{
			name:    "unsupported",
			set:     records.RecordSet{{Key: "1", Vals: []any{[]int{1}}}},
			wantErr: ErrUnsupportedValue,
		},
		{
			name:    "nan",
			set:     records.RecordSet{{Key: "1", Vals: []any{1.0}}, {Key: "2", Vals: []any{math.NaN()}}},
			wantErr: ErrNonFinite,
		},
		{
			name:    "positive infinity",
			set:     records.RecordSet{{Key: "1", Vals: []any{math.Inf(1), "x"}}},
			wantErr: ErrNonFinite,
		},
		{
			name:    "negative infinity float32",
			set:     records.RecordSet{{Key: "1", Vals: []any{float32(math.Inf(-1))}}},
			wantErr: ErrNonFinite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Ordinal{}.Encode(tt.set)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOrdinalPreservesRowCount(t *testing.T) {
	set := make(records.RecordSet, 40)
	for i := range set {
		set[i] = records.Record{Key: string(rune('a' + i%26)), Vals: []any{float64(i), "x"}}
	}

	matrix, _, err := Ordinal{}.Encode(set)
	require.NoError(t, err)
	require.Len(t, matrix, len(set))
	for i, row := range matrix {
		assert.Equal(t, float64(i), row[0])
	}
}
