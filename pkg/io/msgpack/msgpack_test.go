package msgpack

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hed1ad/ghostml/pkg/encoding"
	ghio "github.com/hed1ad/ghostml/pkg/io"
	"github.com/hed1ad/ghostml/pkg/records"
)

func TestReader(t *testing.T) {
	in := records.RecordSet{
		{Key: "a", Vals: []any{1.5, "x"}},
		{Key: "b", Vals: []any{2.5, "y"}},
	}
	raw, err := msgpack.Marshal(in)
	require.NoError(t, err)

	set, err := NewStreamReader(bytes.NewReader(raw)).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, in, set)
}

func TestReaderNonFinite(t *testing.T) {
	for _, v := range []any{math.NaN(), math.Inf(1), float32(math.Inf(-1))} {
		raw, err := msgpack.Marshal(records.RecordSet{{Key: "a", Vals: []any{1.0, v}}})
		require.NoError(t, err)

		_, err = NewStreamReader(bytes.NewReader(raw)).Read(context.Background())
		assert.ErrorIs(t, err, encoding.ErrNonFinite)
	}
}

func TestReaderGarbage(t *testing.T) {
	_, err := NewStreamReader(bytes.NewReader([]byte{0xc1})).Read(context.Background())
	assert.Error(t, err)
}

func TestWriterDeterministic(t *testing.T) {
	report := &ghio.Report{
		Records: []records.LabeledRecord{
			{
				Record:    records.Record{Key: "a", Vals: []any{1.0}},
				IsAnomaly: true,
				RawScores: map[string]float64{"loci": 1, "cof": 2, "copod": 3},
			},
		},
		TestsRun: map[string]int{"loci": 1, "cof": 1, "copod": 0},
		Message:  "ok",
	}

	var first, second bytes.Buffer
	require.NoError(t, NewWriter(&first).Write(report))
	require.NoError(t, NewWriter(&second).Write(report))
	assert.Equal(t, first.Bytes(), second.Bytes())

	var decoded map[string]any
	require.NoError(t, msgpack.Unmarshal(first.Bytes(), &decoded))
	assert.Equal(t, "ok", decoded["message"])
	recs := decoded["records"].([]any)
	assert.Equal(t, "a", recs[0].(map[string]any)["key"])
}
