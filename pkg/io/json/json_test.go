package json

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghio "github.com/hed1ad/ghostml/pkg/io"
	"github.com/hed1ad/ghostml/pkg/records"
)

func TestReader(t *testing.T) {
	input := `[
		{"key": "a", "vals": [1, 2.5, "x", true]},
		{"key": 7, "vals": [3, 4, "y", false]}
	]`

	set, err := NewStreamReader(strings.NewReader(input)).Read(context.Background())
	require.NoError(t, err)

	require.Len(t, set, 2)
	assert.Equal(t, []string{"a", "7"}, set.Keys())
	assert.Equal(t, []any{1.0, 2.5, "x", true}, set[0].Vals)
	assert.Equal(t, []any{3.0, 4.0, "y", false}, set[1].Vals)
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not an array", `{"key": "a"}`},
		{"bad key", `[{"key": [1], "vals": [1]}]`},
		{"missing key", `[{"vals": [1]}]`},
		{"truncated", `[{"key": "a", "vals": [1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStreamReader(strings.NewReader(tt.input)).Read(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestWriter(t *testing.T) {
	report := &ghio.Report{
		Records: []records.LabeledRecord{
			{Record: records.Record{Key: "a", Vals: []any{1.0}}, IsAnomaly: true, AnomalyScore: 2},
		},
		TestsRun: map[string]int{"cof": 1},
		Message:  "ok",
	}

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, WithIndent(true)).Write(report))
	assert.Contains(t, buf.String(), "\n  \"records\"")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ok", decoded["message"])
	recs := decoded["records"].([]any)
	first := recs[0].(map[string]any)
	assert.Equal(t, "a", first["key"])
	assert.Equal(t, true, first["is_anomaly"])
	assert.NotContains(t, decoded, "breakpoints")
}
