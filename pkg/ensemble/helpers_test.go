package ensemble

import (
	"context"
	"math/rand"
	"strconv"
	"sync/atomic"

	"github.com/hed1ad/ghostml/pkg/detectors"
	"github.com/hed1ad/ghostml/pkg/records"
)

// fakeDetector returns score(row, params) for every row and counts calls.
type fakeDetector struct {
	calls atomic.Int64
	score func(row int, params detectors.Params) float64
	err   error
}

func (f *fakeDetector) Detect(ctx context.Context, data [][]float64, params detectors.Params) (detectors.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return detectors.Result{}, f.err
	}
	scores := make([]float64, len(data))
	for i := range data {
		scores[i] = f.score(i, params)
	}
	labels, threshold := detectors.Label(scores, params.Contamination)
	return detectors.Result{
		Labels:      labels,
		Scores:      scores,
		Diagnostics: map[string]float64{"Threshold": threshold},
	}, nil
}

func constant(v float64) *fakeDetector {
	return &fakeDetector{score: func(int, detectors.Params) float64 { return v }}
}

func byRow(f func(row int) float64) *fakeDetector {
	return &fakeDetector{score: func(row int, _ detectors.Params) float64 { return f(row) }}
}

func mustRegistry(entries ...detectors.Entry) *detectors.Registry {
	r, err := detectors.NewRegistry(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// numericRecords builds n records of dims Gaussian features.
func numericRecords(n, dims int, seed int64) records.RecordSet {
	rng := rand.New(rand.NewSource(seed))
	set := make(records.RecordSet, n)
	for i := range set {
		vals := make([]any, dims)
		for j := range vals {
			vals[j] = rng.NormFloat64()
		}
		set[i] = records.Record{Key: strconv.Itoa(i), Vals: vals}
	}
	return set
}

func matrixOf(rows, dims int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, dims)
		m[i][0] = float64(i)
	}
	return m
}
