package ensemble

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/ghostml/pkg/detectors"
	"github.com/hed1ad/ghostml/pkg/records"
)

// fakeEnsemble mirrors the default registry layout with fake detectors.
type fakeEnsemble struct {
	cof, loci, copod *fakeDetector
}

func newFakeEnsemble() *fakeEnsemble {
	return &fakeEnsemble{
		cof:   byRow(func(row int) float64 { return float64(row % 10) }),
		loci:  constant(100),
		copod: constant(0.5),
	}
}

func (f *fakeEnsemble) registry() *detectors.Registry {
	return mustRegistry(
		detectors.Entry{Name: "cof", Detector: f.cof, Sweep: true},
		detectors.Entry{Name: "loci", Detector: f.loci, Applies: detectors.AtMostRows(LOCIRowLimit), Contamination: 0.1},
		detectors.Entry{Name: "copod", Detector: f.copod, Contamination: 0.1},
	)
}

func (f *fakeEnsemble) calls() int64 {
	return f.cof.calls.Load() + f.loci.calls.Load() + f.copod.calls.Load()
}

func TestDetectAnomaliesRejectsInvalidFraction(t *testing.T) {
	fakes := newFakeEnsemble()
	p := New(WithRegistry(fakes.registry()))
	set := numericRecords(50, 2, 1)

	cfg := DefaultConfig()
	cfg.MaxFractionAnomalies = 1.5

	res, err := p.DetectAnomalies(context.Background(), set, cfg)
	require.NoError(t, err)

	assert.True(t, res.Rejected)
	assert.Contains(t, res.Message, "max_fraction_anomalies")
	assert.Nil(t, res.Diagnostics)
	assert.Zero(t, fakes.calls(), "no detector may execute")
	assert.Equal(t, map[string]int{"cof": 0, "loci": 0, "copod": 0}, res.TestsRun)

	require.Len(t, res.Records, len(set))
	for i, r := range res.Records {
		assert.Equal(t, set[i].Key, r.Key)
		assert.False(t, r.IsAnomaly)
		assert.Zero(t, r.AnomalyScore)
	}
}

func TestDetectAnomaliesRejectsSmallInput(t *testing.T) {
	p := New(WithRegistry(newFakeEnsemble().registry()))

	res, err := p.DetectAnomalies(context.Background(), numericRecords(14, 2, 1), DefaultConfig())
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Contains(t, res.Message, "You sent 14.")
	assert.Len(t, res.Records, 14)
}

func TestDetectAnomaliesRejectsUnencodableInput(t *testing.T) {
	p := New(WithRegistry(newFakeEnsemble().registry()))
	set := numericRecords(30, 2, 1)
	set[7].Vals = []any{1.0}

	res, err := p.DetectAnomalies(context.Background(), set, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Contains(t, res.Message, "Unable to encode input")
}

func TestDetectAnomaliesRejectsNonFiniteValues(t *testing.T) {
	tests := []struct {
		name string
		val  float64
	}{
		{"nan", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakes := newFakeEnsemble()
			p := New(WithRegistry(fakes.registry()))
			set := numericRecords(30, 2, 1)
			set[5].Vals[0] = tt.val

			res, err := p.DetectAnomalies(context.Background(), set, DefaultConfig())
			require.NoError(t, err)
			assert.True(t, res.Rejected)
			assert.True(t, strings.HasPrefix(res.Message, "Unable to encode input: record contains a non-finite value"), res.Message)
			assert.Zero(t, fakes.calls())
			assert.Zero(t, records.CountAnomalies(res.Records))
		})
	}
}

func TestDetectAnomaliesCombinesScores(t *testing.T) {
	fakes := newFakeEnsemble()
	p := New(WithRegistry(fakes.registry()))
	set := numericRecords(60, 2, 3)

	res, err := p.DetectAnomalies(context.Background(), set, DefaultConfig())
	require.NoError(t, err)
	require.False(t, res.Rejected)

	assert.Equal(t, SuccessMessage, res.Message)
	assert.Equal(t, map[string]int{"cof": 1, "loci": 1, "copod": 1}, res.TestsRun)
	assert.Equal(t, map[string]float64{"cof": 1, "loci": 1, "copod": 1}, res.Weights)

	require.Len(t, res.Records, len(set))
	for i, r := range res.Records {
		assert.Equal(t, set[i].Key, r.Key, "order preserved")
		assert.Equal(t, set[i].Vals, r.Vals)
		assert.InDelta(t, float64(i%10)+100+0.5, r.AnomalyScore, 1e-12)
		assert.Equal(t, float64(i%10), r.RawScores["cof"])
		assert.Equal(t, 100.0, r.RawScores["loci"])
	}

	tr := res.Diagnostics.Threshold
	assert.Equal(t, 0.5, tr.AnchorMedian)
	assert.Equal(t, 5.0+0.95+0.75, tr.FactorFloor)
	assert.Equal(t, 60, res.Diagnostics.Tests.RecordCount)
}

func TestDetectAnomaliesSkipsLOCIOnLargeInput(t *testing.T) {
	fakes := newFakeEnsemble()
	p := New(WithRegistry(fakes.registry()))
	set := numericRecords(1500, 2, 4)

	res, err := p.DetectAnomalies(context.Background(), set, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 0, res.TestsRun["loci"])
	assert.Zero(t, fakes.loci.calls.Load())
	assert.Equal(t, 0.0, res.Diagnostics.Threshold.TestedFactors["loci"])
	assert.Equal(t, 5.0+0.75, res.Diagnostics.Threshold.FactorFloor)

	for i, r := range res.Records {
		assert.InDelta(t, float64(i%10)+0.5, r.AnomalyScore, 1e-12)
		assert.NotContains(t, r.RawScores, "loci")
	}
}

func TestDetectAnomaliesRespectsFractionCap(t *testing.T) {
	fakes := newFakeEnsemble()
	fakes.cof = byRow(func(row int) float64 { return float64(row) })
	p := New(WithRegistry(fakes.registry()))
	set := numericRecords(100, 2, 5)

	cfg := DefaultConfig()
	cfg.SensitivityScore = 100
	cfg.MaxFractionAnomalies = 0.1
	cfg.SensitivityFactors = map[string]float64{}

	res, err := p.DetectAnomalies(context.Background(), set, cfg)
	require.NoError(t, err)

	assert.True(t, res.Diagnostics.Threshold.CapApplied)
	assert.LessOrEqual(t, records.CountAnomalies(res.Records), 11)
	assert.True(t, res.Records[99].IsAnomaly)
	assert.False(t, res.Records[0].IsAnomaly)
}

func TestDetectAnomaliesMissingAnchor(t *testing.T) {
	fakes := newFakeEnsemble()
	fakes.copod.err = errors.New("copula failed")
	p := New(WithRegistry(fakes.registry()))

	res, err := p.DetectAnomalies(context.Background(), numericRecords(40, 2, 6), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 0, res.TestsRun["copod"])
	assert.Equal(t, 0.0, res.Diagnostics.Threshold.AnchorMedian)
	assert.Equal(t, "copula failed", res.Diagnostics.Tests.Detectors["copod"].Failures["copod"])
}

func TestDetectAnomaliesTimeoutDegrades(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	fakes := newFakeEnsemble()
	reg := mustRegistry(
		detectors.Entry{Name: "cof", Detector: fakes.cof, Sweep: true},
		detectors.Entry{Name: "loci", Detector: detectors.Func(func(ctx context.Context, data [][]float64, p detectors.Params) (detectors.Result, error) {
			<-release
			return detectors.Result{}, nil
		})},
		detectors.Entry{Name: "copod", Detector: fakes.copod},
	)
	p := New(WithRegistry(reg), WithDetectorTimeout(20*time.Millisecond))

	res, err := p.DetectAnomalies(context.Background(), numericRecords(40, 2, 7), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cof": 1, "loci": 0, "copod": 1}, res.TestsRun)
}

func TestDetectAnomaliesContractViolation(t *testing.T) {
	bad := detectors.Func(func(ctx context.Context, data [][]float64, p detectors.Params) (detectors.Result, error) {
		return detectors.Result{Labels: make([]bool, len(data)-1), Scores: make([]float64, len(data)-1)}, nil
	})
	p := New(WithRegistry(mustRegistry(detectors.Entry{Name: "bad", Detector: bad})))

	_, err := p.DetectAnomalies(context.Background(), numericRecords(30, 2, 8), DefaultConfig())
	assert.ErrorIs(t, err, ErrContract)
}

func TestDetectAnomaliesDoesNotMutateInput(t *testing.T) {
	set := numericRecords(30, 2, 9)
	set[0].Vals[1] = "label"
	before := set.Clone()

	p := New(WithRegistry(newFakeEnsemble().registry()))
	_, err := p.DetectAnomalies(context.Background(), set, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, before, set)
}

func TestDetectAnomaliesDefaultRegistry(t *testing.T) {
	set := numericRecords(60, 2, 10)
	set = append(set, records.Record{Key: "outlier", Vals: []any{20.0, 20.0}})

	p := New(WithWorkers(2))
	cfg := DefaultConfig()

	first, err := p.DetectAnomalies(context.Background(), set, cfg)
	require.NoError(t, err)
	require.False(t, first.Rejected, first.Message)

	assert.Equal(t, []string{"cof", "loci", "copod"}, p.Detectors())
	assert.Equal(t, map[string]int{"cof": 1, "loci": 1, "copod": 1}, first.TestsRun)
	require.Len(t, first.Records, len(set))

	last := first.Records[len(set)-1]
	assert.Equal(t, "outlier", last.Key)
	assert.True(t, last.IsAnomaly)
	for _, r := range first.Records[:len(set)-1] {
		assert.Greater(t, last.AnomalyScore, r.AnomalyScore)
	}
	assert.LessOrEqual(t, records.CountAnomalies(first.Records), int(cfg.MaxFractionAnomalies*float64(len(set)))+1)

	cofTrace := first.Diagnostics.Tests.Detectors["cof"]
	assert.Len(t, cofTrace.Invocations, 10, "sweep 10..55")

	t.Run("idempotent", func(t *testing.T) {
		second, err := p.DetectAnomalies(context.Background(), set, cfg)
		require.NoError(t, err)

		a, err := json.Marshal(first)
		require.NoError(t, err)
		b, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	})
}

func TestDetectAnomaliesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(WithRegistry(newFakeEnsemble().registry()))
	_, err := p.DetectAnomalies(ctx, numericRecords(30, 2, 1), DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCatalog(t *testing.T) {
	c := Catalog()
	assert.Equal(t, []string{"cof", "loci", "copod", "iforest"}, c.Names())

	l, ok := c.Lookup("loci")
	require.True(t, ok)
	assert.True(t, l.AppliesTo(1000))
	assert.False(t, l.AppliesTo(1500))

	cof, _ := c.Lookup("cof")
	assert.True(t, cof.Sweep)
	assert.True(t, cof.AppliesTo(1500))
}
