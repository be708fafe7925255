package timeseries

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/ghostml/pkg/changepoint"
	"github.com/hed1ad/ghostml/pkg/records"
)

type fixedSegmenter struct {
	bkps []int
	err  error
}

func (f fixedSegmenter) Segment(ctx context.Context, signal [][]float64, penalty float64) ([]int, error) {
	return f.bkps, f.err
}

func stepSeries(n, at int) records.RecordSet {
	set := make(records.RecordSet, n)
	for i := range set {
		v := 0.0
		if i >= at {
			v = 10
		}
		set[i] = records.Record{Key: strconv.Itoa(i), Vals: []any{v}}
	}
	return set
}

func TestDetectSingle(t *testing.T) {
	set := stepSeries(60, 30)

	res, err := New(WithSegmenter(changepoint.NewPelt()), WithPenalty(5)).DetectSingle(context.Background(), set, 50, 0.1)
	require.NoError(t, err)

	assert.Equal(t, NoEnsembleMessage, res.Message)
	assert.Equal(t, []int{30, 60}, res.Breakpoints)
	require.Len(t, res.Records, len(set))
	for i, r := range res.Records {
		assert.Equal(t, set[i].Key, r.Key)
		assert.False(t, r.IsAnomaly)
	}
}

func TestDetectSingleSegmenterFailure(t *testing.T) {
	d := New(WithSegmenter(fixedSegmenter{err: errors.New("boom")}))

	res, err := d.DetectSingle(context.Background(), stepSeries(20, 10), 50, 0.1)
	require.NoError(t, err)
	assert.Empty(t, res.Breakpoints)
	assert.Len(t, res.Records, 20)
}

func TestDetectSingleUnencodable(t *testing.T) {
	set := stepSeries(20, 10)
	set[3].Vals = nil

	res, err := New().DetectSingle(context.Background(), set, 50, 0.1)
	require.NoError(t, err)
	assert.Empty(t, res.Breakpoints)
}

func TestDetectMulti(t *testing.T) {
	res, err := New().DetectMulti(context.Background(), stepSeries(20, 10), 50, 0.1, 5)
	require.NoError(t, err)
	assert.Equal(t, NoEnsembleMessage, res.Message)
	assert.Len(t, res.Records, 20)
	assert.Zero(t, records.CountAnomalies(res.Records))
}
