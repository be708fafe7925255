// Package copod implements Copula-Based Outlier Detection.
//
// COPOD estimates left and right tail probabilities per feature from the
// empirical CDF, picks the tail matching each feature's skew, and sums the
// negative log probabilities across features. It has no hyperparameters and
// its score spread is stable across datasets, which makes its median a good
// anchor for ensemble thresholds.
package copod

import (
	"context"
	"math"

	"github.com/hed1ad/ghostml/pkg/detectors"
	"github.com/hed1ad/ghostml/pkg/stats"
)

// COPOD is a stateless copula-based detector.
type COPOD struct{}

// New creates a COPOD detector.
func New() *COPOD {
	return &COPOD{}
}

// Detect implements detectors.Detector. NNeighbors is ignored.
func (c *COPOD) Detect(ctx context.Context, data [][]float64, params detectors.Params) (detectors.Result, error) {
	if err := detectors.Validate(data, params); err != nil {
		return detectors.Result{}, err
	}

	n := len(data)
	scores := make([]float64, n)
	neg := make([]float64, n)
	for j := range data[0] {
		if err := ctx.Err(); err != nil {
			return detectors.Result{}, err
		}

		col := stats.Column(data, j)
		for i, v := range col {
			neg[i] = -v
		}
		left := stats.ECDF(col)
		right := stats.ECDF(neg)
		skew := stats.Sign(stats.Skewness(col))

		for i := range col {
			ul := -math.Log(left[i])
			ur := -math.Log(right[i])
			// negative skew keeps the left tail, positive the right, none both
			uSkew := ul*-stats.Sign(skew-1) + ur*stats.Sign(skew+1)
			scores[i] += math.Max(uSkew, (ul+ur)/2)
		}
	}

	labels, threshold := detectors.Label(scores, params.Contamination)
	return detectors.Result{
		Labels: labels,
		Scores: scores,
		Diagnostics: map[string]float64{
			"COPOD Threshold": threshold,
		},
	}, nil
}
