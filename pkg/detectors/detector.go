// Package detectors provides unsupervised anomaly detection algorithms behind a
// single capability interface, and the registry the ensemble selects them from.
package detectors

import (
	"context"
	"errors"
	"fmt"

	"github.com/hed1ad/ghostml/pkg/stats"
)

var (
	// ErrEmptyData is returned when a detector receives no rows or no columns.
	ErrEmptyData = errors.New("empty feature matrix")
	// ErrRaggedData is returned when feature matrix rows differ in width.
	ErrRaggedData = errors.New("feature matrix rows differ in width")
	// ErrNeighbors is returned when n_neighbors does not fit the row count.
	ErrNeighbors = errors.New("invalid number of neighbors")
	// ErrContamination is returned when contamination is outside (0, 0.5].
	ErrContamination = errors.New("contamination must be in (0, 0.5]")
)

// Detector is the common capability of every anomaly detection algorithm.
type Detector interface {
	// Detect scores every row of data, where each row is a sample and each
	// column a feature. Labels and Scores hold one entry per row in row
	// order; higher scores are more anomalous. Implementations must be
	// deterministic for fixed data and params.
	Detect(ctx context.Context, data [][]float64, params Params) (Result, error)
}

// Func adapts an ordinary function to the Detector interface.
type Func func(ctx context.Context, data [][]float64, params Params) (Result, error)

// Detect calls f.
func (f Func) Detect(ctx context.Context, data [][]float64, params Params) (Result, error) {
	return f(ctx, data, params)
}

// Result is the output of one detector invocation.
type Result struct {
	// Labels marks rows the detector considers anomalous on its own.
	Labels []bool
	// Scores are raw anomaly scores. Scales differ between detectors.
	Scores []float64
	// Diagnostics holds scalar facts about the run, such as the decision
	// threshold and contamination used.
	Diagnostics map[string]float64
}

// Params holds the hyperparameters passed to a detector invocation.
type Params struct {
	// NNeighbors is the neighborhood size for density and distance based detectors.
	NNeighbors int
	// Contamination is the expected proportion of anomalies, used to place
	// the detector's own decision threshold.
	Contamination float64
	// RandomSeed for detectors with randomized construction.
	RandomSeed int64
}

// DefaultParams returns sensible defaults for detector parameters.
func DefaultParams() Params {
	return Params{
		NNeighbors:    20,
		Contamination: 0.1,
		RandomSeed:    42,
	}
}

// Validate checks that data is a non-empty rectangular matrix and that the
// contamination is usable.
func Validate(data [][]float64, params Params) error {
	if len(data) == 0 || len(data[0]) == 0 {
		return ErrEmptyData
	}
	width := len(data[0])
	for i, row := range data {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d columns, expected %d", ErrRaggedData, i, len(row), width)
		}
	}
	if params.Contamination <= 0 || params.Contamination > 0.5 {
		return fmt.Errorf("%w: got %v", ErrContamination, params.Contamination)
	}
	return nil
}

// Label places the decision threshold at the (1 - contamination) percentile
// of scores and marks every row scoring strictly above it.
func Label(scores []float64, contamination float64) ([]bool, float64) {
	threshold := stats.Percentile(scores, 100*(1-contamination))
	labels := make([]bool, len(scores))
	for i, s := range scores {
		labels[i] = s > threshold
	}
	return labels, threshold
}
