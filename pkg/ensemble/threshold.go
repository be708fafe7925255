package ensemble

import (
	"sort"

	"github.com/hed1ad/ghostml/pkg/stats"
)

// ThresholdInput is everything the threshold engine looks at. The engine is
// a pure function of it.
type ThresholdInput struct {
	// Scores are the ensemble scores, one per row.
	Scores []float64
	// Anchor holds the anchor detector's reduced scores, or nil when it did not run.
	Anchor []float64
	// TestsRun flags which detectors executed.
	TestsRun map[string]int
	// Factors are the per-detector sensitivity factor weights.
	Factors              map[string]float64
	SensitivityScore     float64
	MaxFractionAnomalies float64
}

// Trace records every intermediate value of the threshold computation.
type Trace struct {
	TestedFactors        map[string]float64 `json:"Tested sensitivity factors"`
	FactorFloor          float64            `json:"Sensitivity factor floor"`
	AnchorMedian         float64            `json:"Anchor median"`
	SensitivityThreshold float64            `json:"Sensitivity threshold"`
	SecondLargest        float64            `json:"Second largest score"`
	RawSensitivity       float64            `json:"Raw sensitivity score"`
	MaxFractionScore     float64            `json:"Max fraction anomaly score"`
	CapApplied           bool               `json:"Fraction cap applied"`
	SensitivityCutoff    float64            `json:"Sensitivity score"`
	Cutoff               float64            `json:"Final cutoff"`
}

// Threshold converts the sensitivity dial and fraction cap into one cutoff on
// the ensemble score and flags every row strictly above it.
//
//  1. floor = sum of factor*ran over detectors, so a detector that did not
//     run moves nothing
//  2. sensitivity threshold = floor + median of the anchor scores
//  3. scaled sensitivity = (100 - dial) * second largest score / 100
//  4. if the (1 - max fraction) quantile exceeds the scaled sensitivity and
//     the cap is below 1, the quantile replaces it
//  5. cutoff = max(scaled sensitivity, sensitivity threshold)
func Threshold(in ThresholdInput) ([]bool, Trace) {
	var tr Trace

	tr.TestedFactors = make(map[string]float64)
	for name, w := range in.Factors {
		tr.TestedFactors[name] = w * float64(in.TestsRun[name])
	}
	for name, ran := range in.TestsRun {
		if _, ok := tr.TestedFactors[name]; !ok {
			tr.TestedFactors[name] = in.Factors[name] * float64(ran)
		}
	}
	names := make([]string, 0, len(tr.TestedFactors))
	for name := range tr.TestedFactors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tr.FactorFloor += tr.TestedFactors[name]
	}

	tr.AnchorMedian = stats.Median(in.Anchor)
	tr.SensitivityThreshold = tr.FactorFloor + tr.AnchorMedian

	tr.SecondLargest = stats.SecondLargest(in.Scores)
	tr.RawSensitivity = (100 - in.SensitivityScore) * tr.SecondLargest / 100
	tr.SensitivityCutoff = tr.RawSensitivity

	tr.MaxFractionScore = stats.Quantile(in.Scores, 1-in.MaxFractionAnomalies)
	if tr.MaxFractionScore > tr.SensitivityCutoff && in.MaxFractionAnomalies < 1 {
		tr.SensitivityCutoff = tr.MaxFractionScore
		tr.CapApplied = true
	}

	tr.Cutoff = max(tr.SensitivityCutoff, tr.SensitivityThreshold)

	flags := make([]bool, len(in.Scores))
	for i, s := range in.Scores {
		flags[i] = s > tr.Cutoff
	}
	return flags, tr
}
