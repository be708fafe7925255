package ensemble

import (
	"github.com/hed1ad/ghostml/pkg/stats"
)

// Reduced is one detector's output after its sweep has been collapsed.
type Reduced struct {
	Labels []bool
	Scores []float64
}

// Reduce collapses the runs of one detector into a single label and score
// per row: labels by majority vote (ties are not anomalous) and scores by
// median, which shrugs off a single wild hyperparameter setting. A single
// run passes through unchanged.
func Reduce(runs []Run) Reduced {
	switch len(runs) {
	case 0:
		return Reduced{}
	case 1:
		return Reduced{Labels: runs[0].Result.Labels, Scores: runs[0].Result.Scores}
	}

	labels := make([][]bool, len(runs))
	scores := make([][]float64, len(runs))
	for i, run := range runs {
		labels[i] = run.Result.Labels
		scores[i] = run.Result.Scores
	}
	return Reduced{
		Labels: stats.MajorityVote(labels),
		Scores: stats.RowMedian(scores),
	}
}

// ReduceAll reduces every detector in the report.
func ReduceAll(report *Report) map[string]Reduced {
	out := make(map[string]Reduced, len(report.Runs))
	for name, runs := range report.Runs {
		out[name] = Reduce(runs)
	}
	return out
}

// Combine sums the reduced scores of every detector that ran into one
// ensemble score per row. Detectors are added in order so the floating
// point result is reproducible; a detector that did not run adds 0.
func Combine(reduced map[string]Reduced, testsRun map[string]int, order []string, rows int) []float64 {
	ensemble := make([]float64, rows)
	for _, name := range order {
		if testsRun[name] != 1 {
			continue
		}
		r, ok := reduced[name]
		if !ok {
			continue
		}
		for i, s := range r.Scores {
			ensemble[i] += s
		}
	}
	return ensemble
}
