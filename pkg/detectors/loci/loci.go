// Package loci implements the Local Correlation Integral detector.
//
// For each point LOCI walks a sequence of sampling radii r and compares the
// point's count of neighbors within alpha*r (its counting neighborhood) with
// the average count of the points inside r (its sampling neighborhood). The
// multi-granularity deviation factor (MDEF) normalized by its standard
// deviation is the anomaly score. Cost grows quadratically in the row count,
// so the ensemble only runs it on small datasets.
package loci

import (
	"context"
	"math"
	"sort"

	"github.com/hed1ad/ghostml/pkg/detectors"
	"github.com/hed1ad/ghostml/pkg/stats"
)

// LOCI is a Local Correlation Integral detector.
type LOCI struct {
	alpha    float64
	k        float64
	minSize  int
	maxRadii int
}

// Option configures a LOCI detector.
type Option func(*LOCI)

// WithAlpha sets the ratio between counting and sampling radius.
func WithAlpha(a float64) Option {
	return func(l *LOCI) {
		l.alpha = a
	}
}

// WithK sets how many standard deviations of MDEF flag a point.
func WithK(k float64) Option {
	return func(l *LOCI) {
		l.k = k
	}
}

// WithMinNeighbors sets the smallest sampling neighborhood that is scored.
func WithMinNeighbors(n int) Option {
	return func(l *LOCI) {
		l.minSize = n
	}
}

// WithMaxRadii bounds how many critical radii are evaluated per point.
func WithMaxRadii(n int) Option {
	return func(l *LOCI) {
		l.maxRadii = n
	}
}

// New creates a LOCI detector with alpha 0.5, k 3 and a minimum sampling
// neighborhood of 20 points.
func New(opts ...Option) *LOCI {
	l := &LOCI{
		alpha:    0.5,
		k:        3,
		minSize:  20,
		maxRadii: 64,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Detect implements detectors.Detector. NNeighbors is ignored.
func (l *LOCI) Detect(ctx context.Context, data [][]float64, params detectors.Params) (detectors.Result, error) {
	if err := detectors.Validate(data, params); err != nil {
		return detectors.Result{}, err
	}

	n := len(data)
	dist := stats.DistanceMatrix(data)

	// order[i] lists row indices by distance from i; sorted[i] the distances.
	order := make([][]int, n)
	sorted := make([][]float64, n)
	for i := range dist {
		order[i], sorted[i] = argsort(dist[i])
	}

	// within counts points (self included) at distance <= r from q.
	within := func(q int, r float64) int {
		return sort.Search(n, func(j int) bool { return sorted[q][j] > r })
	}

	scores := make([]float64, n)
	counts := make([]float64, 0, n)
	for p := 0; p < n; p++ {
		if err := ctx.Err(); err != nil {
			return detectors.Result{}, err
		}

		for _, r := range l.radii(sorted[p]) {
			m := within(p, r)
			if m < l.minSize {
				continue
			}

			counts = counts[:0]
			for _, q := range order[p][:m] {
				counts = append(counts, float64(within(q, l.alpha*r)))
			}
			nHat := stats.Mean(counts)
			if nHat == 0 {
				continue
			}
			mdef := 1 - float64(within(p, l.alpha*r))/nHat
			sigma := stats.Std(counts) / nHat
			if sigma == 0 {
				continue
			}

			scores[p] = mdef / sigma
			if mdef > l.k*sigma {
				break
			}
		}
	}

	labels, threshold := detectors.Label(scores, params.Contamination)
	return detectors.Result{
		Labels: labels,
		Scores: scores,
		Diagnostics: map[string]float64{
			"LOCI Threshold": threshold,
			"LOCI Alpha":     l.alpha,
		},
	}, nil
}

// radii returns the critical sampling radii for a point: the distances to
// the other points and those distances divided by alpha, ascending and
// thinned to at most maxRadii values. The largest radius is always kept.
func (l *LOCI) radii(distances []float64) []float64 {
	var critical []float64
	maxDist := distances[len(distances)-1]
	for _, d := range distances[1:] {
		if d <= 0 {
			continue
		}
		critical = append(critical, d)
		if scaled := d / l.alpha; scaled <= maxDist {
			critical = append(critical, scaled)
		}
	}
	if len(critical) == 0 {
		return nil
	}
	sort.Float64s(critical)
	critical = dedupe(critical)

	if l.maxRadii <= 0 || len(critical) <= l.maxRadii {
		return critical
	}
	stride := int(math.Ceil(float64(len(critical)) / float64(l.maxRadii)))
	thinned := make([]float64, 0, l.maxRadii+1)
	for i := 0; i < len(critical); i += stride {
		thinned = append(thinned, critical[i])
	}
	if last := critical[len(critical)-1]; thinned[len(thinned)-1] != last {
		thinned = append(thinned, last)
	}
	return thinned
}

func argsort(row []float64) ([]int, []float64) {
	idx := make([]int, len(row))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return row[idx[a]] < row[idx[b]]
	})
	vals := make([]float64, len(row))
	for i, j := range idx {
		vals[i] = row[j]
	}
	return idx, vals
}

func dedupe(sorted []float64) []float64 {
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
