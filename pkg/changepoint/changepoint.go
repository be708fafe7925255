// Package changepoint segments a (possibly multivariate) signal into
// piecewise-constant regimes.
package changepoint

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrSignal is returned for empty or ragged signals.
var ErrSignal = errors.New("invalid signal")

// Segmenter is the changepoint capability. Segment returns ordered breakpoint
// indices; each marks the end (exclusive) of a segment and the last one is
// always len(signal).
type Segmenter interface {
	Segment(ctx context.Context, signal [][]float64, penalty float64) ([]int, error)
}

// Pelt finds the optimal segmentation under a least-squares (L2) cost with a
// linear penalty per breakpoint, pruning candidates that can never win.
type Pelt struct {
	minSize int
	jump    int
}

// Option configures a Pelt segmenter.
type Option func(*Pelt)

// WithMinSize sets the minimum segment length.
func WithMinSize(n int) Option {
	return func(p *Pelt) {
		p.minSize = n
	}
}

// WithJump restricts candidate breakpoints to multiples of n.
func WithJump(n int) Option {
	return func(p *Pelt) {
		p.jump = n
	}
}

// NewPelt creates a PELT segmenter with minimum segment length 2 and jump 5.
func NewPelt(opts ...Option) *Pelt {
	p := &Pelt{minSize: 2, jump: 5}
	for _, opt := range opts {
		opt(p)
	}
	if p.minSize < 1 {
		p.minSize = 1
	}
	if p.jump < 1 {
		p.jump = 1
	}
	return p
}

// Segment implements Segmenter.
func (p *Pelt) Segment(ctx context.Context, signal [][]float64, penalty float64) ([]int, error) {
	cost, err := newL2(signal)
	if err != nil {
		return nil, err
	}
	if penalty < 0 {
		return nil, fmt.Errorf("penalty must be non-negative, got %v", penalty)
	}

	n := len(signal)
	if n < 2*p.minSize {
		return []int{n}, nil
	}

	// best[t] is the optimal penalized cost of signal[:t]; prev[t] the
	// start of the last segment in that optimum.
	best := map[int]float64{0: 0}
	prev := map[int]int{0: 0}
	admissible := []int{}

	for _, bkp := range p.candidates(n) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		newest := (bkp - p.minSize) / p.jump * p.jump
		if len(admissible) == 0 || admissible[len(admissible)-1] != newest {
			admissible = append(admissible, newest)
		}

		bestCost, bestStart := math.Inf(1), -1
		totals := make([]float64, len(admissible))
		for i, t := range admissible {
			base, ok := best[t]
			if !ok {
				totals[i] = math.Inf(1)
				continue
			}
			totals[i] = base + cost.error(t, bkp) + penalty
			if totals[i] < bestCost {
				bestCost, bestStart = totals[i], t
			}
		}
		if bestStart < 0 {
			continue
		}
		best[bkp] = bestCost
		prev[bkp] = bestStart

		kept := admissible[:0]
		for i, t := range admissible {
			if totals[i] <= bestCost+penalty {
				kept = append(kept, t)
			}
		}
		admissible = kept
	}

	var bkps []int
	for end := n; end > 0; end = prev[end] {
		bkps = append(bkps, end)
	}
	slices.Reverse(bkps)
	return bkps, nil
}

// candidates lists the admissible segment ends: multiples of jump no
// smaller than minSize, then n.
func (p *Pelt) candidates(n int) []int {
	var out []int
	for k := 0; k < n; k += p.jump {
		if k >= p.minSize {
			out = append(out, k)
		}
	}
	return append(out, n)
}

// l2 evaluates the within-segment sum of squared deviations from the mean
// in O(dims) using prefix sums.
type l2 struct {
	sum   [][]float64
	sumSq [][]float64
}

func newL2(signal [][]float64) (*l2, error) {
	if len(signal) == 0 || len(signal[0]) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrSignal)
	}
	dims := len(signal[0])
	c := &l2{
		sum:   make([][]float64, len(signal)+1),
		sumSq: make([][]float64, len(signal)+1),
	}
	c.sum[0] = make([]float64, dims)
	c.sumSq[0] = make([]float64, dims)
	for i, row := range signal {
		if len(row) != dims {
			return nil, fmt.Errorf("%w: row %d has %d dimensions, expected %d", ErrSignal, i, len(row), dims)
		}
		c.sum[i+1] = make([]float64, dims)
		c.sumSq[i+1] = make([]float64, dims)
		for d, v := range row {
			c.sum[i+1][d] = c.sum[i][d] + v
			c.sumSq[i+1][d] = c.sumSq[i][d] + v*v
		}
	}
	return c, nil
}

func (c *l2) error(start, end int) float64 {
	length := float64(end - start)
	var total float64
	for d := range c.sum[0] {
		s := c.sum[end][d] - c.sum[start][d]
		total += c.sumSq[end][d] - c.sumSq[start][d] - s*s/length
	}
	return total
}

// Univariate lifts a one-dimensional series into the signal shape Segment expects.
func Univariate(series []float64) [][]float64 {
	signal := make([][]float64, len(series))
	for i, v := range series {
		signal[i] = []float64{v}
	}
	return signal
}
