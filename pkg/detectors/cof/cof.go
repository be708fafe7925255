// Package cof implements the Connectivity-based Outlier Factor detector.
//
// COF compares the average chaining distance of a point along its nearest
// neighbor path with that of its neighbors. Points whose chain is long
// relative to their neighborhood score above 1.
package cof

import (
	"context"
	"fmt"
	"sort"

	"github.com/hed1ad/ghostml/pkg/detectors"
	"github.com/hed1ad/ghostml/pkg/stats"
)

// COF is a stateless Connectivity-based Outlier Factor detector.
type COF struct{}

// New creates a COF detector.
func New() *COF {
	return &COF{}
}

// Detect implements detectors.Detector. params.NNeighbors must be at least 1
// and smaller than the number of rows.
func (c *COF) Detect(ctx context.Context, data [][]float64, params detectors.Params) (detectors.Result, error) {
	if err := detectors.Validate(data, params); err != nil {
		return detectors.Result{}, err
	}

	n := len(data)
	k := params.NNeighbors
	if k < 1 || k >= n {
		return detectors.Result{}, fmt.Errorf("%w: %d for %d rows", detectors.ErrNeighbors, k, n)
	}

	dist := stats.DistanceMatrix(data)

	paths := make([][]int, n)
	acDist := make([]float64, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return detectors.Result{}, err
		}
		paths[i] = nearestPath(dist[i], i)
		acDist[i] = chainingDistance(dist, paths[i], k)
	}

	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for _, nb := range paths[i][1 : k+1] {
			sum += acDist[nb]
		}
		scores[i] = stats.Finite(acDist[i] * float64(k) / sum)
	}

	labels, threshold := detectors.Label(scores, params.Contamination)
	return detectors.Result{
		Labels: labels,
		Scores: scores,
		Diagnostics: map[string]float64{
			"COF Contamination": params.Contamination,
			"COF Threshold":     threshold,
			"COF Neighbors":     float64(k),
		},
	}, nil
}

// nearestPath returns all row indices ordered by distance from self, with
// self first. Ties keep index order.
func nearestPath(row []float64, self int) []int {
	path := make([]int, 0, len(row))
	for j := range row {
		if j != self {
			path = append(path, j)
		}
	}
	sort.SliceStable(path, func(a, b int) bool {
		return row[path[a]] < row[path[b]]
	})
	return append([]int{self}, path...)
}

// chainingDistance is the weighted sum of the set-based path costs of the
// first k neighbors in path. Earlier links weigh more.
func chainingDistance(dist [][]float64, path []int, k int) float64 {
	var acd float64
	kPlus := float64(k + 1)
	for j := 0; j < k; j++ {
		next := path[j+1]
		cost := dist[next][path[0]]
		for _, prev := range path[1 : j+1] {
			if d := dist[next][prev]; d < cost {
				cost = d
			}
		}
		weight := 2 * (kPlus - float64(j+1)) / (kPlus * float64(k))
		acd += weight * cost
	}
	return acd
}
