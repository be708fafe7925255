// Package stats provides the numeric reductions shared by detectors and the ensemble.
//
// Quantiles use linear interpolation between closest ranks, so results line up
// with the usual dataframe/array library defaults.
package stats

import (
	"math"
	"slices"
	"sort"
)

// Sorted returns a sorted copy of data.
func Sorted(data []float64) []float64 {
	sorted := slices.Clone(data)
	sort.Float64s(sorted)
	return sorted
}

// Quantile returns the q-quantile of data, q in [0, 1].
// It returns 0 for empty input.
func Quantile(data []float64, q float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return quantileSorted(Sorted(data), q)
}

func quantileSorted(sorted []float64, q float64) float64 {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	index := q * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Percentile returns the p-th percentile of data, p in [0, 100].
func Percentile(data []float64, p float64) float64 {
	return Quantile(data, p/100)
}

// Median returns the median of data, averaging the two middle values for
// even-length input. It returns 0 for empty input.
func Median(data []float64) float64 {
	return Quantile(data, 0.5)
}

// Mean returns the arithmetic mean of data, or 0 for empty input.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// Std returns the population standard deviation of data.
func Std(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean := Mean(data)
	var ss float64
	for _, v := range data {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(data)))
}

// Skewness returns the biased sample skewness m3 / m2^1.5.
// A constant column has zero skewness.
func Skewness(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean := Mean(data)
	var m2, m3 float64
	for _, v := range data {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	n := float64(len(data))
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}
	return m3 / math.Pow(m2, 1.5)
}

// Sign returns -1, 0 or 1 according to the sign of v.
func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// ECDF evaluates the empirical cumulative distribution of data at each of
// its own points: the fraction of values less than or equal to data[i].
func ECDF(data []float64) []float64 {
	sorted := Sorted(data)
	n := float64(len(sorted))
	out := make([]float64, len(data))
	for i, v := range data {
		// first index strictly greater than v
		idx := sort.Search(len(sorted), func(j int) bool { return sorted[j] > v })
		out[i] = float64(idx) / n
	}
	return out
}

// SecondLargest returns the second-highest value of data counted by row,
// so tied maxima return the maximum itself. With a single value it returns
// that value, and 0 for empty input.
func SecondLargest(data []float64) float64 {
	switch len(data) {
	case 0:
		return 0
	case 1:
		return data[0]
	}
	sorted := Sorted(data)
	return sorted[len(sorted)-2]
}

// MajorityVote reduces label columns to one label per row. A row is true only
// when strictly more than half of the columns say so; ties resolve to false.
// Every column must have the same length.
func MajorityVote(columns [][]bool) []bool {
	if len(columns) == 0 {
		return nil
	}
	out := make([]bool, len(columns[0]))
	for i := range out {
		votes := 0
		for _, col := range columns {
			if col[i] {
				votes++
			}
		}
		out[i] = 2*votes > len(columns)
	}
	return out
}

// RowMedian reduces score columns to their per-row median.
// Every column must have the same length.
func RowMedian(columns [][]float64) []float64 {
	if len(columns) == 0 {
		return nil
	}
	out := make([]float64, len(columns[0]))
	row := make([]float64, len(columns))
	for i := range out {
		for j, col := range columns {
			row[j] = col[i]
		}
		out[i] = Median(row)
	}
	return out
}

// Euclidean returns the Euclidean distance between a and b.
func Euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// DistanceMatrix returns the symmetric pairwise Euclidean distances of data rows.
func DistanceMatrix(data [][]float64) [][]float64 {
	n := len(data)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := Euclidean(data[i], data[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// Column extracts column j of a row-major matrix.
func Column(data [][]float64, j int) []float64 {
	col := make([]float64, len(data))
	for i, row := range data {
		col[i] = row[j]
	}
	return col
}

// Finite replaces NaN and infinite values with 0.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
