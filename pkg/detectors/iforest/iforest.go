// Package iforest implements the Isolation Forest algorithm for anomaly detection.
package iforest

import (
	"context"
	"math"
	"math/rand"

	"github.com/hed1ad/ghostml/pkg/detectors"
)

// IsolationForest scores rows by how quickly random axis-aligned splits
// isolate them. Each Detect call grows a fresh forest from the params seed,
// so results are deterministic for fixed input.
type IsolationForest struct {
	nTrees     int
	sampleSize int
	seed       *int64
}

// iTree represents a single isolation tree.
type iTree struct {
	root *node
}

// node is a node in the isolation tree.
type node struct {
	// Split parameters (for internal nodes)
	splitFeature int
	splitValue   float64

	left  *node
	right *node

	// Leaf information
	size int // number of samples that reached this leaf
}

// forest is the per-call state while growing trees.
type forest struct {
	rng      *rand.Rand
	maxDepth int
	trees    []*iTree
	avgPath  float64
}

// Option configures an IsolationForest.
type Option func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *IsolationForest) {
		f.nTrees = n
	}
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *IsolationForest) {
		f.sampleSize = n
	}
}

// WithSeed pins the random seed, overriding Params.RandomSeed.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.seed = &seed
	}
}

// New creates a new IsolationForest with the given options.
func New(opts ...Option) *IsolationForest {
	f := &IsolationForest{
		nTrees:     100,
		sampleSize: 256,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Detect implements detectors.Detector. NNeighbors is ignored.
func (f *IsolationForest) Detect(ctx context.Context, data [][]float64, params detectors.Params) (detectors.Result, error) {
	if err := detectors.Validate(data, params); err != nil {
		return detectors.Result{}, err
	}

	seed := params.RandomSeed
	if f.seed != nil {
		seed = *f.seed
	}

	nSamples := len(data)
	nFeatures := len(data[0])

	sampleSize := f.sampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}

	fr := &forest{
		rng:      rand.New(rand.NewSource(seed)),
		maxDepth: int(math.Ceil(math.Log2(float64(sampleSize)))),
		trees:    make([]*iTree, f.nTrees),
		avgPath:  averagePathLength(float64(sampleSize)),
	}

	for i := 0; i < f.nTrees; i++ {
		if err := ctx.Err(); err != nil {
			return detectors.Result{}, err
		}
		// Sample without replacement
		indices := fr.rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}
		fr.trees[i] = &iTree{root: fr.buildNode(sample, nFeatures, 0)}
	}

	scores := make([]float64, nSamples)
	for i, row := range data {
		scores[i] = fr.score(row)
	}

	labels, threshold := detectors.Label(scores, params.Contamination)
	return detectors.Result{
		Labels: labels,
		Scores: scores,
		Diagnostics: map[string]float64{
			"IForest Contamination":       params.Contamination,
			"IForest Threshold":           threshold,
			"IForest Average Path Length": fr.avgPath,
		},
	}, nil
}

func (fr *forest) buildNode(data [][]float64, nFeatures, depth int) *node {
	n := len(data)

	// Terminal conditions
	if depth >= fr.maxDepth || n <= 1 {
		return &node{size: n}
	}

	feature := fr.rng.Intn(nFeatures)

	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}

	// If all values are the same, return leaf
	if minVal == maxVal {
		return &node{size: n}
	}

	splitValue := minVal + fr.rng.Float64()*(maxVal-minVal)

	var leftData, rightData [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	return &node{
		splitFeature: feature,
		splitValue:   splitValue,
		left:         fr.buildNode(leftData, nFeatures, depth+1),
		right:        fr.buildNode(rightData, nFeatures, depth+1),
	}
}

// score returns 2^(-E[h(x)] / c(n)); higher is more anomalous.
func (fr *forest) score(sample []float64) float64 {
	if fr.avgPath == 0 {
		return 0
	}
	var totalPath float64
	for _, tree := range fr.trees {
		totalPath += pathLength(sample, tree.root, 0)
	}
	avgPath := totalPath / float64(len(fr.trees))
	return math.Pow(2, -avgPath/fr.avgPath)
}

// pathLength calculates the path length for a sample in a tree.
func pathLength(sample []float64, n *node, currentDepth int) float64 {
	if n.left == nil && n.right == nil {
		// Leaf node: add expected path length for remaining isolation
		return float64(currentDepth) + averagePathLength(float64(n.size))
	}

	if sample[n.splitFeature] < n.splitValue {
		return pathLength(sample, n.left, currentDepth+1)
	}
	return pathLength(sample, n.right, currentDepth+1)
}

// averagePathLength returns the average path length of unsuccessful search in BST.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	// c(n) = 2*H(n-1) - 2*(n-1)/n, with H(i) ~ ln(i) + Euler-Mascheroni constant
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}
