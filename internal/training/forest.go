package training

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/mrcode/bioclear/internal/estimator"
)

// ForestOptions controls random forest training
type ForestOptions struct {
	Trees    int
	MaxDepth int
	MinLeaf  int // Minimum samples per leaf
	Seed     int64
}

// DefaultForestOptions returns the options used by `bioclear train`
func DefaultForestOptions() ForestOptions {
	return ForestOptions{
		Trees:    100,
		MaxDepth: 8,
		MinLeaf:  2,
		Seed:     42,
	}
}

// FitForest trains bagged regression trees on bootstrap resamples
func FitForest(samples []Sample, opts ForestOptions) (*estimator.Artifact, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("need at least 2 samples, got %d", len(samples))
	}
	if opts.Trees < 1 {
		return nil, fmt.Errorf("need at least one tree, got %d", opts.Trees)
	}
	if opts.MaxDepth < 1 {
		opts.MaxDepth = 1
	}
	if opts.MinLeaf < 1 {
		opts.MinLeaf = 1
	}

	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // Reproducible bootstrap, not security sensitive
	forest := &estimator.Forest{Trees: make([]estimator.Tree, opts.Trees)}

	for t := range forest.Trees {
		// Bootstrap resample with replacement
		idx := make([]int, len(samples))
		for i := range idx {
			idx[i] = rng.Intn(len(samples))
		}

		b := &treeBuilder{
			samples:  samples,
			maxDepth: opts.MaxDepth,
			minLeaf:  opts.MinLeaf,
		}
		b.build(idx, 0)
		forest.Trees[t] = estimator.Tree{Nodes: b.nodes}
	}

	return &estimator.Artifact{
		Version:      estimator.ArtifactVersion,
		Kind:         estimator.KindForest,
		Features:     append([]string(nil), estimator.FeatureNames...),
		TrainedAt:    time.Now().UTC(),
		Samples:      len(samples),
		Seed:         opts.Seed,
		TrainingRMSE: rmse(forest, samples),
		Forest:       forest,
	}, nil
}

// treeBuilder grows one CART regression tree in preorder so that children
// always sit after their parent in the node array.
type treeBuilder struct {
	samples  []Sample
	maxDepth int
	minLeaf  int
	nodes    []estimator.TreeNode
}

func (b *treeBuilder) build(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, estimator.TreeNode{
		Feature: estimator.LeafFeature,
		Value:   b.mean(idx),
	})

	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.samples[i].X[feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return self
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self] = estimator.TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      l,
		Right:     r,
	}
	return self
}

func (b *treeBuilder) mean(idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += b.samples[i].HalfLife
	}
	return sum / float64(len(idx))
}

// bestSplit finds the split with the largest reduction in squared error
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	var totalSum, totalSq float64
	for _, i := range idx {
		y := b.samples[i].HalfLife
		totalSum += y
		totalSq += y * y
	}
	parentSSE := totalSq - totalSum*totalSum/float64(n)

	bestGain := 1e-12
	sorted := make([]int, n)

	for f := 0; f < len(estimator.FeatureNames); f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.samples[sorted[a]].X[f] < b.samples[sorted[c]].X[f]
		})

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			y := b.samples[sorted[k]].HalfLife
			leftSum += y
			leftSq += y * y

			nl := k + 1
			nr := n - nl
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}

			lo := b.samples[sorted[k]].X[f]
			hi := b.samples[sorted[k+1]].X[f]
			if lo == hi {
				continue // Cannot separate equal values
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))

			if gain := parentSSE - sse; gain > bestGain {
				bestGain = gain
				feature = f
				threshold = lo + (hi-lo)/2
				ok = true
			}
		}
	}

	return feature, threshold, ok
}
