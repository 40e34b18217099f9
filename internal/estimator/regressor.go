// Package estimator predicts elimination half-lives from patient covariates
// using a regression model trained offline.
package estimator

import (
	"fmt"
	"math"
)

// Feature positions in a Features vector
const (
	FeatureBMI = iota
	FeatureAge
	FeatureReference
	featureCount
)

// ReferenceCovariate is the placeholder third feature passed at prediction time
const ReferenceCovariate = 1.0

// FeatureNames lists the feature names in vector order
var FeatureNames = []string{"bmi", "age", "reference_covariate"}

// Features is the input vector of a regressor: bmi, age, reference covariate
type Features [featureCount]float64

// NewFeatures builds a feature vector
func NewFeatures(bmi float64, age int, reference float64) Features {
	return Features{bmi, float64(age), reference}
}

// Regressor maps a feature vector to a predicted half-life in hours.
// Implementations must be read-only after construction.
type Regressor interface {
	Predict(x Features) float64
}

// TreeNode is one node of a flattened regression tree.
// A node with Feature == -1 is a leaf and carries Value.
type TreeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

// LeafFeature marks a leaf node
const LeafFeature = -1

// Tree is a binary regression tree stored as a node array rooted at index 0
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Predict walks the tree. Samples with x[f] <= threshold go left.
func (t *Tree) Predict(x Features) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature == LeafFeature {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate checks indices so Predict can never loop or go out of bounds.
// Children must point forward, which rules out cycles.
func (t *Tree) validate() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature == LeafFeature {
			if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
				return fmt.Errorf("node %d: non-finite leaf value", i)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= featureCount {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		if math.IsNaN(n.Threshold) {
			return fmt.Errorf("node %d: NaN threshold", i)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// Depth returns the length of the longest root-to-leaf path
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature == LeafFeature {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// Forest averages the predictions of bagged regression trees
type Forest struct {
	Trees []Tree `json:"trees"`
}

// Predict returns the mean of all tree predictions
func (f *Forest) Predict(x Features) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

func (f *Forest) validate() error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// Linear is an ordinary least squares model
type Linear struct {
	Intercept    float64               `json:"intercept"`
	Coefficients [featureCount]float64 `json:"coefficients"`
}

// Predict returns intercept + w·x
func (l *Linear) Predict(x Features) float64 {
	y := l.Intercept
	for i, w := range l.Coefficients {
		y += w * x[i]
	}
	return y
}

func (l *Linear) validate() error {
	if math.IsNaN(l.Intercept) || math.IsInf(l.Intercept, 0) {
		return fmt.Errorf("non-finite intercept")
	}
	for i, w := range l.Coefficients {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("non-finite coefficient %d", i)
		}
	}
	return nil
}

// RegressorFunc adapts a plain function to the Regressor interface
type RegressorFunc func(x Features) float64

// Predict calls f(x)
func (f RegressorFunc) Predict(x Features) float64 {
	return f(x)
}
