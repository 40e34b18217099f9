package training

import (
	"fmt"
	"math"
	"time"

	"github.com/mrcode/bioclear/internal/estimator"
)

// FitLinear fits an ordinary least squares model through the normal equations
func FitLinear(samples []Sample) (*estimator.Artifact, error) {
	const dim = 4 // intercept + 3 features
	if len(samples) < dim {
		return nil, fmt.Errorf("need at least %d samples, got %d", dim, len(samples))
	}

	// Accumulate X'X | X'y as an augmented matrix
	var m [dim][dim + 1]float64
	for _, s := range samples {
		row := [dim]float64{1, s.X[0], s.X[1], s.X[2]}
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				m[i][j] += row[i] * row[j]
			}
			m[i][dim] += row[i] * s.HalfLife
		}
	}

	// Gaussian elimination with partial pivoting
	for col := 0; col < dim; col++ {
		pivot := col
		for r := col + 1; r < dim; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular design matrix (feature %d has no variance)", col)
		}
		m[col], m[pivot] = m[pivot], m[col]

		for r := 0; r < dim; r++ {
			if r == col {
				continue
			}
			factor := m[r][col] / m[col][col]
			for c := col; c <= dim; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	model := &estimator.Linear{Intercept: m[0][dim] / m[0][0]}
	for i := 1; i < dim; i++ {
		model.Coefficients[i-1] = m[i][dim] / m[i][i]
	}

	return &estimator.Artifact{
		Version:      estimator.ArtifactVersion,
		Kind:         estimator.KindLinear,
		Features:     append([]string(nil), estimator.FeatureNames...),
		TrainedAt:    time.Now().UTC(),
		Samples:      len(samples),
		TrainingRMSE: rmse(model, samples),
		Linear:       model,
	}, nil
}
