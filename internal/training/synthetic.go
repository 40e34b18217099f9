// Package training generates synthetic patient data and fits the half-life
// regressors consumed by the estimator package. It is only used offline.
package training

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/mrcode/bioclear/internal/estimator"
)

// Synthetic data rule parameters
const (
	BaseHalfLifeHours = 24.0 // THC-like base
	ReferenceBMI      = 22.0
	BMISlope          = 0.05
	NoiseStdDev       = 2.0
)

// Sample is one synthetic patient: features plus the observed half-life
type Sample struct {
	X        estimator.Features
	HalfLife float64
}

// GenerateSynthetic draws n patients with a fixed seed.
// Higher BMI and slower metabolism give a longer half-life.
func GenerateSynthetic(n int, seed int64) ([]Sample, error) {
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 samples, got %d", n)
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // Reproducible synthetic data, not security sensitive
	samples := make([]Sample, n)

	for i := range samples {
		bmi := 18 + 17*rng.Float64()          // U(18, 35)
		age := 20 + rng.Intn(40)              // [20, 60)
		metabolism := 0.8 + 0.4*rng.Float64() // U(0.8, 1.2)

		samples[i] = Sample{
			X:        estimator.NewFeatures(bmi, age, metabolism),
			HalfLife: ExpectedHalfLife(bmi, metabolism) + rng.NormFloat64()*NoiseStdDev,
		}
	}

	return samples, nil
}

// ExpectedHalfLife is the noise-free synthetic rule
func ExpectedHalfLife(bmi, metabolism float64) float64 {
	return BaseHalfLifeHours * (1 + (bmi-ReferenceBMI)*BMISlope) / metabolism
}

// rmse returns the root mean squared error of a regressor over samples
func rmse(model estimator.Regressor, samples []Sample) float64 {
	var sum float64
	for _, s := range samples {
		d := model.Predict(s.X) - s.HalfLife
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(samples)))
}
