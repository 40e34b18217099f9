// Package decay implements the single-exponential elimination model used to
// turn a half-life into concentration curves and clearance times.
//
// Concentration follows c(t) = dose * exp(-k*t) with k = ln(2) / halfLife.
// Every function here is pure and safe for concurrent use.
package decay

import (
	"errors"
	"fmt"
	"math"

	"github.com/mrcode/bioclear/internal/models"
)

// MaxSampleCount bounds the points in one curve
const MaxSampleCount = models.MaxSampleCount

var (
	// ErrInvalidHalfLife is returned for half-lives that are not strictly positive and finite
	ErrInvalidHalfLife = errors.New("invalid half-life")
	// ErrInvalidDose is returned for doses that are not strictly positive and finite
	ErrInvalidDose = errors.New("invalid dose")
	// ErrInvalidSampleCount is returned when a curve is requested with too few or too many samples or a negative horizon
	ErrInvalidSampleCount = errors.New("invalid curve sampling")
	// ErrThresholdUnreachable is returned when the threshold is above the starting dose
	ErrThresholdUnreachable = errors.New("threshold unreachable")
)

// ValidateHalfLife checks that a half-life can be used as a divisor
func ValidateHalfLife(halfLifeHours float64) error {
	if math.IsNaN(halfLifeHours) || math.IsInf(halfLifeHours, 0) || halfLifeHours <= 0 {
		return fmt.Errorf("%w: %v hours", ErrInvalidHalfLife, halfLifeHours)
	}
	return nil
}

func validateDose(dose float64) error {
	if math.IsNaN(dose) || math.IsInf(dose, 0) || dose <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDose, dose)
	}
	return nil
}

// EliminationConstant returns k = ln(2) / halfLife in 1/hours
func EliminationConstant(halfLifeHours float64) (float64, error) {
	if err := ValidateHalfLife(halfLifeHours); err != nil {
		return 0, err
	}
	return math.Ln2 / halfLifeHours, nil
}

// FractionRemaining returns the share of the initial dose still present after t hours
func FractionRemaining(halfLifeHours, t float64) (float64, error) {
	k, err := EliminationConstant(halfLifeHours)
	if err != nil {
		return 0, err
	}
	return math.Exp(-k * t), nil
}

// ConcentrationAt returns the concentration at time t
func ConcentrationAt(dose, halfLifeHours, t float64) (float64, error) {
	if err := validateDose(dose); err != nil {
		return 0, err
	}
	remaining, err := FractionRemaining(halfLifeHours, t)
	if err != nil {
		return 0, err
	}
	return dose * remaining, nil
}

// Curve samples sampleCount evenly spaced points over [0, horizonHours],
// both ends included. A single sample yields only t=0.
func Curve(dose, halfLifeHours, horizonHours float64, sampleCount int) (models.ConcentrationCurve, error) {
	k, err := EliminationConstant(halfLifeHours)
	if err != nil {
		return models.ConcentrationCurve{}, err
	}
	if err := validateDose(dose); err != nil {
		return models.ConcentrationCurve{}, err
	}
	if sampleCount < 1 || sampleCount > MaxSampleCount {
		return models.ConcentrationCurve{}, fmt.Errorf("%w: sample count %d not in 1-%d", ErrInvalidSampleCount, sampleCount, MaxSampleCount)
	}
	if math.IsNaN(horizonHours) || math.IsInf(horizonHours, 0) || horizonHours < 0 {
		return models.ConcentrationCurve{}, fmt.Errorf("%w: horizon %v hours", ErrInvalidSampleCount, horizonHours)
	}

	points := make([]models.CurvePoint, sampleCount)
	step := 0.0
	if sampleCount > 1 {
		step = horizonHours / float64(sampleCount-1)
	}

	for i := range points {
		t := float64(i) * step
		if i == sampleCount-1 && sampleCount > 1 {
			t = horizonHours // Pin the last sample to the horizon exactly
		}
		points[i] = models.CurvePoint{
			TimeHours:     t,
			Concentration: dose * math.Exp(-k*t),
		}
	}

	return models.ConcentrationCurve{
		Dose:          dose,
		HalfLifeHours: halfLifeHours,
		HorizonHours:  horizonHours,
		Points:        points,
	}, nil
}

// TimeToThreshold returns the hours until the concentration falls to threshold.
// A threshold equal to the dose is reached at t=0; a higher one never is.
func TimeToThreshold(dose, halfLifeHours, threshold float64) (float64, error) {
	k, err := EliminationConstant(halfLifeHours)
	if err != nil {
		return 0, err
	}
	if err := validateDose(dose); err != nil {
		return 0, err
	}
	if math.IsNaN(threshold) || threshold <= 0 {
		// ln(0) would be -Inf, so a zero threshold is never reached either
		return 0, fmt.Errorf("%w: threshold %v must be positive", ErrThresholdUnreachable, threshold)
	}
	if threshold > dose {
		return 0, fmt.Errorf("%w: threshold %v above dose %v", ErrThresholdUnreachable, threshold, dose)
	}
	if threshold == dose {
		return 0, nil
	}

	return -math.Log(threshold/dose) / k, nil
}
