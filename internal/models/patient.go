// Package models contains data structures used throughout the application
package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidProfile is returned when a patient profile cannot be simulated at all
var ErrInvalidProfile = errors.New("invalid patient profile")

// Plausible and training ranges for patient covariates
const (
	PlausibleBMIMin = 15.0
	PlausibleBMIMax = 45.0
	PlausibleAgeMin = 18
	PlausibleAgeMax = 80

	TrainingBMIMin = 18.0
	TrainingBMIMax = 35.0
	TrainingAgeMin = 20
	TrainingAgeMax = 60
)

// PatientProfile represents a simulated patient as entered by the user
type PatientProfile struct {
	Name string  `json:"name" yaml:"name"`
	Drug string  `json:"drug,omitempty" yaml:"drug"` // Key into the reference drug table (optional)
	BMI  float64 `json:"bmi" yaml:"bmi"`
	Age  int     `json:"age" yaml:"age"`
	Dose float64 `json:"dose" yaml:"dose"` // Dose in mg
}

// Validate checks the hard constraints a profile must satisfy before estimation
func (p *PatientProfile) Validate() error {
	if math.IsNaN(p.Dose) || math.IsInf(p.Dose, 0) || p.Dose <= 0 {
		return fmt.Errorf("%w: dose must be positive, got %v", ErrInvalidProfile, p.Dose)
	}
	if math.IsNaN(p.BMI) || math.IsInf(p.BMI, 0) || p.BMI <= 0 {
		return fmt.Errorf("%w: bmi must be positive, got %v", ErrInvalidProfile, p.BMI)
	}
	if p.Age < 0 {
		return fmt.Errorf("%w: age must not be negative, got %d", ErrInvalidProfile, p.Age)
	}
	return nil
}

// RangeWarnings returns human-readable notes for covariates the estimator
// will have to extrapolate. An empty result means the profile sits inside
// the training distribution.
func (p *PatientProfile) RangeWarnings() []string {
	var warnings []string

	switch {
	case p.BMI < PlausibleBMIMin || p.BMI > PlausibleBMIMax:
		warnings = append(warnings, fmt.Sprintf("bmi %.1f outside plausible range %.0f-%.0f", p.BMI, PlausibleBMIMin, PlausibleBMIMax))
	case p.BMI < TrainingBMIMin || p.BMI > TrainingBMIMax:
		warnings = append(warnings, fmt.Sprintf("bmi %.1f outside training range %.0f-%.0f", p.BMI, TrainingBMIMin, TrainingBMIMax))
	}

	switch {
	case p.Age < PlausibleAgeMin || p.Age > PlausibleAgeMax:
		warnings = append(warnings, fmt.Sprintf("age %d outside plausible range %d-%d", p.Age, PlausibleAgeMin, PlausibleAgeMax))
	case p.Age < TrainingAgeMin || p.Age > TrainingAgeMax:
		warnings = append(warnings, fmt.Sprintf("age %d outside training range %d-%d", p.Age, TrainingAgeMin, TrainingAgeMax))
	}

	return warnings
}

// StudyRecord is one row of a study: the profile plus the resolved half-life
type StudyRecord struct {
	Name           string  `json:"name"`
	Drug           string  `json:"drug,omitempty"`
	BMI            float64 `json:"bmi"`
	Age            int     `json:"age"`
	Dose           float64 `json:"dose"`
	HalfLifeHours  float64 `json:"halfLifeHours"`
	PredictedHours float64 `json:"predictedHours"`       // Raw regressor output
	Multiplier     float64 `json:"multiplier,omitempty"` // Only set in hybrid mode
	Mode           string  `json:"mode"`
}

// Label returns the legend label used for charts
func (r *StudyRecord) Label() string {
	return fmt.Sprintf("%s (BMI: %.1f)", r.Name, r.BMI)
}
