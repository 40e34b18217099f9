package estimator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrcode/bioclear/internal/decay"
	"github.com/mrcode/bioclear/internal/models"
)

// ErrUnknownDrug is returned when a profile names a drug missing from the reference table
var ErrUnknownDrug = errors.New("unknown drug")

// Mode selects how a prediction becomes a half-life. A study uses exactly one.
type Mode string

const (
	// ModeDirect uses the prediction as the half-life in hours
	ModeDirect Mode = "direct"
	// ModeHybrid divides the prediction by NormalizationHours and scales the drug baseline with it
	ModeHybrid Mode = "hybrid"
)

// NormalizationHours turns a prediction into a dimensionless multiplier in hybrid mode
const NormalizationHours = 24.0

// ParseMode parses a mode name; empty means direct
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDirect, "":
		return ModeDirect, nil
	case ModeHybrid:
		return ModeHybrid, nil
	default:
		return "", fmt.Errorf("unknown estimation mode %q (want %q or %q)", s, ModeDirect, ModeHybrid)
	}
}

// Estimate is the resolved half-life for one patient
type Estimate struct {
	HalfLifeHours  float64  `json:"halfLifeHours"`
	PredictedHours float64  `json:"predictedHours"`
	Multiplier     float64  `json:"multiplier,omitempty"`
	Drug           string   `json:"drug,omitempty"` // Canonical drug name from the reference table
	Mode           Mode     `json:"mode"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Estimator wraps a trained regressor with a fixed integration mode
type Estimator struct {
	model    Regressor
	mode     Mode
	drugs    *models.DrugTable
	artifact *Artifact
}

// New creates an Estimator around an already loaded regressor
func New(model Regressor, mode Mode, drugs *models.DrugTable) (*Estimator, error) {
	if model == nil {
		return nil, ErrEstimatorUnavailable
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = ModeDirect
	}
	if drugs == nil {
		drugs = models.DefaultDrugTable()
	}
	return &Estimator{model: model, mode: mode, drugs: drugs}, nil
}

// Open loads the artifact at path once and returns an Estimator over it.
// Any failure wraps ErrEstimatorUnavailable.
func Open(path string, mode Mode, drugs *models.DrugTable) (*Estimator, error) {
	artifact, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}

	model, err := artifact.Regressor()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEstimatorUnavailable, err)
	}

	e, err := New(model, mode, drugs)
	if err != nil {
		return nil, err
	}
	e.artifact = artifact
	return e, nil
}

// Mode returns the integration mode
func (e *Estimator) Mode() Mode {
	return e.mode
}

// Drugs returns the reference table used for drug resolution
func (e *Estimator) Drugs() *models.DrugTable {
	return e.drugs
}

// Artifact returns the loaded artifact, or nil if the model was injected directly
func (e *Estimator) Artifact() *Artifact {
	return e.artifact
}

// Predict returns the raw regressor output. Inputs are not range checked;
// values outside the training distribution are extrapolated silently.
func (e *Estimator) Predict(bmi float64, age int, reference float64) float64 {
	return e.model.Predict(NewFeatures(bmi, age, reference))
}

// Estimate resolves a profile into a half-life using the estimator's mode
func (e *Estimator) Estimate(p models.PatientProfile) (Estimate, error) {
	est := Estimate{
		Mode:     e.mode,
		Warnings: p.RangeWarnings(),
	}

	var baseline float64
	if strings.TrimSpace(p.Drug) != "" {
		drug, ok := e.drugs.Lookup(p.Drug)
		if !ok {
			return Estimate{}, fmt.Errorf("%w: %q", ErrUnknownDrug, p.Drug)
		}
		est.Drug = drug.Name
		baseline = drug.BaselineHalfLifeHours
	} else if e.mode == ModeHybrid {
		return Estimate{}, fmt.Errorf("%w: hybrid estimation needs a reference drug", ErrUnknownDrug)
	}

	est.PredictedHours = e.Predict(p.BMI, p.Age, ReferenceCovariate)

	switch e.mode {
	case ModeHybrid:
		est.Multiplier = est.PredictedHours / NormalizationHours
		est.HalfLifeHours = baseline * est.Multiplier
	default:
		est.HalfLifeHours = est.PredictedHours
	}

	if err := decay.ValidateHalfLife(est.HalfLifeHours); err != nil {
		return Estimate{}, fmt.Errorf("estimating %q: %w", p.Name, err)
	}

	return est, nil
}
