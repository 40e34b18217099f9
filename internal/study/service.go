package study

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/mrcode/bioclear/internal/decay"
	"github.com/mrcode/bioclear/internal/estimator"
	"github.com/mrcode/bioclear/internal/logger"
	"github.com/mrcode/bioclear/internal/metrics"
	"github.com/mrcode/bioclear/internal/models"
)

// ErrInvalidRequest is returned for thresholds, horizons or sample counts that cannot be evaluated
var ErrInvalidRequest = errors.New("invalid request")

// MaxCurvePoints bounds the points sampled across all records in one Curves call
const MaxCurvePoints = 2000000

// HalfLifeEstimator resolves a patient profile into a half-life
type HalfLifeEstimator interface {
	Estimate(p models.PatientProfile) (estimator.Estimate, error)
	Mode() estimator.Mode
}

// Notifier receives alerts raised while patients are added
type Notifier interface {
	OutOfRange(patient string, warnings []string)
	ProlongedClearance(patient string, hours float64)
}

// AddResult is the outcome of adding one patient
type AddResult struct {
	Index    int                `json:"index"`
	Record   models.StudyRecord `json:"record"`
	Warnings []string           `json:"warnings,omitempty"`
}

// Service owns a study and the estimator used to fill it
type Service struct {
	mu        sync.RWMutex
	estimator HalfLifeEstimator
	notifier  Notifier

	addMu    sync.Mutex // Serializes default naming with the append
	study    *Study
	settings *models.Settings
	log      *logger.Logger
}

// NewService creates a study service. A nil estimator leaves the service in
// the unavailable state: every AddPatient call fails with
// estimator.ErrEstimatorUnavailable while existing records stay readable.
func NewService(est HalfLifeEstimator, settings *models.Settings, log *logger.Logger) *Service {
	if settings == nil {
		settings = models.DefaultSettings()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		estimator: est,
		study:     New(),
		settings:  settings,
		log:       log.With("component", "study"),
	}
}

// SetNotifier installs an alert receiver
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Available reports whether an estimator is loaded
func (s *Service) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.estimator != nil
}

// Mode returns the estimator's mode, or empty when unavailable
func (s *Service) Mode() estimator.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.estimator == nil {
		return ""
	}
	return s.estimator.Mode()
}

// Study returns the underlying study
func (s *Service) Study() *Study {
	return s.study
}

// Settings returns a snapshot of the current settings
func (s *Service) Settings() *models.Settings {
	return s.settings.Clone()
}

// AddPatient estimates a half-life for the profile and appends it to the study.
// An empty name becomes "Patient N" and a zero dose takes the default dose.
func (s *Service) AddPatient(p models.PatientProfile) (AddResult, error) {
	s.mu.RLock()
	est, notifier := s.estimator, s.notifier
	s.mu.RUnlock()

	if est == nil {
		metrics.EstimationFailures.WithLabelValues("unavailable").Inc()
		return AddResult{}, estimator.ErrEstimatorUnavailable
	}

	settings := s.settings.Clone()

	s.addMu.Lock()
	defer s.addMu.Unlock()

	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = fmt.Sprintf("Patient %d", s.study.Len()+1)
	}
	if p.Dose == 0 {
		p.Dose = settings.DefaultDose
	}

	if err := p.Validate(); err != nil {
		metrics.EstimationFailures.WithLabelValues(failureReason(err)).Inc()
		return AddResult{}, err
	}

	estimate, err := est.Estimate(p)
	if err != nil {
		metrics.EstimationFailures.WithLabelValues(failureReason(err)).Inc()
		s.log.Warn("Estimation failed", "patient", p.Name, "error", err)
		return AddResult{}, err
	}

	record := models.StudyRecord{
		Name:           p.Name,
		Drug:           estimate.Drug,
		BMI:            p.BMI,
		Age:            p.Age,
		Dose:           p.Dose,
		HalfLifeHours:  estimate.HalfLifeHours,
		PredictedHours: estimate.PredictedHours,
		Multiplier:     estimate.Multiplier,
		Mode:           string(estimate.Mode),
	}

	if len(estimate.Warnings) > 0 {
		s.log.Warn("Patient outside training distribution", "patient", p.Name, "warnings", estimate.Warnings)
		if notifier != nil {
			notifier.OutOfRange(p.Name, estimate.Warnings)
		}
	}

	index := s.study.Add(record)
	metrics.PatientsAdded.Inc()
	s.log.Info("Patient added",
		"patient", p.Name,
		"drug", record.Drug,
		"half_life_hours", record.HalfLifeHours,
		"mode", record.Mode,
	)

	if hours, err := decay.TimeToThreshold(record.Dose, record.HalfLifeHours, settings.DetectionThreshold); err == nil {
		if settings.GetClearanceStatus(hours, true) == models.ClearanceProlonged && notifier != nil {
			notifier.ProlongedClearance(p.Name, hours)
		}
	}

	return AddResult{Index: index, Record: record, Warnings: estimate.Warnings}, nil
}

// Clear empties the study
func (s *Service) Clear() int {
	n := s.study.Clear()
	metrics.StudiesCleared.Inc()
	s.log.Info("Study cleared", "records", n)
	return n
}

// Curves samples a concentration curve for every record. Zero horizon or
// samples take the settings defaults.
func (s *Service) Curves(horizonHours float64, samples int) ([]models.PatientCurve, error) {
	settings := s.settings.Clone()
	if horizonHours == 0 {
		horizonHours = settings.HorizonHours
	}
	if samples == 0 {
		samples = settings.SampleCount
	}
	threshold := settings.DetectionThreshold

	records := s.study.Records()
	if samples > 0 && len(records) > MaxCurvePoints/samples {
		return nil, fmt.Errorf("%w: %d records x %d samples exceeds %d points", ErrInvalidRequest, len(records), samples, MaxCurvePoints)
	}
	curves := make([]models.PatientCurve, 0, len(records))

	for _, r := range records {
		curve, err := decay.Curve(r.Dose, r.HalfLifeHours, horizonHours, samples)
		if err != nil {
			if errors.Is(err, decay.ErrInvalidSampleCount) {
				return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
			}
			return nil, fmt.Errorf("curve for %q: %w", r.Name, err)
		}

		hours, reachable, err := clearTime(r, threshold)
		if err != nil {
			return nil, err
		}

		curves = append(curves, models.PatientCurve{
			Label:          r.Label(),
			Record:         r,
			Curve:          curve,
			ClearTimeHours: hours,
			Reachable:      reachable,
		})
	}

	return curves, nil
}

// Clearance is the detection-window result for one record
type Clearance struct {
	Name           string  `json:"name"`
	Drug           string  `json:"drug,omitempty"`
	HalfLifeHours  float64 `json:"halfLifeHours"`
	Dose           float64 `json:"dose"`
	ClearTimeHours float64 `json:"clearTimeHours"`
	Reachable      bool    `json:"reachable"`
	Status         string  `json:"status"`
}

// ClearanceTimes computes time-to-threshold for every record. A zero
// threshold takes the settings default.
func (s *Service) ClearanceTimes(threshold float64) ([]Clearance, error) {
	settings := s.settings.Clone()
	threshold, err := resolveThreshold(threshold, settings)
	if err != nil {
		return nil, err
	}

	records := s.study.Records()
	out := make([]Clearance, 0, len(records))

	for _, r := range records {
		hours, reachable, err := clearTime(r, threshold)
		if err != nil {
			return nil, err
		}
		out = append(out, Clearance{
			Name:           r.Name,
			Drug:           r.Drug,
			HalfLifeHours:  r.HalfLifeHours,
			Dose:           r.Dose,
			ClearTimeHours: hours,
			Reachable:      reachable,
			Status:         settings.GetClearanceStatus(hours, reachable),
		})
	}

	return out, nil
}

func resolveThreshold(threshold float64, settings *models.Settings) (float64, error) {
	if threshold == 0 {
		threshold = settings.DetectionThreshold
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return 0, fmt.Errorf("%w: threshold must be positive, got %v", ErrInvalidRequest, threshold)
	}
	return threshold, nil
}

// clearTime returns the clearance time of a record; an unreachable threshold
// is reported through the bool, never as an error.
func clearTime(r models.StudyRecord, threshold float64) (float64, bool, error) {
	hours, err := decay.TimeToThreshold(r.Dose, r.HalfLifeHours, threshold)
	switch {
	case errors.Is(err, decay.ErrThresholdUnreachable):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("clearance for %q: %w", r.Name, err)
	}
	return hours, true, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidProfile):
		return "invalid_profile"
	case errors.Is(err, estimator.ErrUnknownDrug):
		return "unknown_drug"
	case errors.Is(err, decay.ErrInvalidHalfLife):
		return "invalid_half_life"
	case errors.Is(err, estimator.ErrEstimatorUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
