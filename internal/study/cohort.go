package study

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mrcode/bioclear/internal/models"
)

// Cohort is a batch of patient profiles read from YAML:
//
//	patients:
//	  - name: Alice
//	    drug: THC
//	    bmi: 27.5
//	    age: 31
//	    dose: 100
type Cohort struct {
	Patients []models.PatientProfile `yaml:"patients"`
}

// LoadCohort reads a cohort file
func LoadCohort(path string) (*Cohort, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("reading cohort: %w", err)
	}

	var c Cohort
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing cohort: %w", err)
	}
	if len(c.Patients) == 0 {
		return nil, fmt.Errorf("cohort %s has no patients", path)
	}
	return &c, nil
}

// RowError ties an AddPatient failure to its cohort position
type RowError struct {
	Row  int // 1-based
	Name string
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (%s): %v", e.Row, e.Name, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// AddCohort adds every patient and keeps going past rejected rows
func (s *Service) AddCohort(c *Cohort) ([]AddResult, []*RowError) {
	var (
		results []AddResult
		errs    []*RowError
	)
	for i, p := range c.Patients {
		res, err := s.AddPatient(p)
		if err != nil {
			errs = append(errs, &RowError{Row: i + 1, Name: p.Name, Err: err})
			continue
		}
		results = append(results, res)
	}
	return results, errs
}
