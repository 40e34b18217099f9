// Package models contains data structures used throughout the application
package models

// CurvePoint represents a single sampled concentration value
type CurvePoint struct {
	TimeHours     float64 `json:"timeHours"`
	Concentration float64 `json:"concentration"` // ng/mL
}

// ConcentrationCurve is a deterministic sampling of a single-exponential decay
type ConcentrationCurve struct {
	Dose          float64      `json:"dose"`
	HalfLifeHours float64      `json:"halfLifeHours"`
	HorizonHours  float64      `json:"horizonHours"`
	Points        []CurvePoint `json:"points"`
}

// Values returns the concentrations in time order
func (c *ConcentrationCurve) Values() []float64 {
	values := make([]float64, len(c.Points))
	for i, p := range c.Points {
		values[i] = p.Concentration
	}
	return values
}

// PatientCurve pairs a study record with its rendered curve
type PatientCurve struct {
	Label          string             `json:"label"`
	Record         StudyRecord        `json:"record"`
	Curve          ConcentrationCurve `json:"curve"`
	ClearTimeHours float64            `json:"clearTimeHours"`
	Reachable      bool               `json:"reachable"` // False if the threshold is above the dose
}
