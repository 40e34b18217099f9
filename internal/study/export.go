package study

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/mrcode/bioclear/internal/metrics"
)

// ExportFilename is the suggested name of the CSV export
const ExportFilename = "bioclear_study_results.csv"

// CSVHeader is the column layout of the export
var CSVHeader = []string{"name", "drug", "bmi", "age", "half_life_hours", "dose", "clear_time_hours"}

// ExportCSV writes one row per record in insertion order. Records whose
// threshold is unreachable get an empty clear time.
func (s *Service) ExportCSV(w io.Writer, threshold float64) error {
	threshold, err := resolveThreshold(threshold, s.settings.Clone())
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	records := s.study.Records()
	for _, r := range records {
		hours, reachable, err := clearTime(r, threshold)
		if err != nil {
			return err
		}

		clearCell := ""
		if reachable {
			clearCell = formatFloat(hours)
		}

		row := []string{
			r.Name,
			r.Drug,
			formatFloat(r.BMI),
			strconv.Itoa(r.Age),
			formatFloat(r.HalfLifeHours),
			formatFloat(r.Dose),
			clearCell,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}

	metrics.ExportsWritten.WithLabelValues("csv").Inc()
	s.log.Info("Study exported", "format", "csv", "records", len(records))
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Stats are min/mean/max over a set of values
type Stats struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

func computeStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	st := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, v := range values {
		sum += v
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}
	st.Mean = sum / float64(len(values))
	return st
}

// Summary aggregates the study at a given threshold
type Summary struct {
	Count       int            `json:"count"`
	Mode        string         `json:"mode,omitempty"`
	Threshold   float64        `json:"threshold"`
	HalfLife    Stats          `json:"halfLife"`
	ClearTime   Stats          `json:"clearTime"` // Over reachable records only
	Unreachable int            `json:"unreachable"`
	ByDrug      map[string]int `json:"byDrug"`
	ByStatus    map[string]int `json:"byStatus"`
}

// NoDrug is the ByDrug key for records without a reference drug
const NoDrug = "(none)"

// Summary computes study statistics. A zero threshold takes the settings default.
func (s *Service) Summary(threshold float64) (Summary, error) {
	clearances, err := s.ClearanceTimes(threshold)
	if err != nil {
		return Summary{}, err
	}
	threshold, _ = resolveThreshold(threshold, s.settings.Clone())

	sum := Summary{
		Count:     len(clearances),
		Mode:      string(s.Mode()),
		Threshold: threshold,
		ByDrug:    make(map[string]int),
		ByStatus:  make(map[string]int),
	}

	halfLives := make([]float64, 0, len(clearances))
	clearTimes := make([]float64, 0, len(clearances))

	for _, c := range clearances {
		halfLives = append(halfLives, c.HalfLifeHours)
		if c.Reachable {
			clearTimes = append(clearTimes, c.ClearTimeHours)
		} else {
			sum.Unreachable++
		}

		drug := c.Drug
		if drug == "" {
			drug = NoDrug
		}
		sum.ByDrug[drug]++
		sum.ByStatus[c.Status]++
	}

	sum.HalfLife = computeStats(halfLives)
	sum.ClearTime = computeStats(clearTimes)
	return sum, nil
}
