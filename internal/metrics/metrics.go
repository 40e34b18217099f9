// Package metrics exposes Prometheus counters for study activity
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PatientsAdded prometheus.Counter
	// EstimationFailures is labelled by reason: invalid_profile, unknown_drug,
	// invalid_half_life, unavailable, other
	EstimationFailures *prometheus.CounterVec
	ExportsWritten     *prometheus.CounterVec // format: csv, png
	StudiesCleared     prometheus.Counter
	ChartsRendered     prometheus.Counter
)

func init() {
	PatientsAdded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bioclear_patients_added_total",
			Help: "Total number of patients added to the study.",
		},
	)
	EstimationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bioclear_estimation_failures_total",
			Help: "Total number of rejected patient estimations by reason.",
		},
		[]string{"reason"},
	)
	ExportsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bioclear_exports_total",
			Help: "Total number of study exports by format.",
		},
		[]string{"format"},
	)
	StudiesCleared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bioclear_studies_cleared_total",
			Help: "Total number of times the study was cleared.",
		},
	)
	ChartsRendered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bioclear_charts_rendered_total",
			Help: "Total number of concentration charts rendered.",
		},
	)

	prometheus.MustRegister(PatientsAdded, EstimationFailures, ExportsWritten, StudiesCleared, ChartsRendered)
}
