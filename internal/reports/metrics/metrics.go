package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reports module.
type Metrics struct {
	ReportsCreated       *prometheus.CounterVec
	SecondaryEnrichments *prometheus.CounterVec
	CreateDuration       prometheus.Histogram
}

// New creates a new Metrics instance with all reports module metrics registered.
func New() *Metrics {
	return &Metrics{
		ReportsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dossier_reports_created_total",
			Help: "Reports created by kind",
		}, []string{"kind"}),
		SecondaryEnrichments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dossier_report_secondary_enrichments_total",
			Help: "Secondary handle enrichment attempts by result (linked, unresolved)",
		}, []string{"kind", "result"}),
		CreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dossier_report_create_duration_seconds",
			Help:    "Duration of CreateReport including secondary enrichment",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) IncrementReportsCreated(kind string) {
	m.ReportsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementSecondaryEnrichment(kind, result string) {
	m.SecondaryEnrichments.WithLabelValues(kind, result).Inc()
}

// ObserveCreate records the duration of a CreateReport call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}
