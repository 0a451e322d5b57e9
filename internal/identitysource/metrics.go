package identitysource

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks upstream lookups by outcome and latency.
type Metrics struct {
	Lookups        *prometheus.CounterVec
	LookupDuration prometheus.Histogram
	CircuitOpen    prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Lookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dossier_identity_source_lookups_total",
			Help: "Upstream identity lookups by method and outcome category",
		}, []string{"method", "outcome"}),
		LookupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dossier_identity_source_lookup_duration_seconds",
			Help:    "Duration of upstream identity lookups",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		CircuitOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dossier_identity_source_circuit_open",
			Help: "1 while the identity source circuit breaker is open",
		}),
	}
}

func (m *Metrics) observe(method, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(method, outcome).Inc()
	m.LookupDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) setCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}
