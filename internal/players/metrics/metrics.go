package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the players module.
// Tracks resolution outcomes, upstream degradation and creation races.
type Metrics struct {
	Resolutions        *prometheus.CounterVec
	ResolveDuration    *prometheus.HistogramVec
	PlayersCreated     prometheus.Counter
	CreationConflicts  prometheus.Counter
	SourceDegradations *prometheus.CounterVec
	SearchDuration     prometheus.Histogram
}

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// New creates a new Metrics instance with all players module metrics registered.
func New() *Metrics {
	return &Metrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dossier_player_resolutions_total",
			Help: "Player resolutions by lookup method and outcome",
		}, []string{"method", "outcome"}),
		ResolveDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dossier_player_resolve_duration_seconds",
			Help:    "Duration of player resolutions including upstream lookups",
			Buckets: durationBuckets,
		}, []string{"method"}),
		PlayersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dossier_players_created_total",
			Help: "Total number of players created from upstream identities",
		}),
		CreationConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dossier_player_creation_conflicts_total",
			Help: "Concurrent creations that lost the race and re-read the winner",
		}),
		SourceDegradations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dossier_player_source_degradations_total",
			Help: "Upstream lookup failures answered as not found",
		}, []string{"category"}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dossier_player_search_duration_seconds",
			Help:    "Duration of handle searches",
			Buckets: durationBuckets,
		}),
	}
}

// ObserveResolve records one resolution and its latency.
func (m *Metrics) ObserveResolve(method, outcome string, start time.Time) {
	m.Resolutions.WithLabelValues(method, outcome).Inc()
	m.ResolveDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementPlayersCreated() {
	m.PlayersCreated.Inc()
}

func (m *Metrics) IncrementCreationConflicts() {
	m.CreationConflicts.Inc()
}

func (m *Metrics) IncrementSourceDegradation(category string) {
	m.SourceDegradations.WithLabelValues(category).Inc()
}

// ObserveSearch records the duration of a SearchByHandle call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSearch(start time.Time) {
	m.SearchDuration.Observe(time.Since(start).Seconds())
}
