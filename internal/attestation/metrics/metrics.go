package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attestation engine.
type Metrics struct {
	Votes        *prometheus.CounterVec
	VoteRemovals *prometheus.CounterVec
	VoteDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Votes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dossier_attestation_votes_total",
			Help: "Votes recorded by artifact kind and attestation type",
		}, []string{"artifact_kind", "attestation_type"}),
		VoteRemovals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dossier_attestation_vote_removals_total",
			Help: "Vote removals by artifact kind and whether a row existed",
		}, []string{"artifact_kind", "removed"}),
		VoteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dossier_attestation_vote_duration_seconds",
			Help:    "Duration of Vote including owner lookup",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementVotes(kind, typ string) {
	m.Votes.WithLabelValues(kind, typ).Inc()
}

func (m *Metrics) IncrementRemovals(kind string, removed bool) {
	label := "false"
	if removed {
		label = "true"
	}
	m.VoteRemovals.WithLabelValues(kind, label).Inc()
}

func (m *Metrics) ObserveVote(start time.Time) {
	m.VoteDuration.Observe(time.Since(start).Seconds())
}
