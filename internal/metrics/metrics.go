// Package metrics exposes Prometheus instruments for backfill runs and
// phone lookups.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the phonelink collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Reconciliation outcomes by operation ("backfill", "link") and kind
	Outcomes *prometheus.CounterVec

	// Batch wall time by operation
	BatchDuration *prometheus.HistogramVec

	// Lookup results: "hit", "found", "not_found", "no_email", "invalid", "error"
	Lookups *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonelink_reconcile_outcomes_total",
			Help: "Per-record reconciliation outcomes by operation and kind",
		}, []string{"operation", "kind"}),

		BatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phonelink_batch_duration_seconds",
			Help:    "Duration of complete backfill and link batches",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900},
		}, []string{"operation"}),

		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonelink_lookups_total",
			Help: "Phone to email lookups by result",
		}, []string{"result"}),
	}
}

// IncOutcome records one reconciliation outcome.
func (m *Metrics) IncOutcome(operation, kind string) {
	if m != nil {
		m.Outcomes.WithLabelValues(operation, kind).Inc()
	}
}

// ObserveBatch records the duration of a finished batch.
func (m *Metrics) ObserveBatch(operation string, d time.Duration) {
	if m != nil {
		m.BatchDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncLookup records a lookup result.
func (m *Metrics) IncLookup(result string) {
	if m != nil {
		m.Lookups.WithLabelValues(result).Inc()
	}
}
