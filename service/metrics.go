package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type syncMetrics struct {
	runs     prometheus.Counter
	records  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	duration prometheus.Histogram
}

// A nil registry yields working but unregistered collectors
func (m *syncMetrics) init(promRegistry prometheus.Registerer) {
	factory := promauto.With(promRegistry)
	m.runs = factory.NewCounter(prometheus.CounterOpts{
		Name: "hackledger_sync_runs_total",
		Help: "number of finished reconciliation runs",
	})
	m.records = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "hackledger_sync_records_total",
		Help: "cache upserts by entity type and outcome",
	}, []string{"entity", "result"})
	m.skipped = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "hackledger_sync_skipped_total",
		Help: "entities a run could not mirror",
	}, []string{"entity"})
	m.duration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "hackledger_sync_duration_seconds",
		Help:    "wall time of a reconciliation run",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
	})
}

type authzMetrics struct {
	decisions *prometheus.CounterVec
}

func (m *authzMetrics) init(promRegistry prometheus.Registerer) {
	factory := promauto.With(promRegistry)
	m.decisions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "hackledger_authz_decisions_total",
		Help: "authorization decisions by role, answering tier and result",
	}, []string{"role", "source", "result"})
}
