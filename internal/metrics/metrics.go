package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "assistant"

// Metrics holds the Prometheus collectors for query turns and ingestion.
type Metrics struct {
	QueriesTotal    *prometheus.CounterVec
	NodeDuration    *prometheus.HistogramVec
	DegradedFetches *prometheus.CounterVec
	IndexedChunks   prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of processed queries by intent and outcome",
			},
			[]string{"intent", "outcome"},
		),
		NodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Duration of routing graph nodes",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"node"},
		),
		DegradedFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "degraded_fetches_total",
				Help:      "Fetches that fell back to an error value",
			},
			[]string{"source"},
		),
		IndexedChunks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "indexed_chunks_total",
				Help:      "Total number of document chunks written to the vector index",
			},
		),
	}
	reg.MustRegister(m.QueriesTotal, m.NodeDuration, m.DegradedFetches, m.IndexedChunks)
	return m
}
