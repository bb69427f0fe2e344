package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ObservationsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stallcast_observations_ingested_total",
			Help: "Total occupancy observations successfully recorded",
		},
		[]string{"location", "result"},
	)

	PredictionsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stallcast_predictions_served_total",
			Help: "Total prediction responses, by prediction source",
		},
		[]string{"source"},
	)

	CompactionRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stallcast_compaction_runs_total",
			Help: "Total compaction runs",
		},
	)

	ObservationsCompacted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stallcast_observations_compacted_total",
			Help: "Raw observations folded into compressed buckets",
		},
	)

	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stallcast_api_latency_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)
