package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignalsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_signals_fetched_total",
		Help: "Total number of items fetched from sources",
	}, []string{"source"})

	SignalsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_signals_stored_total",
		Help: "Total number of raw signals stored, by outcome",
	}, []string{"outcome"})

	SignalsNormalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_signals_normalized_total",
		Help: "Total number of normalization decisions, by terminal status",
	}, []string{"status"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radar_llm_request_duration_seconds",
		Help:    "Duration of LLM extraction calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	ClustersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radar_clusters_created_total",
		Help: "Total number of new story clusters created",
	})

	ClustersSweptStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radar_clusters_swept_stale_total",
		Help: "Total number of clusters demoted to STALE",
	})

	IngestCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "radar_ingest_cycle_duration_seconds",
		Help:    "Duration of one full ingest cycle",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	IngestCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_ingest_cycles_total",
		Help: "Total number of ingest cycles, by final status",
	}, []string{"status"})

	IngestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_ingest_errors_total",
		Help: "Total number of errors captured during ingest cycles",
	}, []string{"kind"})

	FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_feed_requests_total",
		Help: "Total number of cluster feed requests",
	}, []string{"status"})
)
