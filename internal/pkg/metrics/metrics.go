package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wiretrace_events_ingested_total",
		Help: "The total number of events ingested",
	}, []string{"phase"})

	IngestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wiretrace_ingest_failures_total",
		Help: "Total ingestion failures",
	}, []string{"reason"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wiretrace_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wiretrace_stream_clients",
		Help: "Number of connected live observers",
	})

	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wiretrace_broadcast_dropped_total",
		Help: "Frames dropped because an observer channel was full",
	})
)
