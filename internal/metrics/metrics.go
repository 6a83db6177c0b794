package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters and histograms for the ingest/process/reconcile loops.

var (
	// Ingest
	IngestBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "swapindexer",
		Subsystem: "ingest",
		Name:      "blocks_total",
		Help:      "Total blocks ingested",
	})

	IngestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "swapindexer",
		Subsystem: "ingest",
		Name:      "errors_total",
		Help:      "Total ingest cycle errors",
	})

	IngestBlockLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "swapindexer",
		Subsystem: "ingest",
		Name:      "block_duration_seconds",
		Help:      "Per-block normalize+process duration",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	IngestHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "swapindexer",
		Subsystem: "ingest",
		Name:      "height",
		Help:      "Latest fully processed block height",
	})

	// Processor
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swapindexer",
		Subsystem: "processor",
		Name:      "events_total",
		Help:      "Total events processed, by event name and outcome",
	}, []string{"event", "outcome"})

	SchemaViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swapindexer",
		Subsystem: "processor",
		Name:      "schema_violations_total",
		Help:      "Total events rejected by the normalizer",
	}, []string{"event"})

	// Reconciliation
	ReconcileItemsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "swapindexer",
		Subsystem: "reconcile",
		Name:      "items_resolved_total",
		Help:      "Total pending tx-ref work items resolved",
	})

	ReconcileTransientErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "swapindexer",
		Subsystem: "reconcile",
		Name:      "transient_errors_total",
		Help:      "Total transient reconciliation errors (retried next cycle)",
	})

	ReconcileQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "swapindexer",
		Subsystem: "reconcile",
		Name:      "queue_depth",
		Help:      "Pending tx-ref work items awaiting resolution",
	})

	// API
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swapindexer",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total API requests by route and status code",
	}, []string{"route", "status"})

	APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "swapindexer",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "API request duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"route"})
)
