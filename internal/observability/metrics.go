// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	TransactionsReceived prometheus.Counter
	DuplicatesSkipped    prometheus.Counter
	EventsClassified     *prometheus.CounterVec
	ClassifierDiscards   prometheus.Counter
	ProcessingErrors     *prometheus.CounterVec

	// Signal metrics
	SignalsGenerated prometheus.Counter
	FilterRejections *prometheus.CounterVec
	SignalsMigrated  prometheus.Counter
	SignalsExpired   prometheus.Counter

	// Batch metrics
	BatchSize       prometheus.Histogram
	BatchDuration   prometheus.Histogram
	DedupCacheSize  prometheus.Gauge
	HighestSlotSeen prometheus.Gauge

	// Notification metrics
	NotificationsSent    *prometheus.CounterVec
	NotificationsDropped prometheus.Counter

	// Health metrics
	LastBatchProcessed prometheus.Gauge
	LastExpirySweep    prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pump_signals"
	}

	return &Metrics{
		// Ingestion metrics
		TransactionsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transactions_received_total",
			Help:      "Total number of raw transactions received",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of transactions skipped by the dedup cache",
		}),
		EventsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_classified_total",
			Help:      "Total number of domain events produced by kind",
		}, []string{"kind"}),
		ClassifierDiscards: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "classifier_discards_total",
			Help:      "Total number of transactions discarded by the classifier",
		}),
		ProcessingErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "processing_errors_total",
			Help:      "Total number of per-item processing errors by stage",
		}, []string{"stage"}),

		// Signal metrics
		SignalsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "generated_total",
			Help:      "Total number of signals generated",
		}),
		FilterRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "filter_rejections_total",
			Help:      "Total number of events rejected by filter",
		}, []string{"filter"}),
		SignalsMigrated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "migrated_total",
			Help:      "Total number of signals closed by migration",
		}),
		SignalsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "expired_total",
			Help:      "Total number of signals expired by the sweep",
		}),
		// Batch metrics
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "batch_size",
			Help:      "Number of transactions per incoming batch",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "batch_duration_seconds",
			Help:      "Batch processing duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		DedupCacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "dedup_cache_size",
			Help:      "Current number of signatures in the dedup cache",
		}),
		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),

		// Notification metrics
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Total number of notifications sent by channel",
		}, []string{"channel"}),
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Total number of notifications dropped after retries or queue overflow",
		}),

		// Health metrics
		LastBatchProcessed: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_batch_processed_timestamp",
			Help:      "Unix timestamp of the last processed batch",
		}),
		LastExpirySweep: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_expiry_sweep_timestamp",
			Help:      "Unix timestamp of the last expiry sweep",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
