package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsProcessed counts records by terminal outcome (processed, failed).
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifier_records_processed_total",
			Help: "Total number of records reaching a terminal status",
		},
		[]string{"job", "outcome"},
	)

	// BatchesProcessed counts completed batches per job.
	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifier_batches_total",
			Help: "Total number of batches processed",
		},
		[]string{"job"},
	)

	// RetriesTotal counts records that needed more than one attempt.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifier_retries_total",
			Help: "Total number of records retried at least once",
		},
		[]string{"job"},
	)

	// CheckpointID tracks the current watermark per job.
	CheckpointID = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "classifier_checkpoint_id",
			Help: "Last checkpointed record id",
		},
		[]string{"job"},
	)

	// LLMRequestsTotal counts attempts against the classification service.
	LLMRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classifier_llm_requests_total",
			Help: "Total number of classification service calls",
		},
	)

	// LLMErrorsTotal counts failed attempts by error category.
	LLMErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifier_llm_errors_total",
			Help: "Total number of classification service errors",
		},
		[]string{"category"},
	)

	// LLMLatency tracks per-attempt latency.
	LLMLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classifier_llm_latency_seconds",
			Help:    "Classification service call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DBConnectionPoolUsage tracks open connections against the pool cap.
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classifier_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
