// Package metrics registers Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrublog_gateway_requests_total",
			Help: "Total number of ingest requests received",
		},
		[]string{"status"},
	)

	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrublog_gateway_rejections_total",
			Help: "Total number of rejected ingest requests",
		},
		[]string{"reason"},
	)

	RequestBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrublog_gateway_request_bytes_total",
			Help: "Total bytes of log payload received",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrublog_gateway_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"tenant"},
	)

	RateLimitErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrublog_gateway_rate_limit_errors_total",
			Help: "Total number of rate limiter check failures",
		},
	)

	// Queue metrics
	QueuePublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrublog_queue_published_total",
			Help: "Total number of envelopes published to the ingest stream",
		},
	)

	QueuePublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrublog_queue_publish_errors_total",
			Help: "Total number of failed envelope publishes",
		},
	)

	DLQWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrublog_dlq_written_total",
			Help: "Total number of envelopes routed to the dead letter stream",
		},
		[]string{"reason"},
	)

	// Processor metrics
	ProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrublog_processor_envelopes_total",
			Help: "Total number of envelope processing attempts by outcome",
		},
		[]string{"outcome"},
	)

	RedactionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrublog_processor_redactions_total",
			Help: "Total number of log texts modified by the redactor",
		},
	)

	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrublog_processor_duration_seconds",
			Help:    "Duration of envelope processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Store metrics
	StoreWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrublog_store_write_duration_seconds",
			Help:    "Duration of store writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrublog_store_errors_total",
			Help: "Total number of store write failures",
		},
	)
)
