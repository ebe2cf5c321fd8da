// Package metrics registers the eventlogs prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Consumer metrics
	MessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlogs_consumer_messages_received_total",
			Help: "Total number of messages received from the broker",
		},
	)

	MessagesParsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlogs_consumer_messages_parsed_total",
			Help: "Total number of consumed messages that parsed into events",
		},
	)

	MessagesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlogs_consumer_messages_failed_total",
			Help: "Total number of messages that failed to parse",
		},
	)

	BatchesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlogs_consumer_batches_processed_total",
			Help: "Total number of batches written and acknowledged",
		},
	)

	BatchesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlogs_consumer_batches_rejected_total",
			Help: "Total number of batches left unacknowledged for redelivery",
		},
		[]string{"reason"},
	)

	DLQMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlogs_dlq_messages_total",
			Help: "Total number of messages moved to the dead-letter stream",
		},
		[]string{"reason"},
	)

	// Service metrics
	EventsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlogs_events_ingested_total",
			Help: "Total number of events stored by the consumer or the direct ingestion API",
		},
	)

	Searches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlogs_searches_total",
			Help: "Total number of search operations",
		},
	)

	EventsExported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlogs_events_exported_total",
			Help: "Total number of events exported to CSV",
		},
	)

	// Retention metrics
	RetentionDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlogs_retention_deleted_total",
			Help: "Total number of events deleted by the retention sweep",
		},
	)

	RetentionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlogs_retention_runs_total",
			Help: "Total number of retention sweeps by outcome",
		},
		[]string{"status"},
	)

	// Storage metrics
	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventlogs_storage_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlogs_storage_errors_total",
			Help: "Total number of failed storage operations",
		},
		[]string{"backend", "operation"},
	)
)
