package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EventsIndexedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_ingest_events_indexed_total",
			Help: "Total number of events indexed into the event store",
		},
	)

	EventsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_ingest_events_skipped_total",
			Help: "Total number of CSV rows skipped during normalization",
		},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_ingest_upload_bytes_total",
			Help: "Total bytes of uploaded log data",
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_ingest_duration_seconds",
			Help:    "Duration of ingestion calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StorageErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_ingest_storage_errors_total",
			Help: "Total number of event store write errors",
		},
	)

	// Detection metrics
	DetectionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_detection_runs_total",
			Help: "Total number of detection runs",
		},
		[]string{"status"},
	)

	AlertsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_detection_alerts_created_total",
			Help: "Total number of alerts created",
		},
	)

	AlertSinkErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_detection_sink_errors_total",
			Help: "Total number of alert persistence errors",
		},
	)
)
