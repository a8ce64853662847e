package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicketsIssued counts upload ticket requests by outcome code ("ok" on success).
	TicketsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_upload_tickets_total",
		Help: "Upload ticket requests by outcome",
	}, []string{"outcome"})

	// ObjectUploads counts object-store uploads by backend and outcome.
	ObjectUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_object_uploads_total",
		Help: "Object store uploads by backend and outcome",
	}, []string{"backend", "outcome"})

	// UploadLatency records object-store upload latency by backend.
	UploadLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snapfeed_object_upload_latency_seconds",
		Help:    "Object store upload latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	// IngestedFiles counts files handled by the ingestion pipeline by outcome code.
	IngestedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_ingested_files_total",
		Help: "Files processed by the post ingestion pipeline",
	}, []string{"outcome"})

	// CacheLookups counts cache-aside lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_cache_lookups_total",
		Help: "Cache-aside lookups by result",
	}, []string{"result"})

	// DatabaseQueryLatency records store latency by operation and collection.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snapfeed_store_query_latency_seconds",
		Help:    "Feed store query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, collection string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
	}
}

// Outcome maps an error to a metric label.
func Outcome(code string, err error) string {
	if err == nil {
		return "ok"
	}
	return code
}
