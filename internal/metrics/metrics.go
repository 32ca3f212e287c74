package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingress metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of ingress requests by terminal outcome",
		},
		[]string{"outcome"},
	)

	RequestBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_request_bytes_total",
			Help: "Total bytes of request body received",
		},
	)

	// Authentication metrics
	SignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_signature_failures_total",
			Help: "Total number of failed signature verifications by reason",
		},
		[]string{"reason"},
	)

	// Deduplication metrics
	DuplicatesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_duplicates_suppressed_total",
			Help: "Total number of redelivered events suppressed by the dedup store",
		},
	)

	DedupFailOpen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_dedup_fail_open_total",
			Help: "Total number of reservations granted because the dedup store was unavailable",
		},
	)

	DedupReleases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_dedup_releases_total",
			Help: "Total number of dedup reservations released after dispatch failure",
		},
	)

	// Dispatch metrics
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_dispatch_duration_seconds",
			Help:    "Duration of the dispatch handoff in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DispatchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_dispatch_errors_total",
			Help: "Total number of failed dispatch handoffs",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"key"},
	)
)
