package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "parking", Name: "bookings_total", Help: "Total successful bookings"})
	BookingConflicts   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "parking", Name: "booking_conflicts_total", Help: "Bookings rejected because the spot was already taken"})
	CancellationsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "parking", Name: "cancellations_total", Help: "Total booking cancellations"})

	CacheHits   = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "parking", Name: "cache_hits_total", Help: "Cache hits by key class"}, []string{"class"})
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "parking", Name: "cache_misses_total", Help: "Cache misses by key class"}, []string{"class"})
	CacheErrors = promauto.NewCounter(prometheus.CounterOpts{Namespace: "parking", Name: "cache_errors_total", Help: "Cache operations that failed and were skipped"})

	TelemetryFallbacks = promauto.NewCounter(prometheus.CounterOpts{Namespace: "parking", Name: "telemetry_fallbacks_total", Help: "Status requests served from relational fallback data"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "parking", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
