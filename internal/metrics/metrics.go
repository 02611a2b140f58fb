// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vbonduro/catchlogs/internal/domain"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchlogs_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "pattern", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catchlogs_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "pattern"},
	)

	// Result is one of ok, empty, error or breaker_open.
	WeatherLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchlogs_weather_lookups_total",
			Help: "Weather lookups by source and result",
		},
		[]string{"source", "result"},
	)

	WeatherCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catchlogs_weather_cache_hits_total",
			Help: "Weather lookups served from the response cache",
		},
	)

	JournalOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchlogs_journal_operations_total",
			Help: "Journal mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	PhotoDeleteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catchlogs_photo_delete_failures_total",
			Help: "Best-effort photo deletes that failed and left an orphaned blob",
		},
	)

	SweepRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchlogs_sweep_removed_total",
			Help: "Objects removed by the sweep, by kind",
		},
		[]string{"kind"},
	)
)

// Result maps an error to the result label used by the counters.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsValidation(err):
		return "validation"
	case domain.IsReference(err):
		return "reference"
	case domain.IsStorage(err):
		return "storage"
	case domain.IsPersistence(err):
		return "persistence"
	default:
		return "error"
	}
}
