// Package metrics exposes Prometheus instrumentation for the feed
// Core, grounded on the retrieval pack's promauto-based metrics
// package, generalized from media-server/DuckDB metrics to feed,
// cache, and circuit-breaker observability.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedRequestDuration tracks GetFeed latency by cache outcome.
	FeedRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipfeed_feed_request_duration_seconds",
			Help:    "Duration of feed requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cache_result"},
	)

	// CacheHits counts Cache Layer hits by key namespace.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipfeed_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	// CacheMisses counts Cache Layer misses by key namespace.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipfeed_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	// PoolFetchDuration tracks each Candidate Pool's fetch latency.
	PoolFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipfeed_pool_fetch_duration_seconds",
			Help:    "Duration of candidate pool fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// CircuitBreakerState mirrors the DocumentStore breaker's state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clipfeed_circuit_breaker_state",
			Help: "DocumentStore circuit breaker state",
		},
		[]string{"name"},
	)

	// AnalyticsEventsPublished counts Analytics Sink publish attempts by outcome.
	AnalyticsEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipfeed_analytics_events_total",
			Help: "Total number of analytics events published",
		},
		[]string{"type", "outcome"},
	)

	// WatchRecordUpdates counts progress writes by outcome (created, restarted, updated, completed).
	WatchRecordUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipfeed_watch_record_updates_total",
			Help: "Total number of WatchRecord upserts",
		},
		[]string{"outcome"},
	)
)

// ObserveFeedRequest records a GetFeed call's latency since started.
func ObserveFeedRequest(cacheResult string, started time.Time) {
	FeedRequestDuration.WithLabelValues(cacheResult).Observe(time.Since(started).Seconds())
}
