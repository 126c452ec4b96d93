// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

// Package metrics registers the Prometheus collectors exported on /metrics
// and the Record* helpers the rest of the module calls.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stats API client

	StatsFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "craftstats_fetch_duration_seconds",
			Help:    "Duration of statistics API requests in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"}, // "delta", "total", "leaderboard"
	)

	StatsFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftstats_fetch_errors_total",
			Help: "Total number of failed statistics API requests",
		},
		[]string{"endpoint", "reason"},
	)

	StatsFetchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftstats_fetch_retries_total",
			Help: "Total number of statistics API retries after rate limiting",
		},
		[]string{"endpoint"},
	)

	// Leaderboard (rank-at-instant) cache

	RankCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "craftstats_rank_cache_hits_total",
			Help: "Total number of leaderboard cache hits",
		},
	)

	RankCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "craftstats_rank_cache_misses_total",
			Help: "Total number of leaderboard cache misses",
		},
	)

	RankCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "craftstats_rank_cache_evictions_total",
			Help: "Total number of leaderboard cache entries evicted for capacity",
		},
	)

	RankCacheClears = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "craftstats_rank_cache_clears_total",
			Help: "Total number of full leaderboard cache invalidations",
		},
	)

	RankFetchCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "craftstats_rank_fetch_coalesced_total",
			Help: "Leaderboard lookups that shared an in-flight fetch",
		},
	)

	RankDebounceReplaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "craftstats_rank_debounce_replaced_total",
			Help: "Leaderboard requests superseded inside the debounce window",
		},
	)

	// Aggregation controller

	RecomputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "craftstats_recompute_duration_seconds",
			Help:    "Time spent recomputing rendered series and KPIs",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"path"}, // "query", "viewport", "rerender"
	)

	StaleQueriesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "craftstats_stale_queries_discarded_total",
			Help: "Query results dropped because a newer query started",
		},
	)

	QueryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "craftstats_query_failures_total",
			Help: "Full queries that failed and rendered empty",
		},
	)

	DashboardSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "craftstats_dashboard_sessions",
			Help: "Current number of open dashboard sessions",
		},
	)

	UpstreamReachable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "craftstats_upstream_reachable",
			Help: "1 when the last background probe of the statistics API succeeded",
		},
	)

	UpstreamProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftstats_upstream_probes_total",
			Help: "Background probes of the statistics API by result",
		},
		[]string{"result"}, // ok, error
	)

	// HTTP surface

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// WebSocket

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
		[]string{"type"},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit breaker

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordFetch records one statistics API call.
func RecordFetch(endpoint string, duration time.Duration, err error) {
	StatsFetchDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	if err != nil {
		StatsFetchErrors.WithLabelValues(endpoint, errorReason(err)).Inc()
	}
}

// RecordRankLookup records a leaderboard cache lookup.
func RecordRankLookup(hit bool) {
	if hit {
		RankCacheHits.Inc()
	} else {
		RankCacheMisses.Inc()
	}
}

// RecordRecompute records how long a render path took.
func RecordRecompute(path string, duration time.Duration) {
	RecomputeDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// reasoner is implemented by errors that carry a metrics label.
type reasoner interface {
	Reason() string
}

// errorReason keeps label cardinality bounded: errors may opt in with a
// Reason method, everything else is "other".
func errorReason(err error) string {
	var r reasoner
	if errors.As(err, &r) {
		return r.Reason()
	}
	return "other"
}
