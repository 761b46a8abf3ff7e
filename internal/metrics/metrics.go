// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
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
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Tracker Metrics
	TrackerInits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_inits_total",
			Help: "Tracker initialisations by outcome",
		},
		[]string{"outcome"}, // "new_visitor", "new_session", "returning", "failed"
	)

	TrackersLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_page_loads_live",
			Help: "Page loads currently held by the tracker registry",
		},
	)

	TrackersReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_page_loads_reaped_total",
			Help: "Page loads stopped by the idle reaper",
		},
	)

	ActiveVisits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_active_visits",
			Help: "Visits currently in the active state",
		},
	)

	UniqueVisitors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracker_unique_visitors",
			Help: "Unique visitors recorded for a date partition",
		},
		[]string{"date"},
	)

	// Store Metrics
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of key-value store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	StoreOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operation_errors_total",
			Help: "Total number of failed key-value store operations",
		},
		[]string{"operation"},
	)

	StoreGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_gc_runs_total",
			Help: "Value log GC passes by result",
		},
		[]string{"result"}, // "rewritten", "noop", "error"
	)

	// Geolocation Metrics
	GeolocationLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geolocation_lookups_total",
			Help: "Geolocation lookups by outcome",
		},
		[]string{"outcome"}, // "resolved", "ip_failed", "geo_failed", "rate_limited"
	)

	GeolocationCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geolocation_cache_hits_total",
			Help: "Total number of geolocation cache hits",
		},
	)

	GeolocationCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geolocation_cache_misses_total",
			Help: "Total number of geolocation cache misses",
		},
	)

	GeolocationAPICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geolocation_api_call_duration_seconds",
			Help:    "Duration of geolocation HTTP calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"}, // "ip", "geo"
	)

	// Circuit Breaker Metrics
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
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Analytics Metrics
	AnalyticsEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_total",
			Help: "Analytics events by name and outcome",
		},
		[]string{"name", "outcome"}, // outcome: "published", "failed", "received"
	)

	// WebSocket Metrics
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

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)
)

// RecordAPIRequest records API request metrics
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordStoreOp records the duration of a store operation and counts it as
// failed when err is non-nil.
func RecordStoreOp(operation string, start time.Time, err error) {
	StoreOpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreOpErrors.WithLabelValues(operation).Inc()
	}
}

// RecordTrackerInit counts a tracker initialisation outcome.
func RecordTrackerInit(outcome string) {
	TrackerInits.WithLabelValues(outcome).Inc()
}

// RecordGeolocationLookup counts a geolocation outcome.
func RecordGeolocationLookup(outcome string) {
	GeolocationLookups.WithLabelValues(outcome).Inc()
}

// RecordAnalyticsEvent counts an analytics event outcome.
func RecordAnalyticsEvent(name, outcome string) {
	AnalyticsEvents.WithLabelValues(name, outcome).Inc()
}

// SetUniqueVisitors sets the unique visitor gauge for a date partition.
func SetUniqueVisitors(date string, count int) {
	UniqueVisitors.WithLabelValues(date).Set(float64(count))
}
