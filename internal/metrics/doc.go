// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

/*
Package metrics defines the Prometheus collectors exported on /metrics.

All collectors are registered on the default registry through promauto:

  - api_*: HTTP request count, latency, in-flight requests, rate limit hits
  - tracker_*: initialisation outcomes, live page loads, active visits,
    unique visitors per date partition
  - store_*: Badger operation latency, errors and value log GC runs
  - geolocation_*: lookup outcomes, cache efficiency, endpoint latency
  - circuit_breaker_*: state, requests, transitions
  - analytics_events_total: events by name and outcome
  - websocket_*: dashboard connections and messages

Usage:

	start := time.Now()
	err := txn.Set(key, value)
	metrics.RecordStoreOp("set", start, err)
*/
package metrics
