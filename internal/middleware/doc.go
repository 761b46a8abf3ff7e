// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

/*
Package middleware provides the HTTP middleware shared by every route.

Key Components:

  - RequestID: request and correlation ids, echoed in X-Request-ID and
    X-Correlation-ID and carried in the context for logging
  - PrometheusMetrics: request count, duration and in-flight gauge labeled
    by chi route pattern
  - AccessLog: one zerolog line per request

Middleware Stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)

RequestID must run first so the other two log and label with its ids.
*/
package middleware
