// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

/*
Package locate provides best-effort geolocation for page loads.

Resolution happens in two steps against public JSON endpoints:

 1. IPSource: the caller's public IP (ipify by default). Skipped when the
    request carries a public client IP and trust_client_ip is on.
 2. GeoProvider: the location for that IP (ipapi.co by default). A body
    with "error": true is a failure.

Locator.Locate never returns an error. Failures produce a LocationInfo
whose fields are all "Unknown"; the ip field keeps the resolved address
when only step 2 failed.

Geo lookups go through a golang.org/x/time/rate limiter and a
sony/gobreaker circuit breaker, and successful answers are cached per IP.
*/
package locate
