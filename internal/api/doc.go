// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

/*
Package api is the HTTP surface of Waypost, routed with chi.

	GET  /                                   shell page embedding the viewer
	POST /api/v1/track/open                  start tracking a page load
	POST /api/v1/track/{loadID}/visibility   tab shown or hidden
	POST /api/v1/track/{loadID}/unload       page unloading (sendBeacon)
	POST /api/v1/track/{loadID}/message      postMessage from the viewer
	POST /api/v1/track/{loadID}/heartbeat    keepalive of an open page
	GET  /api/v1/stats/unique?date=          distinct visitors of a day
	GET  /api/v1/ws                          live unique_count feed
	GET  /api/v1/health/live|ready           probes
	GET  /metrics                            Prometheus

Follow-up beacons carry the token returned by open, signed for that load
id. JSON responses use the {success, data, error, meta} envelope; tracking
failures never surface as errors to the page.
*/
package api
