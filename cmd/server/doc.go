// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

/*
Command server runs Waypost: a full-viewport page embedding a geospatial
viewer, plus the visitor bookkeeping behind it.

Startup order:

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, JSON or console
 3. Store: Badger directory or in-memory
 4. Geolocation: public IP source and lookup behind a breaker and limiter
 5. Analytics bus: Watermill over GoChannel or NATS (optionally embedded)
 6. WebSocket hub, tracker registry, beacon tokens
 7. Supervisor tree and the HTTP server

The process stops on SIGINT or SIGTERM. Canceling the supervisor tree shuts
the HTTP server down and stops every live page load without writing; the
analytics bus and the store are closed after the tree has stopped.

Example:

	export VIEWER_URL=https://example.projects.earthengine.app/view/agroclimate-v1
	export VIEWER_TITLE="Agroclimate Viewer"
	export STORE_PATH=/var/lib/waypost
	export BEACON_SECRET=$(openssl rand -base64 32)
	./waypost
*/
package main
