// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

// Package logging provides the process-wide zerolog logger for Waypost.
//
// Initialize once from main, then log with structured fields:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("visitor_id", id).Msg("Unique browser fingerprint")
//
// Request-scoped logging picks up request, correlation and page-load IDs:
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("Error getting location")
//
// Environment Variables:
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//
// NewSlogLogger bridges to log/slog for the suture supervisor event hook.
package logging
