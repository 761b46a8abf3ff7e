// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

// Package fingerprint identifies a browser across page loads.
//
// The shell may compute a visitor id in the browser; a well-formed one
// (1-128 characters of [A-Za-z0-9_-]) is used as is. Otherwise the id is an
// xxhash of the User-Agent, Accept-Language, client IP, screen and time
// zone hints, rendered as 16 hex characters. The identifier is stable per
// browser but not guaranteed unique.
package fingerprint
