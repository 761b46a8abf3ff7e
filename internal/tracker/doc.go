// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

// Package tracker does the per-page-load visitor bookkeeping.
//
// A Tracker is created for every page load of the shell. Init identifies
// the browser, resolves an approximate location, reconciles today's
// records in the store and starts background work:
//
//	unique-users/{date}/{fingerprint}     VisitorRecord
//	active-sessions/{date}/{fingerprint}  ActiveSessionMarker
//	visits/{date}/{visitId}               VisitRecord
//
// The visit record exists while the page is visible. An engagement timer
// emits user_engagement and a watch on unique-users/{date} feeds the live
// unique-visitor count. Unload runs the registered unload listeners in
// order; Stop ends the background work without writing.
//
// The visitor record update is a read followed by a write. Two tabs of the
// same browser opening at once can both increment the visit count.
//
// Registry keys trackers by a ULID load id and reaps page loads that stop
// sending keepalives. A reaped load can still be unloaded until its
// tombstone expires.
package tracker
