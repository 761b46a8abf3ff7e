// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

// Package models defines the records stored per visitor, session and visit,
// the analytics event vocabulary and the HTTP request/response bodies.
//
// Store layout (date is YYYY-MM-DD in the tracker time zone):
//
//	unique-users/{date}/{fingerprint}     VisitorRecord
//	active-sessions/{date}/{fingerprint}  ActiveSessionMarker
//	visits/{date}/{visitId}               VisitRecord
//
// Location coordinates encode as JSON numbers when known and as the string
// "Unknown" otherwise, so stored records keep a single wire shape.
package models
