// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package models

// Store path roots. Every record lives under {root}/{date}/{id}.
const (
	PathUniqueUsers    = "unique-users"
	PathActiveSessions = "active-sessions"
	PathVisits         = "visits"
)

// DateLayout formats the date partition of every store path.
const DateLayout = "2006-01-02"

// VisitorRecord is stored once per visitor per day at unique-users/{date}/{fingerprint}.
type VisitorRecord struct {
	LastSeen int64        `json:"lastSeen"`
	Visits   int          `json:"visits"`
	Location LocationInfo `json:"location"`
}

// ActiveSessionMarker flags an open session at active-sessions/{date}/{fingerprint}.
type ActiveSessionMarker struct {
	StartTime int64 `json:"startTime"`
}

// VisitRecord exists at visits/{date}/{visitId} while the page is visible.
type VisitRecord struct {
	UserID    string       `json:"userId"`
	Timestamp int64        `json:"timestamp"`
	Active    bool         `json:"active"`
	Location  LocationInfo `json:"location"`
}

// Record field names used in partial updates.
const (
	FieldVisits   = "visits"
	FieldLastSeen = "lastSeen"
)
