// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package models

// TrackOpenRequest is sent by the shell once per page load.
//
// Example:
//
//	{
//	  "visitor_id": "b1c9e0d4a7f2",
//	  "page_title": "Agroclimate Viewer",
//	  "page_location": "https://viewer.example/",
//	  "screen": "1920x1080x24",
//	  "timezone": "Europe/Athens"
//	}
type TrackOpenRequest struct {
	VisitorID    string `json:"visitor_id,omitempty" validate:"omitempty,min=1,max=128,fingerprint"`
	PageTitle    string `json:"page_title" validate:"max=512"`
	PageLocation string `json:"page_location" validate:"required,max=2048"`
	Screen       string `json:"screen,omitempty" validate:"max=64"`
	Timezone     string `json:"timezone,omitempty" validate:"max=64"`
}

// TrackOpenResponse carries the page-load handle the shell uses for later beacons.
type TrackOpenResponse struct {
	LoadID   string `json:"load_id,omitempty"`
	Token    string `json:"token,omitempty"`
	Tracking bool   `json:"tracking"`
}

// VisibilityRequest reports a document visibility change.
type VisibilityRequest struct {
	Token string `json:"token" validate:"required"`
	State string `json:"state" validate:"required,max=32"`
}

// UnloadRequest reports page unload. Delivered via navigator.sendBeacon.
type UnloadRequest struct {
	Token string `json:"token" validate:"required"`
}

// HeartbeatRequest is the periodic keepalive of an open page.
type HeartbeatRequest struct {
	Token string `json:"token" validate:"required"`
}

// MessageRequest forwards a cross-frame message from the viewer.
type MessageRequest struct {
	Token string        `json:"token" validate:"required"`
	Data  ViewerMessage `json:"data"`
}

// UniqueVisitorsQuery is the query of GET /api/v1/stats/unique. An empty
// date means today.
type UniqueVisitorsQuery struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// UniqueVisitorsResponse is the body of GET /api/v1/stats/unique.
type UniqueVisitorsResponse struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// UniqueCountMessage is broadcast to dashboard WebSocket clients.
type UniqueCountMessage struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
