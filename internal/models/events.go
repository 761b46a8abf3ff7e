// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package models

// Analytics event names.
const (
	EventPageView       = "page_view"
	EventUserEngagement = "user_engagement"
	EventGeeInteraction = "gee_interaction"
)

// ViewerMessageTypeAnalytics marks a viewer message that should be forwarded as an event.
const ViewerMessageTypeAnalytics = "analytics"

// ViewerMessage is a cross-frame message posted by the embedded viewer.
// Fields hold whatever JSON value the viewer sent and are forwarded as is;
// only string values are length-checked.
type ViewerMessage struct {
	Type     any `json:"type" validate:"omitempty,textmax=64"`
	Action   any `json:"action" validate:"omitempty,textmax=256"`
	Category any `json:"category" validate:"omitempty,textmax=256"`
	Label    any `json:"label,omitempty" validate:"omitempty,textmax=512"`
}

// Visibility states reported by the shell.
const (
	VisibilityVisible = "visible"
	VisibilityHidden  = "hidden"
)

// AnalyticsEnvelope is the message body published on the analytics topic.
type AnalyticsEnvelope struct {
	EventID   string         `json:"event_id"`
	Name      string         `json:"name"`
	Params    map[string]any `json:"params"`
	Timestamp int64          `json:"timestamp"`
}
