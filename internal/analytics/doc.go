// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

// Package analytics publishes visitor analytics events onto a Watermill
// bus and records them on the consuming side.
//
// Two transports are supported: an in-process GoChannel (the default) and
// core NATS, optionally backed by an embedded nats-server. Events are
// JSON envelopes (models.AnalyticsEnvelope) carrying the event name in the
// "event_name" metadata key. Delivery is best-effort.
//
// Example:
//
//	bus, err := analytics.NewBus(cfg.Analytics)
//	if err != nil {
//		return err
//	}
//	emitter := analytics.NewEmitter(bus.Publisher, bus.Topic)
//	_ = emitter.LogEvent(ctx, models.EventPageView, analytics.Params{
//		"page_title": "Viewer",
//	})
package analytics
