// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/metrics"
	"github.com/tomtom215/waypost/internal/models"
)

// MetadataEventName carries the event name on every published message.
const MetadataEventName = "event_name"

// Params are the flat parameters of an analytics event.
type Params map[string]any

// Sink accepts analytics events.
type Sink interface {
	LogEvent(ctx context.Context, name string, params Params) error
}

// Emitter publishes events as JSON envelopes on a Watermill topic.
type Emitter struct {
	publisher message.Publisher
	topic     string
	now       func() time.Time
}

// NewEmitter creates an Emitter publishing to topic.
func NewEmitter(publisher message.Publisher, topic string) *Emitter {
	return &Emitter{publisher: publisher, topic: topic, now: time.Now}
}

// LogEvent publishes one event. Failures are logged at debug, counted and
// returned; they are never retried.
func (e *Emitter) LogEvent(ctx context.Context, name string, params Params) error {
	eventID := watermill.NewUUID()
	envelope := models.AnalyticsEnvelope{
		EventID:   eventID,
		Name:      name,
		Params:    params,
		Timestamp: e.now().UnixMilli(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return e.fail(ctx, name, fmt.Errorf("marshal %s event: %w", name, err))
	}

	msg := message.NewMessage(eventID, payload)
	msg.Metadata.Set(MetadataEventName, name)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		middleware.SetCorrelationID(id, msg)
	}
	if id := logging.LoadIDFromContext(ctx); id != "" {
		msg.Metadata.Set("load_id", id)
	}

	if err := e.publisher.Publish(e.topic, msg); err != nil {
		return e.fail(ctx, name, fmt.Errorf("publish %s event: %w", name, err))
	}

	metrics.RecordAnalyticsEvent(name, "published")
	return nil
}

func (e *Emitter) fail(ctx context.Context, name string, err error) error {
	metrics.RecordAnalyticsEvent(name, "failed")
	logging.Ctx(ctx).Debug().Err(err).Str("event", name).Msg("Analytics event dropped")
	return err
}
