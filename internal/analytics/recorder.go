// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package analytics

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/metrics"
	"github.com/tomtom215/waypost/internal/models"
)

// Recorder consumes the analytics topic, logs every event and keeps
// per-name totals. It implements suture.Service.
type Recorder struct {
	subscriber message.Subscriber
	topic      string

	mu     sync.RWMutex
	totals map[string]int64

	// observe is called for every decoded event. Tests use it.
	observe func(models.AnalyticsEnvelope)
}

// NewRecorder creates a Recorder for topic.
func NewRecorder(subscriber message.Subscriber, topic string) *Recorder {
	return &Recorder{
		subscriber: subscriber,
		topic:      topic,
		totals:     make(map[string]int64),
	}
}

// OnEvent registers a callback run for each decoded event.
func (r *Recorder) OnEvent(fn func(models.AnalyticsEnvelope)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observe = fn
}

// Serve consumes messages until ctx is canceled.
func (r *Recorder) Serve(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.topic, err)
	}

	logging.Info().Str("topic", r.topic).Msg("Analytics recorder started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.record(msg)
			// Malformed events are acked too; redelivery cannot fix them.
			msg.Ack()
		}
	}
}

func (r *Recorder) record(msg *message.Message) {
	var envelope models.AnalyticsEnvelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Malformed analytics event")
		return
	}

	metrics.RecordAnalyticsEvent(envelope.Name, "received")

	r.mu.Lock()
	r.totals[envelope.Name]++
	observe := r.observe
	r.mu.Unlock()

	logging.Info().
		Str("event", envelope.Name).
		Str("event_id", envelope.EventID).
		Str("correlation_id", middleware.MessageCorrelationID(msg)).
		Interface("params", envelope.Params).
		Msg("Analytics event")

	if observe != nil {
		observe(envelope)
	}
}

// Totals returns a copy of the per-event-name counts.
func (r *Recorder) Totals() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int64, len(r.totals))
	for k, v := range r.totals {
		out[k] = v
	}
	return out
}

// String implements fmt.Stringer for suture logging.
func (r *Recorder) String() string {
	return "analytics-recorder"
}
