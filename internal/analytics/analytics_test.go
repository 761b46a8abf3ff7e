// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package analytics

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/waypost/internal/config"
	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/models"
)

const testTopic = "analytics.events"

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus := NewChannelBus(testTopic, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close(context.Background()) })
	return bus
}

func TestEmitterPublishesEnvelope(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := bus.Subscriber.Subscribe(ctx, testTopic)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	emitter := NewEmitter(bus.Publisher, testTopic)
	emitter.now = func() time.Time { return time.UnixMilli(1700000000000) }

	reqCtx := logging.ContextWithCorrelationID(context.Background(), "corr-1")
	reqCtx = logging.ContextWithLoadID(reqCtx, "load-1")

	params := Params{"page_title": "Viewer", "page_location": "https://example.org/"}
	if err := emitter.LogEvent(reqCtx, models.EventPageView, params); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()
		if got := msg.Metadata.Get(MetadataEventName); got != models.EventPageView {
			t.Errorf("event_name metadata = %q", got)
		}
		if got := middleware.MessageCorrelationID(msg); got != "corr-1" {
			t.Errorf("correlation id = %q", got)
		}
		if got := msg.Metadata.Get("load_id"); got != "load-1" {
			t.Errorf("load_id metadata = %q", got)
		}

		var env models.AnalyticsEnvelope
		if err := json.Unmarshal(msg.Payload, &env); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if env.Name != models.EventPageView {
			t.Errorf("Name = %q", env.Name)
		}
		if env.EventID != msg.UUID {
			t.Errorf("EventID %q should match message UUID %q", env.EventID, msg.UUID)
		}
		if env.Timestamp != 1700000000000 {
			t.Errorf("Timestamp = %d", env.Timestamp)
		}
		if env.Params["page_title"] != "Viewer" {
			t.Errorf("params = %v", env.Params)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("bus down") }
func (failingPublisher) Close() error                              { return nil }

func TestEmitterReturnsPublishError(t *testing.T) {
	emitter := NewEmitter(failingPublisher{}, testTopic)
	err := emitter.LogEvent(context.Background(), models.EventUserEngagement, Params{"engagement_time_msec": 60000})
	if err == nil || !strings.Contains(err.Error(), "bus down") {
		t.Errorf("LogEvent() error = %v, want bus down", err)
	}
}

func TestEmitterRejectsUnencodableParams(t *testing.T) {
	emitter := NewEmitter(failingPublisher{}, testTopic)
	err := emitter.LogEvent(context.Background(), models.EventPageView, Params{"bad": make(chan int)})
	if err == nil || !strings.Contains(err.Error(), "marshal") {
		t.Errorf("LogEvent() error = %v, want marshal error", err)
	}
}

func TestRecorderCountsEvents(t *testing.T) {
	bus := newTestBus(t)
	rec := NewRecorder(bus.Subscriber, testTopic)

	got := make(chan struct{}, 64)
	rec.OnEvent(func(models.AnalyticsEnvelope) {
		select {
		case got <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Serve(ctx) }()

	emitter := NewEmitter(bus.Publisher, testTopic)

	// GoChannel drops messages published before the subscription exists.
	deadline := time.After(3 * time.Second)
	for len(rec.Totals()) == 0 {
		_ = emitter.LogEvent(context.Background(), models.EventPageView, nil)
		select {
		case <-got:
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("recorder never received an event")
		}
	}

	for _, n := range []string{models.EventGeeInteraction, models.EventGeeInteraction, models.EventUserEngagement} {
		if err := emitter.LogEvent(context.Background(), n, Params{"k": "v"}); err != nil {
			t.Fatalf("LogEvent: %v", err)
		}
	}

	deadline = time.After(2 * time.Second)
	for {
		totals := rec.Totals()
		if totals[models.EventGeeInteraction] == 2 && totals[models.EventUserEngagement] == 1 {
			break
		}
		select {
		case <-got:
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for events, totals = %v", totals)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestRecorderSkipsMalformedPayload(t *testing.T) {
	rec := NewRecorder(nil, testTopic)
	rec.record(message.NewMessage(watermill.NewUUID(), []byte("not json")))
	if len(rec.Totals()) != 0 {
		t.Errorf("malformed payload should not be counted: %v", rec.Totals())
	}
}

func TestNewBusUnknownTransport(t *testing.T) {
	_, err := NewBus(config.AnalyticsConfig{Transport: "kafka", Topic: testTopic})
	if err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestNATSBusWithEmbeddedServer(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a NATS server")
	}

	bus, err := NewBus(config.AnalyticsConfig{
		Transport:    config.TransportNATS,
		Topic:        testTopic,
		Embedded:     true,
		EmbeddedHost: "127.0.0.1",
		EmbeddedPort: -1,
	})
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bus.Close(ctx); err != nil {
			t.Errorf("Close: %v", err)
		}
	}()

	if bus.Embedded() == nil || !bus.Embedded().IsRunning() {
		t.Fatal("embedded server should be running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := bus.Subscriber.Subscribe(ctx, testTopic)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	emitter := NewEmitter(bus.Publisher, testTopic)
	deadline := time.After(5 * time.Second)
	for {
		if err := emitter.LogEvent(context.Background(), models.EventGeeInteraction, Params{"action": "zoom"}); err != nil {
			t.Fatalf("LogEvent: %v", err)
		}
		select {
		case msg := <-messages:
			msg.Ack()
			if got := msg.Metadata.Get(MetadataEventName); got != models.EventGeeInteraction {
				t.Errorf("event_name metadata = %q", got)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no message received over NATS")
		}
	}
}

func TestZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewZerologAdapterFrom(logging.NewTestLogger(&buf))

	adapter.With(watermill.LogFields{"topic": "t"}).Error("publish failed", errors.New("boom"), watermill.LogFields{"n": 1})

	out := buf.String()
	for _, want := range []string{`"topic":"t"`, `"n":1`, `"error":"boom"`, "publish failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}
