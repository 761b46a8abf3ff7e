// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/waypost/internal/config"
)

const (
	natsMaxReconnects = -1
	natsReconnectWait = 2 * time.Second
	natsCloseTimeout  = 5 * time.Second
	channelBuffer     = 256
)

// Bus bundles the analytics publisher, subscriber and any embedded server.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Topic      string

	embedded *EmbeddedServer
}

// NewChannelBus creates an in-process bus on a Watermill GoChannel.
func NewChannelBus(topic string, logger watermill.LoggerAdapter) *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: channelBuffer,
	}, logger)
	return &Bus{Publisher: ch, Subscriber: ch, Topic: topic}
}

// NewNATSBus creates a bus on core NATS. JetStream is not used because
// events are best-effort.
func NewNATSBus(url, topic string, logger watermill.LoggerAdapter) (*Bus, error) {
	opts := natsOptions(logger)

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: opts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: "waypost",
		SubscribersCount: 1,
		CloseTimeout:     natsCloseTimeout,
		NatsOptions:      opts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	return &Bus{Publisher: pub, Subscriber: sub, Topic: topic}, nil
}

func natsOptions(logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name("waypost"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(natsMaxReconnects),
		natsgo.ReconnectWait(natsReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}
}

// NewBus builds the bus selected by cfg, starting an embedded NATS server
// first when requested.
func NewBus(cfg config.AnalyticsConfig) (*Bus, error) {
	logger := NewZerologAdapter()

	switch cfg.Transport {
	case config.TransportChannel, "":
		return NewChannelBus(cfg.Topic, logger), nil

	case config.TransportNATS:
		url := cfg.NATSURL
		var embedded *EmbeddedServer
		if cfg.Embedded {
			srv, err := NewEmbeddedServer(cfg.EmbeddedHost, cfg.EmbeddedPort)
			if err != nil {
				return nil, err
			}
			embedded = srv
			url = srv.ClientURL()
		}

		bus, err := NewNATSBus(url, cfg.Topic, logger)
		if err != nil {
			if embedded != nil {
				_ = embedded.Shutdown(context.Background())
			}
			return nil, err
		}
		bus.embedded = embedded
		return bus, nil

	default:
		return nil, fmt.Errorf("unknown analytics transport %q", cfg.Transport)
	}
}

// Embedded returns the in-process NATS server, if any.
func (b *Bus) Embedded() *EmbeddedServer {
	return b.embedded
}

// Close closes the publisher and subscriber, then any embedded server.
func (b *Bus) Close(ctx context.Context) error {
	var errs []error
	if err := b.Publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	// GoChannel is both publisher and subscriber.
	if any(b.Subscriber) != any(b.Publisher) {
		if err := b.Subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	if b.embedded != nil {
		if err := b.embedded.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown NATS server: %w", err))
		}
	}
	return errors.Join(errs...)
}
