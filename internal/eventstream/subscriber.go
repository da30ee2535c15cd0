// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package eventstream

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/mindtree-labs/pulseboard/internal/config"
	"github.com/mindtree-labs/pulseboard/internal/models"
)

// Subscriber consumes change events from NATS JetStream via Watermill.
// Consumers are durable and deliver new messages only. Missed notifications
// do not need replay because every refresh requeries full collection state.
type Subscriber struct {
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
}

// NewSubscriber creates a durable JetStream subscriber bound to the
// CHANGES stream. BindStream is required because subjects under
// "changes.>" are wildcarded and AutoProvision cannot name such a stream.
func NewSubscriber(cfg *config.NATSConfig, url string, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if logger == nil {
		logger = NewWatermillLogger()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("subscriber disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("subscriber reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(5),
		natsgo.MaxAckPending(256),
		natsgo.AckWait(cfg.CloseTimeout),
		natsgo.DeliverNew(),
		natsgo.BindStream(StreamName),
	}

	wmConfig := wmnats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		CloseTimeout:     cfg.CloseTimeout,
		AckWaitTimeout:   cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmnats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Subscriber{subscriber: sub, logger: logger}, nil
}

// Subscribe returns the message channel for one collection's change subject.
// The channel closes when the context is canceled or the subscriber closes.
func (s *Subscriber) Subscribe(ctx context.Context, collection models.Collection) (<-chan *message.Message, error) {
	return s.subscriber.Subscribe(ctx, TopicFor(collection))
}

// Close shuts down the subscriber and all its consumers.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}
