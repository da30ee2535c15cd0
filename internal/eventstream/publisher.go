// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package eventstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/mindtree-labs/pulseboard/internal/models"
)

// ChangePublisher defines the write-path contract for announcing mutations.
// Handlers publish through this interface so tests can observe notifications
// without a broker.
type ChangePublisher interface {
	PublishChange(ctx context.Context, collection models.Collection, op Op) error
}

// Publisher sends change events to NATS JetStream via Watermill.
// Event IDs double as Nats-Msg-Id headers so the dedup window absorbs
// publish retries.
type Publisher struct {
	publisher message.Publisher
	logger    watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewPublisher connects a Watermill NATS publisher to the given URL.
// The CHANGES stream must already exist; see StreamInitializer.
func NewPublisher(url string, reconnectWait time.Duration, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = NewWatermillLogger()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(reconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	wmConfig := wmnats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmnats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Publisher{publisher: pub, logger: logger}, nil
}

// PublishChange announces a mutation of the given collection.
func (p *Publisher) PublishChange(ctx context.Context, collection models.Collection, op Op) error {
	event := NewChangeEvent(collection, op)

	data, err := event.Serialize()
	if err != nil {
		return fmt.Errorf("serialize change event: %w", err)
	}

	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set("collection", string(collection))
	msg.Metadata.Set("op", string(op))

	return p.publish(event.Topic(), msg)
}

func (p *Publisher) publish(topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	return p.publisher.Publish(topic, msg)
}

// Close shuts down the publisher. Safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.publisher.Close()
}
