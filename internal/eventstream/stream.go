// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package eventstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamContext is the subset of jetstream.JetStream used by
// StreamInitializer. Tests substitute a mock implementation.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer creates or updates the CHANGES stream before any
// publisher or subscriber connects. Initialization is idempotent.
type StreamInitializer struct {
	js            JetStreamContext
	retentionDays int
}

// NewStreamInitializer wraps a JetStream context for stream setup.
func NewStreamInitializer(js JetStreamContext, retentionDays int) (*StreamInitializer, error) {
	if js == nil {
		return nil, fmt.Errorf("JetStream context required")
	}
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &StreamInitializer{js: js, retentionDays: retentionDays}, nil
}

// Connect dials NATS and returns an initializer plus the connection,
// which the caller owns and must close.
func Connect(url string, retentionDays int) (*StreamInitializer, *natsgo.Conn, error) {
	nc, err := natsgo.Connect(url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect NATS %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}

	init, err := NewStreamInitializer(js, retentionDays)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return init, nc, nil
}

// EnsureStream creates the CHANGES stream covering "changes.>" or updates
// it in place when the configuration drifted.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{TopicPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      time.Duration(s.retentionDays) * 24 * time.Hour,
		Duplicates:  2 * time.Minute,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}

	_, err := s.js.Stream(ctx, StreamName)
	if err == nil {
		stream, err := s.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", StreamName, err)
		}
		return stream, nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := s.js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", StreamName, err)
		}
		return stream, nil
	}

	return nil, fmt.Errorf("check stream %s: %w", StreamName, err)
}

// IsHealthy reports whether the stream exists and responds.
func (s *StreamInitializer) IsHealthy(ctx context.Context) bool {
	_, err := s.js.Stream(ctx, StreamName)
	return err == nil
}
