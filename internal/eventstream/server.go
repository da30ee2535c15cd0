// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package eventstream

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/mindtree-labs/pulseboard/internal/config"
)

// EmbeddedServer wraps an in-process NATS server with JetStream enabled.
// Single-instance deployments run the broker inside the dashboard binary
// so there is no external messaging dependency to operate.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer creates and starts an embedded NATS server.
// Returns an error if the server fails to accept connections within 30 seconds.
func NewEmbeddedServer(cfg *config.NATSConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "pulseboard-changes",
		Host:               "127.0.0.1",
		Port:               -1, // random free port
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		NoLog:              true,
		MaxPayload:         1 << 20, // change events are tiny, 1MB is generous
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server, waiting for in-flight messages unless the
// context is already canceled.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.server.WaitForShutdown()
		return nil
	}
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}
