// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package supervisor builds the suture service tree that keeps the
// long-running parts of Pulseboard alive.
//
// The tree has three child supervisors under one root:
//
//   - data: WAL flusher (when the durable ingest buffer is enabled)
//   - messaging: WebSocket hub and metric collector
//   - api: HTTP server
//
// A crash in one layer restarts only that layer's services. The HTTP
// server keeps serving the last published snapshot while the collector
// recovers.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/mindtree-labs/pulseboard/internal/logging"
)

// Options tunes restart behavior for every supervisor in the tree.
// Zero values fall back to suture's documented defaults.
type Options struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func (o *Options) applyDefaults() {
	if o.FailureThreshold == 0 {
		o.FailureThreshold = 5.0
	}
	if o.FailureDecay == 0 {
		o.FailureDecay = 30.0
	}
	if o.FailureBackoff == 0 {
		o.FailureBackoff = 15 * time.Second
	}
	if o.ShutdownTimeout == 0 {
		o.ShutdownTimeout = 10 * time.Second
	}
}

// Tree is the supervisor hierarchy for one Pulseboard process.
type Tree struct {
	root      *suture.Supervisor
	data      *suture.Supervisor
	messaging *suture.Supervisor
	api       *suture.Supervisor
}

// NewTree builds the three-layer supervisor hierarchy. Supervisor events
// are logged through the global logger via the slog bridge.
func NewTree(opts Options) *Tree {
	opts.applyDefaults()

	hook := (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook()

	rootSpec := suture.Spec{
		EventHook:        hook,
		FailureThreshold: opts.FailureThreshold,
		FailureDecay:     opts.FailureDecay,
		FailureBackoff:   opts.FailureBackoff,
		Timeout:          opts.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: opts.FailureThreshold,
		FailureDecay:     opts.FailureDecay,
		FailureBackoff:   opts.FailureBackoff,
		Timeout:          opts.ShutdownTimeout,
	}

	t := &Tree{
		root:      suture.New("pulseboard", rootSpec),
		data:      suture.New("data-layer", childSpec),
		messaging: suture.New("messaging-layer", childSpec),
		api:       suture.New("api-layer", childSpec),
	}
	t.root.Add(t.data)
	t.root.Add(t.messaging)
	t.root.Add(t.api)
	return t
}

// AddDataService supervises a service in the data layer.
func (t *Tree) AddDataService(svc suture.Service) suture.ServiceToken {
	return t.data.Add(svc)
}

// AddMessagingService supervises a service in the messaging layer.
func (t *Tree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

// AddAPIService supervises a service in the API layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine and reports its exit on
// the returned channel.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
