// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package services

import "context"

// RunFunc is a blocking run loop that exits when its context is
// canceled. The collector, WebSocket hub, and WAL flusher all expose
// this shape.
type RunFunc func(ctx context.Context) error

// RunnerService adapts a RunFunc to suture.Service.
//
//	tree.AddMessagingService(services.NewRunnerService(col.String(), col.Run))
type RunnerService struct {
	name string
	run  RunFunc
}

// NewRunnerService wraps run as a supervised service identified by name.
func NewRunnerService(name string, run RunFunc) *RunnerService {
	return &RunnerService{name: name, run: run}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.run(ctx)
}

// String implements fmt.Stringer for supervisor log messages.
func (s *RunnerService) String() string {
	return s.name
}
