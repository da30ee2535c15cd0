// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package wal

import (
	"context"
	"errors"
	"time"

	"github.com/mindtree-labs/pulseboard/internal/eventstream"
	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/metrics"
	"github.com/mindtree-labs/pulseboard/internal/models"
)

// replayBatchSize bounds how many entries one flush pass attempts.
const replayBatchSize = 256

// Sink receives replayed events. *database.DB satisfies it.
type Sink interface {
	InsertEvent(ctx context.Context, event *models.ViewEvent) error
}

// Flusher periodically drains the buffer into the database and announces
// the resulting analytics change.
type Flusher struct {
	buffer    *Buffer
	sink      Sink
	publisher eventstream.ChangePublisher
	interval  time.Duration
}

// NewFlusher wires a flusher. The publisher may be nil when change
// notifications are disabled.
func NewFlusher(buffer *Buffer, sink Sink, publisher eventstream.ChangePublisher, interval time.Duration) *Flusher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Flusher{
		buffer:    buffer,
		sink:      sink,
		publisher: publisher,
		interval:  interval,
	}
}

// String identifies the flusher in supervisor logs.
func (f *Flusher) String() string {
	return "wal-flusher"
}

// Run flushes on the configured interval until the context is canceled.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.FlushOnce(ctx); err != nil && !errors.Is(err, ErrClosed) {
				logging.Error().Err(err).Msg("wal flush pass failed")
			}
		}
	}
}

// FlushOnce replays one batch of pending entries. The pass stops at the
// first insert failure so a down database is probed once, not hammered.
func (f *Flusher) FlushOnce(ctx context.Context) error {
	entries, err := f.buffer.Pending(ctx, replayBatchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	replayed := 0
	for _, entry := range entries {
		event := entry.Event
		if err := f.sink.InsertEvent(ctx, &event); err != nil {
			logging.Warn().
				Err(err).
				Str("entry_id", entry.ID).
				Int("attempts", entry.Attempts+1).
				Msg("replay insert failed")
			if recErr := f.buffer.RecordFailure(ctx, entry.ID); recErr != nil {
				logging.Error().Err(recErr).Str("entry_id", entry.ID).Msg("record replay failure")
			}
			break
		}
		if err := f.buffer.Confirm(ctx, entry.ID); err != nil {
			logging.Error().Err(err).Str("entry_id", entry.ID).Msg("confirm replayed entry")
			break
		}
		replayed++
		metrics.EventsReplayed.Inc()
	}

	if replayed > 0 {
		logging.Info().Int("replayed", replayed).Msg("replayed buffered events")
		if f.publisher != nil {
			if err := f.publisher.PublishChange(ctx, models.CollectionAnalytics, eventstream.OpInsert); err != nil {
				logging.Warn().Err(err).Msg("publish analytics change after replay")
			}
		}
	}
	return nil
}
