// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package wal

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mindtree-labs/pulseboard/internal/eventstream"
	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/models"
)

func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

func openTestBuffer(t *testing.T) *Buffer {
	t.Helper()
	buf, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = buf.Close() })
	return buf
}

func testEvent() *models.ViewEvent {
	return &models.ViewEvent{
		ID:         uuid.New(),
		Path:       "/project/demo",
		EventType:  models.EventPageView,
		OccurredAt: time.Now().UTC(),
		VisitorID:  "v-1",
	}
}

func TestAppendPendingConfirm(t *testing.T) {
	buf := openTestBuffer(t)
	ctx := context.Background()

	id, err := buf.Append(ctx, testEvent())
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := buf.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("pending entries = %d, want 1", len(entries))
	}
	if entries[0].ID != id {
		t.Errorf("entry ID = %q, want %q", entries[0].ID, id)
	}
	if entries[0].Event.Path != "/project/demo" {
		t.Errorf("event path = %q, want /project/demo", entries[0].Event.Path)
	}

	if err := buf.Confirm(ctx, id); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	count, err := buf.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount: %v", err)
	}
	if count != 0 {
		t.Errorf("pending count after confirm = %d, want 0", count)
	}
}

func TestPendingLimit(t *testing.T) {
	buf := openTestBuffer(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := buf.Append(ctx, testEvent()); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := buf.Pending(ctx, 3)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("entries = %d, want 3", len(entries))
	}
}

func TestRecordFailureParksEntry(t *testing.T) {
	buf := openTestBuffer(t)
	ctx := context.Background()

	id, err := buf.Append(ctx, testEvent())
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	for i := 0; i < maxAttempts; i++ {
		if err := buf.RecordFailure(ctx, id); err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
	}

	count, err := buf.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount: %v", err)
	}
	if count != 0 {
		t.Errorf("pending count = %d, want 0 after parking", count)
	}
}

func TestClosedBufferRejectsOperations(t *testing.T) {
	buf := openTestBuffer(t)
	if err := buf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ctx := context.Background()
	if _, err := buf.Append(ctx, testEvent()); !errors.Is(err, ErrClosed) {
		t.Errorf("Append after close = %v, want ErrClosed", err)
	}
	if _, err := buf.Pending(ctx, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Pending after close = %v, want ErrClosed", err)
	}
	if err := buf.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

type fakeSink struct {
	mu     sync.Mutex
	events []models.ViewEvent
	err    error
}

func (f *fakeSink) InsertEvent(ctx context.Context, event *models.ViewEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeSink) inserted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakePublisher struct {
	mu      sync.Mutex
	changes []models.Collection
}

func (f *fakePublisher) PublishChange(ctx context.Context, c models.Collection, op eventstream.Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, c)
	return nil
}

func TestFlushOnceReplaysAndAnnounces(t *testing.T) {
	buf := openTestBuffer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := buf.Append(ctx, testEvent()); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	sink := &fakeSink{}
	pub := &fakePublisher{}
	flusher := NewFlusher(buf, sink, pub, time.Second)

	if err := flusher.FlushOnce(ctx); err != nil {
		t.Fatalf("FlushOnce: %v", err)
	}

	if sink.inserted() != 3 {
		t.Errorf("inserted = %d, want 3", sink.inserted())
	}
	count, _ := buf.PendingCount(ctx)
	if count != 0 {
		t.Errorf("pending after flush = %d, want 0", count)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.changes) != 1 || pub.changes[0] != models.CollectionAnalytics {
		t.Errorf("published changes = %v, want one analytics change", pub.changes)
	}
}

func TestFlushOnceStopsOnSinkError(t *testing.T) {
	buf := openTestBuffer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := buf.Append(ctx, testEvent()); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	sink := &fakeSink{err: errors.New("db down")}
	flusher := NewFlusher(buf, sink, nil, time.Second)

	if err := flusher.FlushOnce(ctx); err != nil {
		t.Fatalf("FlushOnce: %v", err)
	}

	// One probe, everything stays buffered.
	count, _ := buf.PendingCount(ctx)
	if count != 3 {
		t.Errorf("pending after failed flush = %d, want 3", count)
	}

	entries, _ := buf.Pending(ctx, 10)
	attempts := 0
	for _, e := range entries {
		attempts += e.Attempts
	}
	if attempts != 1 {
		t.Errorf("total attempts = %d, want 1", attempts)
	}
}
