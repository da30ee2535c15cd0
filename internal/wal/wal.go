// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package wal buffers tracked view events that could not be written to
// the database. Entries are durable across restarts and replayed by a
// background flusher, so a database hiccup loses no analytics data.
package wal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/models"
)

// Key prefixes partition the keyspace by entry state.
const (
	prefixPending = "pending:"
	prefixFailed  = "failed:"
)

// maxAttempts is how many replays an entry gets before it is parked
// under the failed prefix for manual inspection.
const maxAttempts = 10

// ErrClosed is returned for operations on a closed buffer.
var ErrClosed = errors.New("wal buffer is closed")

// Entry is one buffered view event awaiting replay.
type Entry struct {
	ID        string           `json:"id"`
	Event     models.ViewEvent `json:"event"`
	CreatedAt time.Time        `json:"created_at"`
	Attempts  int              `json:"attempts"`
}

// Buffer is a BadgerDB-backed durable event buffer.
type Buffer struct {
	db *badger.DB

	mu     sync.RWMutex
	closed bool
}

// Open creates or reopens a buffer at the given directory.
// SyncWrites is enabled: an acknowledged append survives a crash.
func Open(dir string) (*Buffer, error) {
	opts := badger.DefaultOptions(dir)
	opts.SyncWrites = true
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}

	logging.Info().Str("dir", dir).Msg("event buffer opened")
	return &Buffer{db: db}, nil
}

// OpenInMemory creates an ephemeral buffer for tests.
func OpenInMemory() (*Buffer, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return &Buffer{db: db}, nil
}

// Append stores an event for later replay and returns its entry ID.
func (b *Buffer) Append(ctx context.Context, event *models.ViewEvent) (string, error) {
	if err := b.checkOpen(); err != nil {
		return "", err
	}
	if event == nil {
		return "", fmt.Errorf("nil event")
	}

	entry := Entry{
		ID:        uuid.New().String(),
		Event:     *event,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixPending+entry.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("write entry: %w", err)
	}
	return entry.ID, nil
}

// Pending returns up to limit entries awaiting replay, oldest key first.
func (b *Buffer) Pending(ctx context.Context, limit int) ([]Entry, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var entries []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixPending)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(entries) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return fmt.Errorf("unmarshal entry: %w", err)
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Confirm removes a replayed entry.
func (b *Buffer) Confirm(ctx context.Context, entryID string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixPending + entryID))
	})
}

// RecordFailure bumps an entry's attempt count. After maxAttempts the
// entry moves to the failed prefix and stops being replayed.
func (b *Buffer) RecordFailure(ctx context.Context, entryID string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	pendingKey := []byte(prefixPending + entryID)
	return b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(pendingKey)
		if err != nil {
			return fmt.Errorf("read entry %s: %w", entryID, err)
		}

		var entry Entry
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
		if err != nil {
			return fmt.Errorf("unmarshal entry %s: %w", entryID, err)
		}

		entry.Attempts++
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}

		if entry.Attempts >= maxAttempts {
			logging.Warn().
				Str("entry_id", entryID).
				Int("attempts", entry.Attempts).
				Msg("parking event after repeated replay failures")
			if err := txn.Set([]byte(prefixFailed+entryID), data); err != nil {
				return err
			}
			return txn.Delete(pendingKey)
		}
		return txn.Set(pendingKey, data)
	})
}

// PendingCount returns the number of entries awaiting replay.
func (b *Buffer) PendingCount(ctx context.Context) (int, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixPending)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close releases the underlying database. Safe to call more than once.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

func (b *Buffer) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}
