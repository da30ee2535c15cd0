// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package eventstream delivers change notifications between the API
// write paths and the metric collector over NATS JetStream.
//
// Every mutation of a tracked collection publishes a ChangeEvent to the
// subject "changes.<collection>". Payloads carry no row data, only the
// fact that the collection changed. Consumers requery the database for
// authoritative state, so a lost or duplicated notification can delay a
// refresh but never corrupt it.
package eventstream

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mindtree-labs/pulseboard/internal/models"
)

// TopicPrefix is the subject namespace for change notifications.
const TopicPrefix = "changes"

// StreamName is the JetStream stream holding all change subjects.
const StreamName = "CHANGES"

// Op identifies the kind of mutation that produced a change event.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ChangeEvent is the wire payload published for every collection mutation.
type ChangeEvent struct {
	EventID    string            `json:"event_id"`
	Collection models.Collection `json:"collection"`
	Op         Op                `json:"op"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewChangeEvent builds a change event with a fresh event ID.
func NewChangeEvent(collection models.Collection, op Op) *ChangeEvent {
	return &ChangeEvent{
		EventID:    uuid.New().String(),
		Collection: collection,
		Op:         op,
		OccurredAt: time.Now().UTC(),
	}
}

// Topic returns the NATS subject for this event's collection.
func (e *ChangeEvent) Topic() string {
	return TopicFor(e.Collection)
}

// TopicFor returns the NATS subject carrying changes for a collection.
func TopicFor(collection models.Collection) string {
	return TopicPrefix + "." + string(collection)
}

// Validate checks that the event is well formed before publishing.
func (e *ChangeEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("change event missing event_id")
	}
	if !e.Collection.Valid() {
		return fmt.Errorf("change event has unknown collection %q", e.Collection)
	}
	switch e.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("change event has unknown op %q", e.Op)
	}
	return nil
}

// Serialize encodes the event for transport.
func (e *ChangeEvent) Serialize() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// DeserializeChangeEvent decodes and validates a wire payload.
func DeserializeChangeEvent(data []byte) (*ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal change event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
