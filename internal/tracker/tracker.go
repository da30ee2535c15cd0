// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package tracker ingests visitor analytics events from the public site.
//
// Events are written to the database and announced on the analytics
// change subject. When the database write fails the event falls back to
// the durable buffer, so tracking survives database restarts.
package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mindtree-labs/pulseboard/internal/config"
	"github.com/mindtree-labs/pulseboard/internal/eventstream"
	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/metrics"
	"github.com/mindtree-labs/pulseboard/internal/models"
	"github.com/mindtree-labs/pulseboard/internal/wal"
)

// Viewport width breakpoints matching the public site's CSS.
const (
	mobileMaxWidth = 768
	tabletMaxWidth = 1024
)

// ErrDisabled is returned when tracking is turned off in configuration.
var ErrDisabled = errors.New("tracking is disabled")

// ErrRateLimited is returned when a visitor exceeds their event budget.
var ErrRateLimited = errors.New("visitor rate limit exceeded")

// limiterTTL is how long an idle visitor's limiter is retained.
const limiterTTL = 10 * time.Minute

// Store persists events. *database.DB satisfies it.
type Store interface {
	InsertEvent(ctx context.Context, event *models.ViewEvent) error
}

// Tracker validates, enriches, and persists incoming events.
type Tracker struct {
	cfg       config.TrackingConfig
	store     Store
	buffer    *wal.Buffer
	publisher eventstream.ChangePublisher
	now       func() time.Time

	mu       sync.Mutex
	limiters map[string]*visitorLimiter
	closed   bool
}

type visitorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a tracker. The buffer and publisher may be nil when the
// corresponding subsystems are disabled.
func New(cfg config.TrackingConfig, store Store, buffer *wal.Buffer, publisher eventstream.ChangePublisher) *Tracker {
	return &Tracker{
		cfg:       cfg,
		store:     store,
		buffer:    buffer,
		publisher: publisher,
		now:       time.Now,
		limiters:  make(map[string]*visitorLimiter),
	}
}

// Track enriches and persists one event.
//
// Returns ErrDisabled when tracking is off, ErrRateLimited when the
// visitor exceeded their budget. A database failure is not an error for
// the caller when the event was buffered for replay.
func (t *Tracker) Track(ctx context.Context, event *models.ViewEvent) error {
	if !t.cfg.Enabled {
		return ErrDisabled
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("tracker is closed")
	}
	t.mu.Unlock()

	t.enrich(event)

	if !t.allow(event.VisitorID) {
		metrics.EventsRateLimited.Inc()
		return ErrRateLimited
	}

	if err := t.store.InsertEvent(ctx, event); err != nil {
		if t.buffer == nil {
			return err
		}
		logging.Warn().Err(err).Str("event_id", event.ID.String()).Msg("buffering event after insert failure")
		if _, bufErr := t.buffer.Append(ctx, event); bufErr != nil {
			return errors.Join(err, bufErr)
		}
		metrics.EventsBuffered.Inc()
		return nil
	}

	metrics.EventsTracked.WithLabelValues(string(event.EventType)).Inc()

	if t.publisher != nil {
		if err := t.publisher.PublishChange(ctx, models.CollectionAnalytics, eventstream.OpInsert); err != nil {
			logging.Warn().Err(err).Msg("publish analytics change")
		}
	}
	return nil
}

// enrich fills derived and defaulted fields in place.
func (t *Tracker) enrich(event *models.ViewEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = t.now().UTC()
	}
	if event.EventType == "" {
		event.EventType = models.EventPageView
	}
	if event.Referrer == "" {
		event.Referrer = "direct"
	}
	if event.DeviceType == "" {
		event.DeviceType = string(DeviceTypeForWidth(event.ViewportWidth))
	}
	event.Path = strings.TrimSpace(event.Path)
}

// DeviceTypeForWidth classifies a viewport width into a device bucket.
// Zero or negative widths count as desktop; bots often omit the viewport.
func DeviceTypeForWidth(width int) models.DeviceType {
	switch {
	case width > 0 && width < mobileMaxWidth:
		return models.DeviceMobile
	case width >= mobileMaxWidth && width < tabletMaxWidth:
		return models.DeviceTablet
	default:
		return models.DeviceDesktop
	}
}

// allow checks the per-visitor rate limit, pruning idle limiters as a
// side effect so the map stays bounded.
func (t *Tracker) allow(visitorID string) bool {
	if t.cfg.EventsPerMinute <= 0 {
		return true
	}
	if visitorID == "" {
		visitorID = "anonymous"
	}

	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, vl := range t.limiters {
		if now.Sub(vl.lastSeen) > limiterTTL {
			delete(t.limiters, id)
		}
	}

	vl, ok := t.limiters[visitorID]
	if !ok {
		vl = &visitorLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(t.cfg.EventsPerMinute)/60.0), t.cfg.Burst),
		}
		t.limiters[visitorID] = vl
	}
	vl.lastSeen = now

	return vl.limiter.AllowN(now, 1)
}

// Close stops accepting events. In-flight Track calls complete normally.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
