// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package snapshot holds the current MetricSnapshot, the single source of
// truth the dashboard reads from.
//
// Mutations are partitioned by field group: each collection worker owns
// exactly one group (project counts, message counts, analytics counts +
// recent views, media count) and the uptime ticker owns page_live_days.
// No two writers ever touch the same field, so the store's mutex only
// guards against torn reads, never against conflicting writes.
package snapshot

import (
	"sync"
	"time"

	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/metrics"
	"github.com/mindtree-labs/pulseboard/internal/models"
)

// Observer is notified after every successful snapshot mutation with a copy
// of the new state. The WebSocket hub registers here to push updates.
type Observer func(models.MetricSnapshot)

// Store holds the published MetricSnapshot for one dashboard session.
type Store struct {
	mu       sync.RWMutex
	snap     models.MetricSnapshot
	closed   bool
	observer Observer
}

// New creates a Store seeded with externally supplied initial values.
// The initial load happens once at session start; workers only ever
// overwrite their own field group afterwards.
func New(initial models.MetricSnapshot) *Store {
	initial.Version = 1
	initial.UpdatedAt = time.Now().UTC()
	return &Store{snap: initial}
}

// SetObserver registers the update observer. Must be called before any
// worker starts writing.
func (s *Store) SetObserver(fn Observer) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Get returns a copy of the current snapshot.
func (s *Store) Get() models.MetricSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.snap)
}

// Version returns the current snapshot version.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Version
}

// Close flips the liveness flag. Writes arriving after Close are dropped:
// an in-flight requery that resolves after teardown must not mutate state.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.observer = nil
	s.mu.Unlock()
}

// Closed reports whether the store has been torn down.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// SetProjectCounts writes the projects field group.
func (s *Store) SetProjectCounts(total, visible int) bool {
	if visible > total {
		// A store query can never produce this; guard against a bad caller.
		logging.Warn().Int("total", total).Int("visible", visible).Msg("visible projects exceeds total, clamping")
		visible = total
	}
	return s.mutate(func(snap *models.MetricSnapshot) {
		snap.TotalProjects = total
		snap.VisibleProjects = visible
	})
}

// SetMessageCounts writes the messages field group.
func (s *Store) SetMessageCounts(total, unread int) bool {
	if unread > total {
		logging.Warn().Int("total", total).Int("unread", unread).Msg("unread messages exceeds total, clamping")
		unread = total
	}
	return s.mutate(func(snap *models.MetricSnapshot) {
		snap.TotalMessages = total
		snap.UnreadMessages = unread
	})
}

// SetAnalytics writes the analytics field group: total views, distinct
// visitor count, and the recent-views rollup, in one atomic update.
func (s *Store) SetAnalytics(totalViews, profileVisits int, recent []models.ProjectViewSummary) bool {
	return s.mutate(func(snap *models.MetricSnapshot) {
		snap.TotalViews = totalViews
		snap.ProfileVisits = profileVisits
		snap.RecentProjectViews = append([]models.ProjectViewSummary(nil), recent...)
	})
}

// SetMediaCount writes the media field group.
func (s *Store) SetMediaCount(total int) bool {
	return s.mutate(func(snap *models.MetricSnapshot) {
		snap.TotalMedia = total
	})
}

// SetPageLiveDays writes the timer-owned page_live_days field.
func (s *Store) SetPageLiveDays(days int) bool {
	return s.mutate(func(snap *models.MetricSnapshot) {
		snap.PageLiveDays = days
	})
}

// SetDegraded records collections whose change subscription could not be
// established. The Presenter renders a degraded-data banner from this list.
func (s *Store) SetDegraded(collections []string) bool {
	return s.mutate(func(snap *models.MetricSnapshot) {
		snap.Degraded = append([]string(nil), collections...)
	})
}

// mutate applies fn under the write lock, bumps the version, and notifies
// the observer. Returns false when the store is closed and the write was
// dropped.
func (s *Store) mutate(fn func(*models.MetricSnapshot)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		metrics.SnapshotWritesDropped.Inc()
		return false
	}
	fn(&s.snap)
	s.snap.Version++
	s.snap.UpdatedAt = time.Now().UTC()
	observer := s.observer
	snap := copySnapshot(s.snap)
	s.mu.Unlock()

	metrics.SnapshotVersion.Set(float64(snap.Version))
	if observer != nil {
		observer(snap)
	}
	return true
}

func copySnapshot(snap models.MetricSnapshot) models.MetricSnapshot {
	out := snap
	out.RecentProjectViews = append([]models.ProjectViewSummary(nil), snap.RecentProjectViews...)
	out.Degraded = append([]string(nil), snap.Degraded...)
	return out
}
