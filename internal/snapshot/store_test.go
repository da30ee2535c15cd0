// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package snapshot

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/models"
)

//nolint:gochecknoinits // init ensures quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

func TestStore_InitialValues(t *testing.T) {
	store := New(models.MetricSnapshot{
		TotalProjects:   12,
		VisibleProjects: 9,
		TotalMessages:   30,
		UnreadMessages:  4,
	})

	snap := store.Get()
	if snap.TotalProjects != 12 || snap.VisibleProjects != 9 {
		t.Errorf("project counts = %d/%d, want 12/9", snap.TotalProjects, snap.VisibleProjects)
	}
	if snap.Version != 1 {
		t.Errorf("initial version = %d, want 1", snap.Version)
	}
}

func TestStore_FieldGroupIsolation(t *testing.T) {
	store := New(models.MetricSnapshot{TotalProjects: 5, VisibleProjects: 3})

	store.SetMessageCounts(10, 2)
	store.SetMediaCount(7)

	snap := store.Get()
	if snap.TotalProjects != 5 || snap.VisibleProjects != 3 {
		t.Error("message/media writers must not touch the projects group")
	}
	if snap.TotalMessages != 10 || snap.UnreadMessages != 2 {
		t.Errorf("message counts = %d/%d, want 10/2", snap.TotalMessages, snap.UnreadMessages)
	}
	if snap.TotalMedia != 7 {
		t.Errorf("media count = %d, want 7", snap.TotalMedia)
	}
}

func TestStore_VersionIncrementsPerMutation(t *testing.T) {
	store := New(models.MetricSnapshot{})

	store.SetProjectCounts(1, 1)
	store.SetMessageCounts(1, 0)
	store.SetPageLiveDays(100)

	if v := store.Version(); v != 4 {
		t.Errorf("version after 3 mutations = %d, want 4", v)
	}
}

func TestStore_UnreadNeverExceedsTotal(t *testing.T) {
	store := New(models.MetricSnapshot{})

	store.SetMessageCounts(3, 5)

	snap := store.Get()
	if snap.UnreadMessages > snap.TotalMessages {
		t.Errorf("unread %d > total %d after clamping write", snap.UnreadMessages, snap.TotalMessages)
	}
}

func TestStore_ClosedDropsWrites(t *testing.T) {
	store := New(models.MetricSnapshot{TotalMedia: 1})
	store.Close()

	if store.SetMediaCount(99) {
		t.Error("write after Close returned true, want dropped")
	}
	if got := store.Get().TotalMedia; got != 1 {
		t.Errorf("TotalMedia = %d after dropped write, want 1", got)
	}
	if !store.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestStore_ObserverReceivesCopies(t *testing.T) {
	store := New(models.MetricSnapshot{})

	var mu sync.Mutex
	var received []models.MetricSnapshot
	store.SetObserver(func(snap models.MetricSnapshot) {
		mu.Lock()
		received = append(received, snap)
		mu.Unlock()
	})

	recent := []models.ProjectViewSummary{{ProjectName: "Alpha", ViewCount: 2, LastViewedAt: time.Now()}}
	store.SetAnalytics(50, 20, recent)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("observer called %d times, want 1", len(received))
	}
	if received[0].TotalViews != 50 || received[0].ProfileVisits != 20 {
		t.Errorf("observed analytics = %d/%d, want 50/20", received[0].TotalViews, received[0].ProfileVisits)
	}

	// Mutating the caller's slice must not leak into the observed copy.
	recent[0].ProjectName = "mutated"
	if received[0].RecentProjectViews[0].ProjectName != "Alpha" {
		t.Error("observer received shared slice, want an independent copy")
	}
}

func TestStore_ConcurrentGroupWriters(t *testing.T) {
	store := New(models.MetricSnapshot{})

	var wg sync.WaitGroup
	writers := []func(int){
		func(i int) { store.SetProjectCounts(i+1, i) },
		func(i int) { store.SetMessageCounts(i+1, i) },
		func(i int) { store.SetAnalytics(i, i, nil) },
		func(i int) { store.SetMediaCount(i) },
	}
	for _, write := range writers {
		wg.Add(1)
		go func(write func(int)) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				write(i)
			}
		}(write)
	}
	wg.Wait()

	snap := store.Get()
	if snap.UnreadMessages > snap.TotalMessages {
		t.Errorf("unread %d > total %d under concurrent writers", snap.UnreadMessages, snap.TotalMessages)
	}
	if snap.VisibleProjects > snap.TotalProjects {
		t.Errorf("visible %d > total %d under concurrent writers", snap.VisibleProjects, snap.TotalProjects)
	}
	if snap.Version != 1+4*200 {
		t.Errorf("version = %d, want %d", snap.Version, 1+4*200)
	}
}
