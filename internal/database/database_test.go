// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package database

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/models"
)

func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewInMemory()
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func insertTestProject(t *testing.T, db *DB, title string, visible bool) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	p := &models.Project{
		ID:        uuid.New(),
		Title:     title,
		Category:  "Other",
		Visible:   visible,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.InsertProject(context.Background(), p); err != nil {
		t.Fatalf("insert project %q: %v", title, err)
	}
	return p.ID
}

func insertTestEvent(t *testing.T, db *DB, path, visitor string, occurredAt time.Time, eventType models.EventType) {
	t.Helper()
	ev := &models.ViewEvent{
		ID:         uuid.New(),
		Path:       path,
		OccurredAt: occurredAt,
		VisitorID:  visitor,
		EventType:  eventType,
		Referrer:   "direct",
	}
	if err := db.InsertEvent(context.Background(), ev); err != nil {
		t.Fatalf("insert event %s: %v", path, err)
	}
}

func TestProjectCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	total, visible, err := db.ProjectCounts(ctx)
	if err != nil {
		t.Fatalf("ProjectCounts on empty store: %v", err)
	}
	if total != 0 || visible != 0 {
		t.Errorf("empty counts = %d/%d, want 0/0", total, visible)
	}

	insertTestProject(t, db, "Alpha", true)
	insertTestProject(t, db, "Beta", true)
	insertTestProject(t, db, "Gamma", false)

	total, visible, err = db.ProjectCounts(ctx)
	if err != nil {
		t.Fatalf("ProjectCounts: %v", err)
	}
	if total != 3 || visible != 2 {
		t.Errorf("counts = %d/%d, want 3/2", total, visible)
	}
	if visible > total {
		t.Errorf("visible %d exceeds total %d", visible, total)
	}
}

func TestUpdateProject(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id := insertTestProject(t, db, "Draft", false)

	updated := &models.Project{
		ID:        id,
		Title:     "Published",
		Category:  "Web",
		Visible:   true,
		MainTags:  []string{"go", "duckdb"},
		UpdatedAt: time.Now().UTC(),
	}
	if err := db.UpdateProject(ctx, updated); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}

	projects, err := db.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("project count = %d, want 1", len(projects))
	}
	got := projects[0]
	if got.Title != "Published" || got.Category != "Web" || !got.Visible {
		t.Errorf("project after update = %+v", got)
	}
	if len(got.MainTags) != 2 || got.MainTags[0] != "go" {
		t.Errorf("main tags = %v, want [go duckdb]", got.MainTags)
	}

	missing := &models.Project{ID: uuid.New(), Title: "Ghost", UpdatedAt: time.Now().UTC()}
	if err := db.UpdateProject(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("update of missing project = %v, want ErrNotFound", err)
	}
}

func TestMessageCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		m := &models.Message{
			ID:        ids[i],
			Name:      "Visitor",
			Email:     "visitor@example.com",
			Message:   "Hello",
			CreatedAt: time.Now().UTC(),
		}
		if err := db.InsertMessage(ctx, m); err != nil {
			t.Fatalf("insert message: %v", err)
		}
	}

	if err := db.MarkMessageRead(ctx, ids[0]); err != nil {
		t.Fatalf("MarkMessageRead: %v", err)
	}

	total, unread, err := db.MessageCounts(ctx)
	if err != nil {
		t.Fatalf("MessageCounts: %v", err)
	}
	if total != 3 || unread != 2 {
		t.Errorf("counts = %d/%d, want 3/2", total, unread)
	}
	if unread > total {
		t.Errorf("unread %d exceeds total %d", unread, total)
	}

	if err := db.MarkMessageRead(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("mark missing message = %v, want ErrNotFound", err)
	}
}

func TestAnalyticsTotals(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	insertTestEvent(t, db, "/", "visitor-a", now.Add(-3*time.Minute), models.EventPageView)
	insertTestEvent(t, db, "/project/alpha", "visitor-a", now.Add(-2*time.Minute), models.EventPageView)
	insertTestEvent(t, db, "/project/beta", "visitor-b", now.Add(-time.Minute), models.EventPageView)

	totalViews, profileVisits, err := db.AnalyticsTotals(context.Background())
	if err != nil {
		t.Fatalf("AnalyticsTotals: %v", err)
	}
	if totalViews != 3 {
		t.Errorf("total views = %d, want 3", totalViews)
	}
	if profileVisits != 2 {
		t.Errorf("profile visits = %d, want 2 distinct visitors", profileVisits)
	}
}

func TestRecentProjectViewEvents(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	insertTestEvent(t, db, "/project/alpha", "v1", now.Add(-3*time.Minute), models.EventPageView)
	insertTestEvent(t, db, "/project/beta", "v1", now.Add(-2*time.Minute), models.EventPageView)
	insertTestEvent(t, db, "/project/gamma", "v2", now.Add(-time.Minute), models.EventPageView)

	// Neither the non-project path nor the click event belongs in the window.
	insertTestEvent(t, db, "/about", "v1", now, models.EventPageView)
	insertTestEvent(t, db, "/project/alpha", "v1", now, models.EventProjectClick)

	events, err := db.RecentProjectViewEvents(context.Background(), 2)
	if err != nil {
		t.Fatalf("RecentProjectViewEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("event count = %d, want 2", len(events))
	}
	if events[0].Path != "/project/gamma" || events[1].Path != "/project/beta" {
		t.Errorf("paths = %s, %s, want newest first gamma then beta", events[0].Path, events[1].Path)
	}
}

func TestRecentProjectViewEventsSkipsMalformedRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	insertTestEvent(t, db, "/project/alpha", "v1", now.Add(-time.Minute), models.EventPageView)

	// A row whose id is not a UUID is skipped, not fatal to the batch.
	_, err := db.Conn().ExecContext(ctx, `
		INSERT INTO analytics (id, path, occurred_at, visitor_id, event_type)
		VALUES ('not-a-uuid', '/project/broken', ?, 'v2', ?)`,
		now, string(models.EventPageView))
	if err != nil {
		t.Fatalf("insert malformed row: %v", err)
	}

	events, err := db.RecentProjectViewEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentProjectViewEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("event count = %d, want the single well-formed row", len(events))
	}
	if events[0].Path != "/project/alpha" {
		t.Errorf("path = %s, want /project/alpha", events[0].Path)
	}
}

func TestMediaLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	asset := &models.MediaAsset{
		ID:         uuid.New(),
		ProviderID: "img_123",
		URL:        "https://cdn.example.com/img_123.webp",
		Format:     "webp",
		Tags:       []string{"thumbnail"},
		UploadedAt: time.Now().UTC(),
	}
	if err := db.InsertMedia(ctx, asset); err != nil {
		t.Fatalf("InsertMedia: %v", err)
	}

	count, err := db.MediaCount(ctx)
	if err != nil {
		t.Fatalf("MediaCount: %v", err)
	}
	if count != 1 {
		t.Errorf("media count = %d, want 1", count)
	}

	assets, err := db.ListMedia(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListMedia: %v", err)
	}
	if len(assets) != 1 || assets[0].ProviderID != "img_123" {
		t.Fatalf("assets = %+v, want the inserted record", assets)
	}
	if assets[0].ProjectID != nil {
		t.Errorf("project id = %v, want nil for unattached asset", assets[0].ProjectID)
	}

	if err := db.DeleteMedia(ctx, asset.ID); err != nil {
		t.Fatalf("DeleteMedia: %v", err)
	}
	if err := db.DeleteMedia(ctx, asset.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}
