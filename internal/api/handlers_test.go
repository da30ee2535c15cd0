// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mindtree-labs/pulseboard/internal/auth"
	"github.com/mindtree-labs/pulseboard/internal/config"
	"github.com/mindtree-labs/pulseboard/internal/database"
	"github.com/mindtree-labs/pulseboard/internal/eventstream"
	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/models"
	"github.com/mindtree-labs/pulseboard/internal/snapshot"
	"github.com/mindtree-labs/pulseboard/internal/tracker"
	"github.com/mindtree-labs/pulseboard/internal/websocket"
)

func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

// fakeStore implements Store in memory.
type fakeStore struct {
	mu       sync.Mutex
	pingErr  error
	projects map[uuid.UUID]models.Project
	messages map[uuid.UUID]models.Message
	media    map[uuid.UUID]models.MediaAsset
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects: make(map[uuid.UUID]models.Project),
		messages: make(map[uuid.UUID]models.Message),
		media:    make(map[uuid.UUID]models.MediaAsset),
	}
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) InsertProject(ctx context.Context, p *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[p.ID] = *p
	return nil
}

func (f *fakeStore) UpdateProject(ctx context.Context, p *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.projects[p.ID]
	if !ok {
		return database.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	f.projects[p.ID] = *p
	return nil
}

func (f *fakeStore) SetProjectVisibility(ctx context.Context, id uuid.UUID, visible bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return database.ErrNotFound
	}
	p.Visible = visible
	f.projects[id] = p
	return nil
}

func (f *fakeStore) DeleteProject(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeStore) ListMessages(ctx context.Context, limit, offset int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[m.ID] = *m
	return nil
}

func (f *fakeStore) MarkMessageRead(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return database.ErrNotFound
	}
	m.IsRead = true
	f.messages[id] = m
	return nil
}

func (f *fakeStore) ReplyMessage(ctx context.Context, id uuid.UUID, replyText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return database.ErrNotFound
	}
	m.Replied = true
	m.ReplyText = replyText
	m.IsRead = true
	f.messages[id] = m
	return nil
}

func (f *fakeStore) ListMedia(ctx context.Context, limit, offset int) ([]models.MediaAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.MediaAsset, 0, len(f.media))
	for _, m := range f.media {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) InsertMedia(ctx context.Context, m *models.MediaAsset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media[m.ID] = *m
	return nil
}

func (f *fakeStore) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.media[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.media, id)
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []string
}

func (p *recordingPublisher) PublishChange(ctx context.Context, c models.Collection, op eventstream.Op) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, string(c)+":"+string(op))
	return nil
}

func (p *recordingPublisher) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.changes))
	copy(out, p.changes)
	return out
}

type testEnv struct {
	store   *fakeStore
	snap    *snapshot.Store
	pub     *recordingPublisher
	manager *auth.Manager
	server  http.Handler
}

func newTestEnv(t *testing.T, authMode string) *testEnv {
	t.Helper()

	store := newFakeStore()
	snap := snapshot.New(models.MetricSnapshot{TotalProjects: 2, VisibleProjects: 1})
	pub := &recordingPublisher{}
	hub := websocket.NewHub()

	secCfg := &config.SecurityConfig{
		AuthMode:        authMode,
		JWTSecret:       strings.Repeat("s", 32),
		SessionTimeout:  time.Hour,
		AdminUsername:   "admin",
		AdminPassword:   "correct-horse-battery",
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	}

	manager, err := auth.NewManager(secCfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tr := tracker.New(config.TrackingConfig{Enabled: true, EventsPerMinute: 6000, Burst: 100}, eventSink{}, nil, pub)
	handler := NewHandler(store, snap, hub, tr, manager, pub)
	router := NewRouter(handler, auth.NewMiddleware(manager, authMode), secCfg)

	return &testEnv{store: store, snap: snap, pub: pub, manager: manager, server: router.Setup()}
}

// eventSink discards tracked events; snapshot refreshes are out of scope here.
type eventSink struct{}

func (eventSink) InsertEvent(ctx context.Context, event *models.ViewEvent) error {
	return nil
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t, "none")
	rec := env.request(t, http.MethodGet, "/api/v1/health/live", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHealthReadyDegradedOnPingFailure(t *testing.T) {
	env := newTestEnv(t, "none")

	rec := env.request(t, http.MethodGet, "/api/v1/health/ready", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy status = %d, want 200", rec.Code)
	}

	env.store.pingErr = errors.New("connection refused")
	rec = env.request(t, http.MethodGet, "/api/v1/health/ready", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d, want 503", rec.Code)
	}
}

func TestMetricsSnapshotEndpoint(t *testing.T) {
	env := newTestEnv(t, "none")
	rec := env.request(t, http.MethodGet, "/api/v1/metrics/snapshot", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatal("expected success response")
	}
	data, _ := json.Marshal(resp.Data)
	var snap models.MetricSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.TotalProjects != 2 || snap.VisibleProjects != 1 {
		t.Errorf("snapshot = %d/%d, want 2/1", snap.TotalProjects, snap.VisibleProjects)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, "jwt")

	rec := env.request(t, http.MethodGet, "/api/v1/metrics/snapshot", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	login := env.request(t, http.MethodPost, "/api/v1/auth/login",
		LoginRequest{Username: "admin", Password: "correct-horse-battery"}, nil)
	if login.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", login.Code, login.Body.String())
	}
	resp := decodeResponse(t, login)
	token := resp.Data.(map[string]interface{})["token"].(string)

	rec = env.request(t, http.MethodGet, "/api/v1/metrics/snapshot", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", rec.Code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t, "jwt")
	rec := env.request(t, http.MethodPost, "/api/v1/auth/login",
		LoginRequest{Username: "admin", Password: "wrong-password"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestTrackHonorsDoNotTrack(t *testing.T) {
	env := newTestEnv(t, "none")
	rec := env.request(t, http.MethodPost, "/api/v1/track",
		TrackRequest{Path: "/project/demo", VisitorID: "v-1"}, func(r *http.Request) {
			r.Header.Set("DNT", "1")
		})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if changes := env.pub.recorded(); len(changes) != 0 {
		t.Errorf("changes = %v, want none for DNT request", changes)
	}
}

func TestTrackAcceptsEvent(t *testing.T) {
	env := newTestEnv(t, "none")
	rec := env.request(t, http.MethodPost, "/api/v1/track",
		TrackRequest{Path: "/project/demo", VisitorID: "v-1", ViewportWidth: 375}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	changes := env.pub.recorded()
	if len(changes) != 1 || changes[0] != "analytics:insert" {
		t.Errorf("changes = %v, want analytics:insert", changes)
	}
}

func TestTrackRejectsInvalidPayload(t *testing.T) {
	env := newTestEnv(t, "none")

	rec := env.request(t, http.MethodPost, "/api/v1/track", TrackRequest{Path: "/p"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing visitor_id status = %d, want 400", rec.Code)
	}

	rec = env.request(t, http.MethodPost, "/api/v1/track",
		map[string]string{"path": "/p", "visitor_id": "v", "event_type": "made_up"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown event type status = %d, want 400", rec.Code)
	}
}

func TestContactCreate(t *testing.T) {
	env := newTestEnv(t, "none")
	rec := env.request(t, http.MethodPost, "/api/v1/contact",
		ContactRequest{Name: "Ada", Email: "ada@example.com", Message: "Hello there"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	if len(env.store.messages) != 1 {
		t.Fatalf("stored messages = %d, want 1", len(env.store.messages))
	}
	changes := env.pub.recorded()
	if len(changes) != 1 || changes[0] != "messages:insert" {
		t.Errorf("changes = %v, want messages:insert", changes)
	}
}

func TestContactRejectsBadEmail(t *testing.T) {
	env := newTestEnv(t, "none")
	rec := env.request(t, http.MethodPost, "/api/v1/contact",
		ContactRequest{Name: "Ada", Email: "not-an-email", Message: "Hi"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestProjectLifecycle(t *testing.T) {
	env := newTestEnv(t, "none")

	create := env.request(t, http.MethodPost, "/api/v1/projects/",
		ProjectRequest{Title: "Aurora", Visible: true, MainTags: []string{"go"}}, nil)
	if create.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", create.Code, create.Body.String())
	}
	resp := decodeResponse(t, create)
	id := resp.Data.(map[string]interface{})["id"].(string)

	update := env.request(t, http.MethodPut, "/api/v1/projects/"+id,
		ProjectRequest{Title: "Aurora Borealis", Category: "Web", Visible: true, MainTags: []string{"go", "duckdb"}}, nil)
	if update.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200: %s", update.Code, update.Body.String())
	}
	if got := env.store.projects[uuid.MustParse(id)]; got.Title != "Aurora Borealis" || got.Category != "Web" {
		t.Errorf("project after update = %+v, want renamed with category Web", got)
	}

	patch := env.request(t, http.MethodPatch, "/api/v1/projects/"+id+"/visibility",
		VisibilityRequest{Visible: false}, nil)
	if patch.Code != http.StatusOK {
		t.Fatalf("visibility status = %d, want 200: %s", patch.Code, patch.Body.String())
	}

	del := env.request(t, http.MethodDelete, "/api/v1/projects/"+id, nil, nil)
	if del.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", del.Code)
	}

	want := []string{"projects:insert", "projects:update", "projects:update", "projects:delete"}
	got := env.pub.recorded()
	if len(got) != len(want) {
		t.Fatalf("changes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestProjectNotFound(t *testing.T) {
	env := newTestEnv(t, "none")

	del := env.request(t, http.MethodDelete, "/api/v1/projects/"+uuid.New().String(), nil, nil)
	if del.Code != http.StatusNotFound {
		t.Fatalf("delete status = %d, want 404", del.Code)
	}

	update := env.request(t, http.MethodPut, "/api/v1/projects/"+uuid.New().String(),
		ProjectRequest{Title: "Ghost"}, nil)
	if update.Code != http.StatusNotFound {
		t.Fatalf("update status = %d, want 404", update.Code)
	}
}

func TestProjectBadID(t *testing.T) {
	env := newTestEnv(t, "none")
	rec := env.request(t, http.MethodDelete, "/api/v1/projects/not-a-uuid", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMessageReadAndReply(t *testing.T) {
	env := newTestEnv(t, "none")

	id := uuid.New()
	env.store.messages[id] = models.Message{ID: id, Name: "Ada", Email: "ada@example.com", Message: "Hi"}

	read := env.request(t, http.MethodPatch, "/api/v1/messages/"+id.String()+"/read", nil, nil)
	if read.Code != http.StatusOK {
		t.Fatalf("read status = %d, want 200", read.Code)
	}
	if !env.store.messages[id].IsRead {
		t.Error("message not marked read")
	}

	reply := env.request(t, http.MethodPost, "/api/v1/messages/"+id.String()+"/reply",
		ReplyRequest{ReplyText: "Thanks for reaching out"}, nil)
	if reply.Code != http.StatusOK {
		t.Fatalf("reply status = %d, want 200", reply.Code)
	}
	if got := env.store.messages[id]; !got.Replied || got.ReplyText == "" {
		t.Errorf("message after reply = %+v, want replied with text", got)
	}
}

func TestMediaCreateAndDelete(t *testing.T) {
	env := newTestEnv(t, "none")

	create := env.request(t, http.MethodPost, "/api/v1/media/",
		MediaRequest{ProviderID: "cdn-abc123", URL: "https://cdn.example.com/a.webp", Format: "webp"}, nil)
	if create.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", create.Code, create.Body.String())
	}
	resp := decodeResponse(t, create)
	id := resp.Data.(map[string]interface{})["id"].(string)

	del := env.request(t, http.MethodDelete, "/api/v1/media/"+id, nil, nil)
	if del.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", del.Code)
	}

	want := []string{"media:insert", "media:delete"}
	got := env.pub.recorded()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("changes = %v, want %v", got, want)
	}
}
