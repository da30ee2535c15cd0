// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/mindtree-labs/pulseboard/internal/auth"
	"github.com/mindtree-labs/pulseboard/internal/eventstream"
	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/models"
	"github.com/mindtree-labs/pulseboard/internal/snapshot"
	"github.com/mindtree-labs/pulseboard/internal/tracker"
	"github.com/mindtree-labs/pulseboard/internal/websocket"

	"github.com/google/uuid"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Store is the database surface the handlers depend on.
// *database.DB satisfies it; handler tests substitute fakes.
type Store interface {
	Ping(ctx context.Context) error

	ListProjects(ctx context.Context) ([]models.Project, error)
	InsertProject(ctx context.Context, p *models.Project) error
	UpdateProject(ctx context.Context, p *models.Project) error
	SetProjectVisibility(ctx context.Context, id uuid.UUID, visible bool) error
	DeleteProject(ctx context.Context, id uuid.UUID) error

	ListMessages(ctx context.Context, limit, offset int) ([]models.Message, error)
	InsertMessage(ctx context.Context, m *models.Message) error
	MarkMessageRead(ctx context.Context, id uuid.UUID) error
	ReplyMessage(ctx context.Context, id uuid.UUID, replyText string) error

	ListMedia(ctx context.Context, limit, offset int) ([]models.MediaAsset, error)
	InsertMedia(ctx context.Context, m *models.MediaAsset) error
	DeleteMedia(ctx context.Context, id uuid.UUID) error
}

// Handler bundles the dependencies behind the HTTP routes.
type Handler struct {
	store     Store
	snap      *snapshot.Store
	hub       *websocket.Hub
	tracker   *tracker.Tracker
	auth      *auth.Manager
	publisher eventstream.ChangePublisher
	upgrader  gorillaws.Upgrader
	startedAt time.Time
}

// NewHandler wires a handler. The tracker and publisher may be nil when
// those subsystems are disabled; the corresponding routes then fail with
// service-level errors rather than panics.
func NewHandler(store Store, snap *snapshot.Store, hub *websocket.Hub, tr *tracker.Tracker, authMgr *auth.Manager, publisher eventstream.ChangePublisher) *Handler {
	return &Handler{
		store:     store,
		snap:      snap,
		hub:       hub,
		tracker:   tr,
		auth:      authMgr,
		publisher: publisher,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard is same-origin in production; CORS policy
			// is enforced at the router for everything else.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startedAt: time.Now(),
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady reports whether the dashboard can serve fresh metrics:
// database reachable and the snapshot store still accepting writes.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	snap := h.snap.Get()
	status := models.HealthStatus{
		Status:            "ok",
		Version:           Version,
		DatabaseConnected: true,
		ChangeFeedRunning: !h.snap.Closed(),
		DegradedFeeds:     snap.Degraded,
		UptimeSeconds:     time.Since(h.startedAt).Seconds(),
	}

	httpStatus := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		logging.Warn().Err(err).Msg("readiness database ping failed")
		status.DatabaseConnected = false
		status.Status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	if !status.ChangeFeedRunning {
		status.Status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	writeSuccess(w, httpStatus, status)
}

// MetricsSnapshot returns the current snapshot.
func (h *Handler) MetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.snap.Get())
}

// WebSocket upgrades the connection and registers it with the hub.
// The client receives the current snapshot immediately so a freshly
// opened dashboard never renders empty.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	client.QueueSnapshot(h.snap.Get())
	h.hub.Register <- client
	client.Start()
}

// Login authenticates the admin and returns a bearer token. The token is
// also set as an HTTP-only cookie for the dashboard UI.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	// No manager is configured when auth_mode is none.
	if h.auth == nil {
		writeError(w, r, http.StatusNotImplemented, ErrCodeUnauthorized, "authentication is disabled")
		return
	}

	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "pb_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   r.TLS != nil,
	})
	writeSuccess(w, http.StatusOK, map[string]string{"token": token})
}

// publishChange announces a collection mutation, logging rather than
// failing the request when the broker is unavailable. The next full
// requery will pick the change up regardless.
func (h *Handler) publishChange(ctx context.Context, collection models.Collection, op eventstream.Op) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishChange(ctx, collection, op); err != nil {
		logging.Warn().
			Err(err).
			Str("collection", string(collection)).
			Msg("publish change notification")
	}
}
