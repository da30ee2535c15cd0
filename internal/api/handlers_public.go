// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mindtree-labs/pulseboard/internal/eventstream"
	"github.com/mindtree-labs/pulseboard/internal/models"
	"github.com/mindtree-labs/pulseboard/internal/tracker"
)

// Track ingests one analytics event from the public site.
//
// Do Not Track is honored: requests carrying DNT: 1 or Sec-GPC: 1 are
// acknowledged with 204 and recorded nowhere.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("DNT") == "1" || r.Header.Get("Sec-GPC") == "1" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var req TrackRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}

	event := &models.ViewEvent{
		Path:           req.Path,
		EventType:      models.EventType(req.EventType),
		EventData:      req.EventData,
		VisitorID:      req.VisitorID,
		SessionID:      req.SessionID,
		Referrer:       req.Referrer,
		UserAgent:      r.UserAgent(),
		ViewportWidth:  req.ViewportWidth,
		ViewportHeight: req.ViewportHeight,
	}

	err := h.tracker.Track(r.Context(), event)
	switch {
	case errors.Is(err, tracker.ErrDisabled):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, tracker.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "event rate limit exceeded")
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "event not recorded")
	default:
		writeSuccess(w, http.StatusAccepted, map[string]string{"event_id": event.ID.String()})
	}
}

// ContactCreate stores a contact form submission and announces the
// messages change so the dashboard's unread counter updates live.
func (h *Handler) ContactCreate(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}

	msg := &models.Message{
		ID:        uuid.New(),
		Name:      req.Name,
		Email:     req.Email,
		Message:   req.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.InsertMessage(r.Context(), msg); err != nil {
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "message not saved")
		return
	}

	h.publishChange(r.Context(), models.CollectionMessages, eventstream.OpInsert)
	writeSuccess(w, http.StatusCreated, msg)
}
