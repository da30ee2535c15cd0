// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mindtree-labs/pulseboard/internal/database"
	"github.com/mindtree-labs/pulseboard/internal/eventstream"
	"github.com/mindtree-labs/pulseboard/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// listParams reads limit/offset query parameters with clamping.
func listParams(r *http.Request) (limit, offset int) {
	limit = defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "record not found")
		return
	}
	writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "database operation failed")
}

// ProjectsList returns all projects including hidden ones.
func (h *Handler) ProjectsList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, projects)
}

// ProjectCreate adds a new portfolio project.
func (h *Handler) ProjectCreate(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}

	now := time.Now().UTC()
	project := &models.Project{
		ID:           uuid.New(),
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		ThumbnailURL: req.ThumbnailURL,
		Visible:      req.Visible,
		MainTags:     req.MainTags,
		ToolTags:     req.ToolTags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.InsertProject(r.Context(), project); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.publishChange(r.Context(), models.CollectionProjects, eventstream.OpInsert)
	writeSuccess(w, http.StatusCreated, project)
}

// ProjectUpdate replaces all editable fields of a project.
func (h *Handler) ProjectUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var req ProjectRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}

	project := &models.Project{
		ID:           id,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		ThumbnailURL: req.ThumbnailURL,
		Visible:      req.Visible,
		MainTags:     req.MainTags,
		ToolTags:     req.ToolTags,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := h.store.UpdateProject(r.Context(), project); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.publishChange(r.Context(), models.CollectionProjects, eventstream.OpUpdate)
	writeSuccess(w, http.StatusOK, project)
}

// ProjectSetVisibility toggles whether a project appears on the public site.
func (h *Handler) ProjectSetVisibility(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var req VisibilityRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}

	if err := h.store.SetProjectVisibility(r.Context(), id, req.Visible); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.publishChange(r.Context(), models.CollectionProjects, eventstream.OpUpdate)
	writeSuccess(w, http.StatusOK, map[string]interface{}{"id": id, "visible": req.Visible})
}

// ProjectDelete removes a project.
func (h *Handler) ProjectDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	if err := h.store.DeleteProject(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.publishChange(r.Context(), models.CollectionProjects, eventstream.OpDelete)
	writeSuccess(w, http.StatusOK, map[string]interface{}{"id": id})
}

// MessagesList returns contact messages, newest first.
func (h *Handler) MessagesList(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)
	messages, err := h.store.ListMessages(r.Context(), limit, offset)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, messages)
}

// MessageMarkRead marks one message as read.
func (h *Handler) MessageMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	if err := h.store.MarkMessageRead(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.publishChange(r.Context(), models.CollectionMessages, eventstream.OpUpdate)
	writeSuccess(w, http.StatusOK, map[string]interface{}{"id": id, "is_read": true})
}

// MessageReply records a reply. Replying also marks the message read.
func (h *Handler) MessageReply(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var req ReplyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}

	if err := h.store.ReplyMessage(r.Context(), id, req.ReplyText); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.publishChange(r.Context(), models.CollectionMessages, eventstream.OpUpdate)
	writeSuccess(w, http.StatusOK, map[string]interface{}{"id": id, "replied": true})
}

// MediaList returns uploaded media records, newest first.
func (h *Handler) MediaList(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)
	media, err := h.store.ListMedia(r.Context(), limit, offset)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, media)
}

// MediaCreate registers an uploaded media asset.
func (h *Handler) MediaCreate(w http.ResponseWriter, r *http.Request) {
	var req MediaRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}

	asset := &models.MediaAsset{
		ID:         uuid.New(),
		ProviderID: req.ProviderID,
		URL:        req.URL,
		Format:     req.Format,
		Width:      req.Width,
		Height:     req.Height,
		SizeBytes:  req.SizeBytes,
		Tags:       req.Tags,
		UsageType:  req.UsageType,
		UploadedAt: time.Now().UTC(),
	}
	if req.ProjectID != "" {
		projectID, err := uuid.Parse(req.ProjectID)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid project_id")
			return
		}
		asset.ProjectID = &projectID
	}

	if err := h.store.InsertMedia(r.Context(), asset); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.publishChange(r.Context(), models.CollectionMedia, eventstream.OpInsert)
	writeSuccess(w, http.StatusCreated, asset)
}

// MediaDelete removes a media record.
func (h *Handler) MediaDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	if err := h.store.DeleteMedia(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.publishChange(r.Context(), models.CollectionMedia, eventstream.OpDelete)
	writeSuccess(w, http.StatusOK, map[string]interface{}{"id": id})
}
