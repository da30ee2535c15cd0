// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package api

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// maxBodyBytes caps request bodies. The largest legitimate payload is a
// contact message.
const maxBodyBytes = 64 * 1024

var validate = validator.New(validator.WithRequiredStructEnabled())

// TrackRequest is the public event ingest payload.
type TrackRequest struct {
	Path           string `json:"path" validate:"required,max=2048"`
	EventType      string `json:"event_type" validate:"omitempty,oneof=page_view project_click project_open contact_submit"`
	EventData      string `json:"event_data" validate:"omitempty,max=4096"`
	VisitorID      string `json:"visitor_id" validate:"required,max=128"`
	SessionID      string `json:"session_id" validate:"omitempty,max=128"`
	Referrer       string `json:"referrer" validate:"omitempty,max=2048"`
	ViewportWidth  int    `json:"viewport_width" validate:"omitempty,min=0,max=16384"`
	ViewportHeight int    `json:"viewport_height" validate:"omitempty,min=0,max=16384"`
}

// LoginRequest authenticates the admin user.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// ContactRequest is the public contact form payload.
type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=128"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Message string `json:"message" validate:"required,max=8192"`
}

// ProjectRequest creates or updates a portfolio project.
type ProjectRequest struct {
	Title        string   `json:"title" validate:"required,max=256"`
	Description  string   `json:"description" validate:"omitempty,max=8192"`
	Category     string   `json:"category" validate:"omitempty,max=128"`
	ThumbnailURL string   `json:"thumbnail_url" validate:"omitempty,url,max=2048"`
	Visible      bool     `json:"visible"`
	MainTags     []string `json:"main_tags" validate:"omitempty,max=16,dive,max=64"`
	ToolTags     []string `json:"tool_tags" validate:"omitempty,max=32,dive,max=64"`
}

// VisibilityRequest toggles a project's public visibility.
type VisibilityRequest struct {
	Visible bool `json:"visible"`
}

// ReplyRequest records an admin reply to a contact message.
type ReplyRequest struct {
	ReplyText string `json:"reply_text" validate:"required,max=8192"`
}

// MediaRequest registers an uploaded media asset.
type MediaRequest struct {
	ProviderID string   `json:"provider_id" validate:"required,max=256"`
	URL        string   `json:"url" validate:"required,url,max=2048"`
	Format     string   `json:"format" validate:"omitempty,max=16"`
	Width      int      `json:"width" validate:"omitempty,min=0"`
	Height     int      `json:"height" validate:"omitempty,min=0"`
	SizeBytes  int64    `json:"size_bytes" validate:"omitempty,min=0"`
	Tags       []string `json:"tags" validate:"omitempty,max=32,dive,max=64"`
	ProjectID  string   `json:"project_id" validate:"omitempty,uuid4"`
	UsageType  string   `json:"usage_type" validate:"omitempty,max=64"`
}

// decodeAndValidate parses a JSON body into dst and runs struct validation.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("validate body: %w", err)
	}
	return nil
}

// pathUUID parses a UUID route parameter.
func pathUUID(value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", value, err)
	}
	return id, nil
}
