// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package api exposes the dashboard HTTP surface: health probes, the
// metric snapshot, the WebSocket feed, public tracking and contact
// endpoints, and the authenticated admin CRUD routes.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/middleware"
)

// APIResponse is the envelope for all JSON responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError carries a machine-readable code plus a human message.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes used across endpoints.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data}); err != nil {
		logging.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			RequestID: middleware.GetRequestID(r.Context()),
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("encode error response")
	}
}
