// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mindtree-labs/pulseboard/internal/logging"
)

type contextKey string

// claimsKey carries validated claims through the request context.
const claimsKey contextKey = "auth_claims"

// Middleware enforces bearer-token authentication on admin routes.
type Middleware struct {
	manager  *Manager
	authMode string
}

// NewMiddleware wraps a manager. authMode "none" disables enforcement,
// which configuration validation forbids in production.
func NewMiddleware(manager *Manager, authMode string) *Middleware {
	return &Middleware{manager: manager, authMode: authMode}
}

// Authenticate rejects requests without a valid bearer token.
// Browsers may also present the token via the "pb_token" cookie, which
// the login handler sets for the dashboard UI.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authMode == "none" {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			unauthorized(w, "missing credentials")
			return
		}

		claims, err := m.manager.ValidateToken(token)
		if err != nil {
			logging.Debug().Err(err).Msg("token validation failed")
			unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the validated claims, or nil when the request
// was not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("pb_token"); err == nil {
		return cookie.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": "UNAUTHORIZED", "message": message},
	})
}
