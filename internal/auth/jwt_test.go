// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package auth

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mindtree-labs/pulseboard/internal/config"
	"github.com/mindtree-labs/pulseboard/internal/logging"
)

func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(&config.SecurityConfig{
		JWTSecret:      strings.Repeat("k", 32),
		SessionTimeout: time.Hour,
		AdminUsername:  "admin",
		AdminPassword:  "correct-horse-battery",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestLoginAndValidate(t *testing.T) {
	m := testManager(t)

	token, err := m.Login("admin", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("Username = %q, want admin", claims.Username)
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want admin", claims.Role)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	m := testManager(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "wrong-password-here"},
		{"wrong username", "root", "correct-horse-battery"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Login(tt.username, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Login = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	m := testManager(t)
	token, err := m.Login("admin", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := m.ValidateToken(tampered); err == nil {
		t.Error("expected error for tampered token")
	}
	if _, err := m.ValidateToken("not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m, err := NewManager(&config.SecurityConfig{
		JWTSecret:      strings.Repeat("k", 32),
		SessionTimeout: -time.Hour,
		AdminUsername:  "admin",
		AdminPassword:  "correct-horse-battery",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	token, err := m.GenerateToken("admin", "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestAuthenticateMiddleware(t *testing.T) {
	m := testManager(t)
	mw := NewMiddleware(m, "jwt")

	var gotClaims *Claims
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, err := m.Login("admin", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	tests := []struct {
		name       string
		authorize  func(r *http.Request)
		wantStatus int
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "pb_token", Value: token}) }, http.StatusOK},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClaims = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/snapshot", nil)
			tt.authorize(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && (gotClaims == nil || gotClaims.Username != "admin") {
				t.Errorf("claims = %+v, want admin claims in context", gotClaims)
			}
		})
	}
}

func TestAuthenticateModeNone(t *testing.T) {
	mw := NewMiddleware(nil, "none")
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}
