// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package auth guards the admin API with JWT bearer tokens.
// Tokens are signed with HMAC-SHA256 and carry the admin username.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mindtree-labs/pulseboard/internal/config"
)

// ErrInvalidCredentials is returned for a failed login attempt. The same
// error covers unknown usernames and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Claims are the JWT claims issued at login.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and validates admin tokens.
type Manager struct {
	secret       []byte
	timeout      time.Duration
	username     string
	passwordHash []byte
}

// NewManager builds a manager from security configuration. The admin
// password is bcrypt-hashed immediately so the plaintext is not retained.
func NewManager(cfg *config.SecurityConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}

	return &Manager{
		secret:       []byte(cfg.JWTSecret),
		timeout:      cfg.SessionTimeout,
		username:     cfg.AdminUsername,
		passwordHash: hash,
	}, nil
}

// Login verifies credentials and returns a signed token.
func (m *Manager) Login(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return "", ErrInvalidCredentials
	}
	return m.GenerateToken(username, "admin")
}

// GenerateToken signs a token for an authenticated user.
func (m *Manager) GenerateToken(username, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks a token's signature, algorithm, and time claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
