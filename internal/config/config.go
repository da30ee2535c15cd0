// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package config holds all application configuration, loaded via Koanf v2
// with layered sources (highest priority wins): environment variables,
// optional YAML config file, built-in defaults.
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	NATS      NATSConfig      `koanf:"nats"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Tracking  TrackingConfig  `koanf:"tracking"`
	WAL       WALConfig       `koanf:"wal"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// NATSConfig holds change-feed settings. The embedded server is the default
// for single-instance deployments; point URL at an external cluster and set
// EmbeddedServer=false to share a feed across instances.
type NATSConfig struct {
	Enabled             bool          `koanf:"enabled"`
	EmbeddedServer      bool          `koanf:"embedded_server"`
	URL                 string        `koanf:"url"`
	StoreDir            string        `koanf:"store_dir"`
	MaxMemory           int64         `koanf:"max_memory"`
	MaxStore            int64         `koanf:"max_store"`
	StreamRetentionDays int           `koanf:"stream_retention_days"`
	DurableName         string        `koanf:"durable_name"`
	ReconnectWait       time.Duration `koanf:"reconnect_wait"`
	CloseTimeout        time.Duration `koanf:"close_timeout"`
}

// DashboardConfig holds metrics-engine settings.
type DashboardConfig struct {
	// LaunchDate anchors the page_live_days computation (YYYY-MM-DD).
	LaunchDate string `koanf:"launch_date"`
	// RecentEventLimit bounds the event window fed to the rollup.
	RecentEventLimit int `koanf:"recent_event_limit"`
	// UptimeInterval is how often page_live_days is recomputed.
	UptimeInterval time.Duration `koanf:"uptime_interval"`
}

// TrackingConfig holds view-event ingest settings.
type TrackingConfig struct {
	Enabled bool `koanf:"enabled"`
	// EventsPerMinute caps accepted events per visitor.
	EventsPerMinute int `koanf:"events_per_minute"`
	Burst           int `koanf:"burst"`
}

// WALConfig holds the durable ingest buffer settings.
type WALConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Dir           string        `koanf:"dir"`
	FlushInterval time.Duration `koanf:"flush_interval"`
}

// SecurityConfig holds authentication and rate-limit settings.
type SecurityConfig struct {
	// AuthMode is "jwt" or "none". "none" is for development only.
	AuthMode        string        `koanf:"auth_mode"`
	JWTSecret       string        `koanf:"jwt_secret"`
	SessionTimeout  time.Duration `koanf:"session_timeout"`
	AdminUsername   string        `koanf:"admin_username"`
	AdminPassword   string        `koanf:"admin_password"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// LaunchTime parses the configured launch date at UTC midnight.
func (c *DashboardConfig) LaunchTime() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.LaunchDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse launch_date %q: %w", c.LaunchDate, err)
	}
	return t.UTC(), nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if _, err := c.Dashboard.LaunchTime(); err != nil {
		return err
	}
	if c.Dashboard.RecentEventLimit <= 0 {
		return fmt.Errorf("dashboard recent_event_limit must be positive")
	}
	if c.Dashboard.UptimeInterval <= 0 {
		return fmt.Errorf("dashboard uptime_interval must be positive")
	}
	if c.NATS.Enabled && !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("nats url is required when the embedded server is disabled")
	}

	switch strings.ToLower(c.Security.AuthMode) {
	case "jwt":
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("jwt_secret must be at least 32 characters")
		}
		if c.Security.AdminUsername == "" || c.Security.AdminPassword == "" {
			return fmt.Errorf("admin_username and admin_password are required for jwt auth")
		}
		if len(c.Security.AdminPassword) < 8 {
			return fmt.Errorf("admin_password must be at least 8 characters")
		}
	case "none":
		if strings.EqualFold(c.Server.Environment, "production") {
			return fmt.Errorf("auth_mode none is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown auth_mode %q", c.Security.AuthMode)
	}
	return nil
}
