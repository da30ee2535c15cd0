// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package database provides the DuckDB-backed store for the four tracked
// collections: projects, messages, analytics events, and media assets.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/mindtree-labs/pulseboard/internal/config"
	"github.com/mindtree-labs/pulseboard/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New creates a new database connection and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure parent directory exists for the database file.
	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301.
	if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// DuckDB is in-process; a small pool avoids writer contention.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn, cfg: cfg}
	if err := db.initSchema(context.Background()); err != nil {
		if cerr := conn.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("close after failed schema init")
		}
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("database ready")
	return db, nil
}

// NewInMemory creates an in-memory database for tests.
func NewInMemory() (*DB, error) {
	return New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 2})
}

// initSchema creates the collection tables when missing.
func (db *DB) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id            VARCHAR PRIMARY KEY,
			title         VARCHAR NOT NULL,
			description   VARCHAR NOT NULL DEFAULT '',
			category      VARCHAR NOT NULL DEFAULT 'Other',
			thumbnail_url VARCHAR NOT NULL DEFAULT '',
			visible       BOOLEAN NOT NULL DEFAULT true,
			main_tags     VARCHAR NOT NULL DEFAULT '[]',
			tool_tags     VARCHAR NOT NULL DEFAULT '[]',
			created_at    TIMESTAMP NOT NULL,
			updated_at    TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         VARCHAR PRIMARY KEY,
			name       VARCHAR NOT NULL,
			email      VARCHAR NOT NULL,
			message    VARCHAR NOT NULL,
			is_read    BOOLEAN NOT NULL DEFAULT false,
			replied    BOOLEAN NOT NULL DEFAULT false,
			reply_text VARCHAR NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS analytics (
			id              VARCHAR PRIMARY KEY,
			path            VARCHAR NOT NULL,
			occurred_at     TIMESTAMP NOT NULL,
			visitor_id      VARCHAR NOT NULL,
			session_id      VARCHAR NOT NULL DEFAULT '',
			event_type      VARCHAR NOT NULL,
			event_data      VARCHAR NOT NULL DEFAULT '',
			referrer        VARCHAR NOT NULL DEFAULT 'direct',
			device_type     VARCHAR NOT NULL DEFAULT '',
			user_agent      VARCHAR NOT NULL DEFAULT '',
			viewport_width  INTEGER NOT NULL DEFAULT 0,
			viewport_height INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS media (
			id          VARCHAR PRIMARY KEY,
			provider_id VARCHAR NOT NULL,
			url         VARCHAR NOT NULL,
			format      VARCHAR NOT NULL DEFAULT '',
			width       INTEGER NOT NULL DEFAULT 0,
			height      INTEGER NOT NULL DEFAULT 0,
			size_bytes  BIGINT NOT NULL DEFAULT 0,
			tags        VARCHAR NOT NULL DEFAULT '[]',
			project_id  VARCHAR,
			usage_type  VARCHAR NOT NULL DEFAULT '',
			uploaded_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_occurred_at ON analytics (occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_visitor_id ON analytics (visitor_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Conn returns the underlying SQL database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close releases the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// queryTimeout bounds every count/requery statement so a wedged store
// surfaces as a transient fetch error instead of a hung worker.
const queryTimeout = 10 * time.Second

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}
