// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package main is the entry point for the Pulseboard server.
//
// Pulseboard is the metrics engine behind a personal portfolio's admin
// dashboard. It ingests visitor view events, watches the content
// collections for changes over NATS JetStream, keeps an aggregated
// metric snapshot current by requerying DuckDB on every change, and
// pushes each new snapshot to dashboard clients over WebSocket.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered sources (env > config.yaml > defaults)
//  2. Logging: zerolog, JSON or console format
//  3. Database: DuckDB with the portfolio schema
//  4. Change feed: embedded or external NATS server, JetStream stream,
//     watermill publisher and subscriber
//  5. WAL: BadgerDB ingest buffer (optional)
//  6. Snapshot store, WebSocket hub, collector, tracker, auth
//  7. Supervisor tree: data, messaging, and API layers under suture
//
// # Configuration
//
// Every setting can come from environment variables (SERVER_PORT,
// DASHBOARD_LAUNCH_DATE, SECURITY_JWT_SECRET, ...), a YAML file found
// via CONFIG_PATH or the default search paths, or built-in defaults.
//
// For JWT authentication (default):
//   - SECURITY_JWT_SECRET: 32+ character signing secret
//   - SECURITY_ADMIN_USERNAME / SECURITY_ADMIN_PASSWORD: admin credentials
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the collector and hub stop, the snapshot store
// closes so late requery results are discarded, and broker and database
// connections close last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mindtree-labs/pulseboard/internal/api"
	"github.com/mindtree-labs/pulseboard/internal/auth"
	"github.com/mindtree-labs/pulseboard/internal/collector"
	"github.com/mindtree-labs/pulseboard/internal/config"
	"github.com/mindtree-labs/pulseboard/internal/database"
	"github.com/mindtree-labs/pulseboard/internal/eventstream"
	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/models"
	"github.com/mindtree-labs/pulseboard/internal/snapshot"
	"github.com/mindtree-labs/pulseboard/internal/supervisor"
	"github.com/mindtree-labs/pulseboard/internal/supervisor/services"
	"github.com/mindtree-labs/pulseboard/internal/tracker"
	"github.com/mindtree-labs/pulseboard/internal/wal"
	ws "github.com/mindtree-labs/pulseboard/internal/websocket"
)

//nolint:gocyclo // Sequential startup wiring
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("nats_embedded", cfg.NATS.EmbeddedServer).
		Str("version", api.Version).
		Msg("Starting Pulseboard")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snap := snapshot.New(models.MetricSnapshot{})
	hub := ws.NewHub()
	snap.SetObserver(hub.SnapshotObserver())

	// Change feed. Without it the dashboard still serves, but the
	// snapshot only reflects the initial load.
	var (
		changePub  eventstream.ChangePublisher
		publisher  *eventstream.Publisher
		subscriber *eventstream.Subscriber
	)
	if cfg.NATS.Enabled {
		url := cfg.NATS.URL
		if cfg.NATS.EmbeddedServer {
			ns, err := eventstream.NewEmbeddedServer(&cfg.NATS)
			if err != nil {
				logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
			}
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.NATS.CloseTimeout)
				defer shutdownCancel()
				if err := ns.Shutdown(shutdownCtx); err != nil {
					logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
				}
			}()
			url = ns.ClientURL()
			logging.Info().Str("url", url).Msg("Embedded NATS server started")
		}

		initializer, nc, err := eventstream.Connect(url, cfg.NATS.StreamRetentionDays)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Close()

		if _, err := initializer.EnsureStream(ctx); err != nil {
			logging.Fatal().Err(err).Msg("Failed to provision change stream")
		}

		wmLogger := eventstream.NewWatermillLogger()
		publisher, err = eventstream.NewPublisher(url, cfg.NATS.ReconnectWait, wmLogger)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create change publisher")
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing change publisher")
			}
		}()
		changePub = publisher

		subscriber, err = eventstream.NewSubscriber(&cfg.NATS, url, wmLogger)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create change subscriber")
		}
		defer func() {
			if err := subscriber.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing change subscriber")
			}
		}()
		logging.Info().Str("stream", eventstream.StreamName).Msg("Change feed connected")
	} else {
		logging.Warn().Msg("Change feed disabled - dashboard metrics will not refresh on content changes")
	}

	// Durable ingest buffer. Losing it degrades to insert-or-fail.
	var buffer *wal.Buffer
	if cfg.WAL.Enabled {
		buffer, err = wal.Open(cfg.WAL.Dir)
		if err != nil {
			logging.Warn().Err(err).Str("dir", cfg.WAL.Dir).Msg("Failed to open WAL buffer - continuing without durable ingest")
		} else {
			defer func() {
				if err := buffer.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing WAL buffer")
				}
			}()
			logging.Info().Str("dir", cfg.WAL.Dir).Msg("WAL ingest buffer opened")
		}
	}

	tr := tracker.New(cfg.Tracking, db, buffer, changePub)
	defer func() {
		if err := tr.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing tracker")
		}
	}()

	var authManager *auth.Manager
	if cfg.Security.AuthMode == "jwt" {
		authManager, err = auth.NewManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize auth manager")
		}
		logging.Info().Msg("JWT authentication enabled")
	} else {
		logging.Warn().Msg("Authentication is DISABLED (auth_mode=none) - all admin endpoints are public")
		logging.Warn().Msg("Never run auth_mode=none outside local development")
	}
	authMW := auth.NewMiddleware(authManager, cfg.Security.AuthMode)

	handler := api.NewHandler(db, snap, hub, tr, authManager, changePub)
	router := api.NewRouter(handler, authMW, &cfg.Security)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(supervisor.Options{})

	tree.AddMessagingService(services.NewRunnerService(hub.String(), hub.RunWithContext))

	if subscriber != nil {
		launch, err := cfg.Dashboard.LaunchTime()
		if err != nil {
			logging.Fatal().Err(err).Msg("Invalid launch date")
		}
		col := collector.New(db, snap, subscriber, collector.Config{
			RecentEventLimit: cfg.Dashboard.RecentEventLimit,
			LaunchDate:       launch,
			UptimeInterval:   cfg.Dashboard.UptimeInterval,
		})
		tree.AddMessagingService(services.NewRunnerService(col.String(), col.Run))
	}

	if buffer != nil {
		flusher := wal.NewFlusher(buffer, db, changePub, cfg.WAL.FlushInterval)
		tree.AddDataService(services.NewRunnerService(flusher.String(), flusher.Run))
	}

	tree.AddAPIService(services.NewHTTPService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Waiting for supervised services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Closing the store drops any requery result still in flight.
	snap.Close()

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Pulseboard stopped")
}
