// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package metrics provides Prometheus instrumentation for Pulseboard:
// requery cycles, coalesced notifications, snapshot versions, WebSocket
// connections, ingest throughput, and API latency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Collector metrics

	RequeryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulseboard_requery_duration_seconds",
			Help:    "Duration of refetch-and-recompute cycles per collection",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	RequeryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseboard_requery_errors_total",
			Help: "Total failed refetch-and-recompute cycles per collection",
		},
		[]string{"collection"},
	)

	NotificationsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseboard_change_notifications_total",
			Help: "Total change notifications received per collection",
		},
		[]string{"collection"},
	)

	NotificationsCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseboard_change_notifications_coalesced_total",
			Help: "Notifications merged into an already-pending requery per collection",
		},
		[]string{"collection"},
	)

	MalformedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseboard_malformed_rows_total",
			Help: "Fetched rows skipped due to shape violations per collection",
		},
		[]string{"collection"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulseboard_store_breaker_state",
			Help: "Store circuit breaker state per collection (0 closed, 1 half-open, 2 open)",
		},
		[]string{"collection"},
	)

	// Snapshot metrics

	SnapshotVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulseboard_snapshot_version",
			Help: "Current published MetricSnapshot version",
		},
	)

	SnapshotWritesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulseboard_snapshot_writes_dropped_total",
			Help: "Snapshot writes discarded because the store was already closed",
		},
	)

	// WebSocket metrics

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulseboard_websocket_clients",
			Help: "Currently connected dashboard WebSocket clients",
		},
	)

	WebSocketBroadcastsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulseboard_websocket_broadcasts_dropped_total",
			Help: "Broadcast messages dropped due to a full channel",
		},
	)

	// Ingest metrics

	EventsTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseboard_events_tracked_total",
			Help: "Total tracked view events accepted per event type",
		},
		[]string{"event_type"},
	)

	EventsRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulseboard_events_rate_limited_total",
			Help: "Tracked events rejected by the per-visitor rate limit",
		},
	)

	EventsBuffered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulseboard_events_buffered_total",
			Help: "Tracked events diverted to the durable buffer on store failure",
		},
	)

	EventsReplayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulseboard_events_replayed_total",
			Help: "Buffered events successfully replayed into the store",
		},
	)

	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseboard_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulseboard_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// ObserveRequery records one completed requery cycle.
func ObserveRequery(collection string, d time.Duration, err error) {
	RequeryDuration.WithLabelValues(collection).Observe(d.Seconds())
	if err != nil {
		RequeryErrors.WithLabelValues(collection).Inc()
	}
}

// ObserveAPIRequest records one completed API request.
func ObserveAPIRequest(method, endpoint string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}
