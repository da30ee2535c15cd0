// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package models defines the shared data types for Pulseboard: the tracked
// entity collections (projects, messages, analytics, media), the raw view
// event shape, and the derived dashboard metric types.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Collection identifies one tracked entity collection. Every change
// notification and every requery is scoped to exactly one collection.
type Collection string

const (
	CollectionProjects  Collection = "projects"
	CollectionMessages  Collection = "messages"
	CollectionAnalytics Collection = "analytics"
	CollectionMedia     Collection = "media"
)

// Collections lists all tracked collections in a stable order.
func Collections() []Collection {
	return []Collection{
		CollectionProjects,
		CollectionMessages,
		CollectionAnalytics,
		CollectionMedia,
	}
}

// Valid reports whether c names a tracked collection.
func (c Collection) Valid() bool {
	switch c {
	case CollectionProjects, CollectionMessages, CollectionAnalytics, CollectionMedia:
		return true
	}
	return false
}

// EventType classifies a tracked view event.
type EventType string

const (
	EventPageView      EventType = "page_view"
	EventProjectClick  EventType = "project_click"
	EventProjectOpen   EventType = "project_open"
	EventContactSubmit EventType = "contact_submit"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventPageView, EventProjectClick, EventProjectOpen, EventContactSubmit:
		return true
	}
	return false
}

// DeviceType classifies the visitor's device, derived from viewport width.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
)

// ViewEvent is one observed page-view record. Immutable once stored;
// produced by the tracker, consumed only by the rollup projector and the
// aggregate count queries.
type ViewEvent struct {
	ID             uuid.UUID `json:"id"`
	Path           string    `json:"path"`
	OccurredAt     time.Time `json:"occurred_at"`
	VisitorID      string    `json:"visitor_id"`
	SessionID      string    `json:"session_id,omitempty"`
	EventType      EventType `json:"event_type"`
	EventData      string    `json:"event_data,omitempty"`
	Referrer       string    `json:"referrer,omitempty"`
	DeviceType     string    `json:"device_type,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	ViewportWidth  int       `json:"viewport_width,omitempty"`
	ViewportHeight int       `json:"viewport_height,omitempty"`
}

// Project is one portfolio project entry.
type Project struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Visible      bool      `json:"visible"`
	MainTags     []string  `json:"main_tags,omitempty"`
	ToolTags     []string  `json:"tool_tags,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is one contact-form submission.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	Replied   bool      `json:"replied"`
	ReplyText string    `json:"reply_text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaAsset is one uploaded media file record. The binary lives with the
// external media provider; only the metadata row is tracked here.
type MediaAsset struct {
	ID         uuid.UUID  `json:"id"`
	ProviderID string     `json:"provider_id"`
	URL        string     `json:"url"`
	Format     string     `json:"format,omitempty"`
	Width      int        `json:"width,omitempty"`
	Height     int        `json:"height,omitempty"`
	SizeBytes  int64      `json:"size_bytes,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	ProjectID  *uuid.UUID `json:"project_id,omitempty"`
	UsageType  string     `json:"usage_type,omitempty"`
	UploadedAt time.Time  `json:"uploaded_at"`
}

// ProjectViewSummary is one ranked entry of the "recent project views"
// rollup. Derived and ephemeral: recomputed from scratch on every analytics
// notification, never persisted.
type ProjectViewSummary struct {
	ProjectName     string    `json:"project_name"`
	ViewCount       int       `json:"view_count"`
	LastViewedAt    time.Time `json:"last_viewed_at"`
	LastViewedLabel string    `json:"last_viewed"`
}

// MetricSnapshot is the full published dashboard state. Field groups are
// owned by independent collection workers; see internal/snapshot for the
// mutation contract.
type MetricSnapshot struct {
	TotalProjects   int `json:"total_projects"`
	VisibleProjects int `json:"visible_projects"`

	TotalMessages  int `json:"total_messages"`
	UnreadMessages int `json:"unread_messages"`

	TotalViews    int `json:"total_views"`
	ProfileVisits int `json:"profile_visits"`

	TotalMedia int `json:"total_media"`

	PageLiveDays int `json:"page_live_days"`

	RecentProjectViews []ProjectViewSummary `json:"recent_project_views"`

	// Degraded lists collections whose change subscription failed to
	// establish. The dashboard renders a stale-data banner per entry.
	Degraded []string `json:"degraded,omitempty"`

	// Version increments on every mutation; clients use it to discard
	// out-of-order snapshots.
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthStatus is the health check response.
type HealthStatus struct {
	Status            string   `json:"status"`
	Version           string   `json:"version"`
	DatabaseConnected bool     `json:"database_connected"`
	ChangeFeedRunning bool     `json:"change_feed_running"`
	DegradedFeeds     []string `json:"degraded_feeds,omitempty"`
	UptimeSeconds     float64  `json:"uptime_seconds"`
}
