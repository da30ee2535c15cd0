// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/metrics"
	"github.com/mindtree-labs/pulseboard/internal/models"
)

// RecentEventLimit bounds the event window fed to the rollup projector.
// The rollup recomputes from scratch each cycle; limiting the window keeps
// the full re-scan cheap.
const RecentEventLimit = 50

// InsertEvent stores one tracked view event.
func (db *DB) InsertEvent(ctx context.Context, ev *models.ViewEvent) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO analytics (
			id, path, occurred_at, visitor_id, session_id, event_type,
			event_data, referrer, device_type, user_agent,
			viewport_width, viewport_height
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.Path, ev.OccurredAt.UTC(), ev.VisitorID, ev.SessionID,
		string(ev.EventType), ev.EventData, ev.Referrer, ev.DeviceType,
		ev.UserAgent, ev.ViewportWidth, ev.ViewportHeight,
	)
	if err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

// AnalyticsTotals returns the total event count and the cardinality of
// distinct visitor IDs. Profile visits are recomputed from the stored rows,
// never incremented, so the value is correct even after out-of-order writes.
func (db *DB) AnalyticsTotals(ctx context.Context) (totalViews, profileVisits int, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err = db.conn.QueryRowContext(ctx,
		`SELECT count(*), count(DISTINCT visitor_id) FROM analytics`,
	).Scan(&totalViews, &profileVisits)
	if err != nil {
		return 0, 0, fmt.Errorf("analytics totals: %w", err)
	}
	return totalViews, profileVisits, nil
}

// RecentProjectViewEvents fetches the most recent page views of
// project-detail paths, newest first, bounded by limit. Rows that fail shape
// checks are skipped and counted; a malformed row never aborts the batch.
func (db *DB) RecentProjectViewEvents(ctx context.Context, limit int) ([]models.ViewEvent, error) {
	if limit <= 0 {
		limit = RecentEventLimit
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, path, occurred_at, event_type
		FROM analytics
		WHERE path ILIKE '%/project%' AND event_type = ?
		ORDER BY occurred_at DESC
		LIMIT ?`,
		string(models.EventPageView), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent project views: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("close recent project views rows")
		}
	}()

	events := make([]models.ViewEvent, 0, limit)
	for rows.Next() {
		var (
			id, path, eventType string
			occurredAt          time.Time
		)
		if serr := rows.Scan(&id, &path, &occurredAt, &eventType); serr != nil {
			db.reportMalformed("analytics", fmt.Sprintf("scan: %v", serr))
			continue
		}
		eventID, perr := uuid.Parse(id)
		if perr != nil {
			db.reportMalformed("analytics", fmt.Sprintf("bad event id %q", id))
			continue
		}
		if path == "" || occurredAt.IsZero() {
			db.reportMalformed("analytics", "empty path or zero timestamp")
			continue
		}
		events = append(events, models.ViewEvent{
			ID:         eventID,
			Path:       path,
			OccurredAt: occurredAt.UTC(),
			EventType:  models.EventType(eventType),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent project views: %w", err)
	}
	return events, nil
}

// reportMalformed logs and counts one skipped row.
func (db *DB) reportMalformed(collection, reason string) {
	merr := &MalformedRowError{Collection: collection, Reason: reason}
	logging.Warn().Str("collection", collection).Msg(merr.Error())
	metrics.MalformedRows.WithLabelValues(collection).Inc()
}
