// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/models"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("row not found")

// ProjectCounts returns total and visible project counts in one query so the
// pair is always mutually consistent.
func (db *DB) ProjectCounts(ctx context.Context) (total, visible int, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err = db.conn.QueryRowContext(ctx,
		`SELECT count(*), count(*) FILTER (WHERE visible) FROM projects`,
	).Scan(&total, &visible)
	if err != nil {
		return 0, 0, fmt.Errorf("project counts: %w", err)
	}
	return total, visible, nil
}

// MessageCounts returns total and unread message counts in one query.
func (db *DB) MessageCounts(ctx context.Context) (total, unread int, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err = db.conn.QueryRowContext(ctx,
		`SELECT count(*), count(*) FILTER (WHERE NOT is_read) FROM messages`,
	).Scan(&total, &unread)
	if err != nil {
		return 0, 0, fmt.Errorf("message counts: %w", err)
	}
	return total, unread, nil
}

// MediaCount returns the total media asset count.
func (db *DB) MediaCount(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM media`).Scan(&total); err != nil {
		return 0, fmt.Errorf("media count: %w", err)
	}
	return total, nil
}

// InsertProject stores a new project.
func (db *DB) InsertProject(ctx context.Context, p *models.Project) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	mainTags, err := json.Marshal(p.MainTags)
	if err != nil {
		return fmt.Errorf("marshal main tags: %w", err)
	}
	toolTags, err := json.Marshal(p.ToolTags)
	if err != nil {
		return fmt.Errorf("marshal tool tags: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO projects (id, title, description, category, thumbnail_url,
			visible, main_tags, tool_tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Title, p.Description, p.Category, p.ThumbnailURL,
		p.Visible, string(mainTags), string(toolTags),
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// UpdateProject replaces the editable fields of one project. CreatedAt is
// never touched; UpdatedAt comes from the caller.
func (db *DB) UpdateProject(ctx context.Context, p *models.Project) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	mainTags, err := json.Marshal(p.MainTags)
	if err != nil {
		return fmt.Errorf("marshal main tags: %w", err)
	}
	toolTags, err := json.Marshal(p.ToolTags)
	if err != nil {
		return fmt.Errorf("marshal tool tags: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE projects SET title = ?, description = ?, category = ?,
			thumbnail_url = ?, visible = ?, main_tags = ?, tool_tags = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Description, p.Category, p.ThumbnailURL, p.Visible,
		string(mainTags), string(toolTags), p.UpdatedAt.UTC(), p.ID.String())
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireRow(res)
}

// ListProjects returns all projects, newest first.
func (db *DB) ListProjects(ctx context.Context) ([]models.Project, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, description, category, thumbnail_url, visible,
			main_tags, tool_tags, created_at, updated_at
		FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer closeRows(rows)

	var projects []models.Project
	for rows.Next() {
		var (
			p                  models.Project
			id                 string
			mainTags, toolTags string
			created, updated   time.Time
		)
		if err := rows.Scan(&id, &p.Title, &p.Description, &p.Category,
			&p.ThumbnailURL, &p.Visible, &mainTags, &toolTags, &created, &updated); err != nil {
			db.reportMalformed("projects", fmt.Sprintf("scan: %v", err))
			continue
		}
		pid, err := uuid.Parse(id)
		if err != nil {
			db.reportMalformed("projects", fmt.Sprintf("bad project id %q", id))
			continue
		}
		p.ID = pid
		p.CreatedAt = created.UTC()
		p.UpdatedAt = updated.UTC()
		if err := json.Unmarshal([]byte(mainTags), &p.MainTags); err != nil {
			p.MainTags = nil
		}
		if err := json.Unmarshal([]byte(toolTags), &p.ToolTags); err != nil {
			p.ToolTags = nil
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SetProjectVisibility toggles one project's visible flag.
func (db *DB) SetProjectVisibility(ctx context.Context, id uuid.UUID, visible bool) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE projects SET visible = ?, updated_at = ? WHERE id = ?`,
		visible, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("set project visibility: %w", err)
	}
	return requireRow(res)
}

// DeleteProject removes one project.
func (db *DB) DeleteProject(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireRow(res)
}

// InsertMessage stores a new contact message.
func (db *DB) InsertMessage(ctx context.Context, m *models.Message) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO messages (id, name, email, message, is_read, replied, reply_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.Name, m.Email, m.Message, m.IsRead, m.Replied, m.ReplyText, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns messages, newest first.
func (db *DB) ListMessages(ctx context.Context, limit, offset int) ([]models.Message, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, email, message, is_read, replied, reply_text, created_at
		FROM messages ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer closeRows(rows)

	var messages []models.Message
	for rows.Next() {
		var (
			m       models.Message
			id      string
			created time.Time
		)
		if err := rows.Scan(&id, &m.Name, &m.Email, &m.Message,
			&m.IsRead, &m.Replied, &m.ReplyText, &created); err != nil {
			db.reportMalformed("messages", fmt.Sprintf("scan: %v", err))
			continue
		}
		mid, err := uuid.Parse(id)
		if err != nil {
			db.reportMalformed("messages", fmt.Sprintf("bad message id %q", id))
			continue
		}
		m.ID = mid
		m.CreatedAt = created.UTC()
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkMessageRead flags one message as read.
func (db *DB) MarkMessageRead(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE messages SET is_read = true WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return requireRow(res)
}

// ReplyMessage records a reply and marks the message read.
func (db *DB) ReplyMessage(ctx context.Context, id uuid.UUID, replyText string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE messages SET replied = true, reply_text = ?, is_read = true WHERE id = ?`,
		replyText, id.String())
	if err != nil {
		return fmt.Errorf("reply message: %w", err)
	}
	return requireRow(res)
}

// InsertMedia stores a new media asset record.
func (db *DB) InsertMedia(ctx context.Context, m *models.MediaAsset) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("marshal media tags: %w", err)
	}
	var projectID any
	if m.ProjectID != nil {
		projectID = m.ProjectID.String()
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO media (id, provider_id, url, format, width, height,
			size_bytes, tags, project_id, usage_type, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.ProviderID, m.URL, m.Format, m.Width, m.Height,
		m.SizeBytes, string(tags), projectID, m.UsageType, m.UploadedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

// ListMedia returns media asset records, newest first.
func (db *DB) ListMedia(ctx context.Context, limit, offset int) ([]models.MediaAsset, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, provider_id, url, format, width, height, size_bytes,
			tags, project_id, usage_type, uploaded_at
		FROM media ORDER BY uploaded_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer closeRows(rows)

	var assets []models.MediaAsset
	for rows.Next() {
		var (
			m         models.MediaAsset
			id, tags  string
			projectID sql.NullString
			uploaded  time.Time
		)
		if err := rows.Scan(&id, &m.ProviderID, &m.URL, &m.Format, &m.Width,
			&m.Height, &m.SizeBytes, &tags, &projectID, &m.UsageType, &uploaded); err != nil {
			db.reportMalformed("media", fmt.Sprintf("scan: %v", err))
			continue
		}
		mid, err := uuid.Parse(id)
		if err != nil {
			db.reportMalformed("media", fmt.Sprintf("bad media id %q", id))
			continue
		}
		m.ID = mid
		m.UploadedAt = uploaded.UTC()
		if projectID.Valid {
			if pid, err := uuid.Parse(projectID.String); err == nil {
				m.ProjectID = &pid
			}
		}
		if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
			m.Tags = nil
		}
		assets = append(assets, m)
	}
	return assets, rows.Err()
}

// DeleteMedia removes one media asset record.
func (db *DB) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return requireRow(res)
}

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Warn().Err(err).Msg("close result rows")
	}
}
