// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/havenretreats/haven-go/internal/model"
)

const mediaColumns = "id, uuid, filename, path, thumb_path, mime_type, size, width, height, uploader_id, created_at"

func scanMedia(row *sql.Row) (model.Media, error) {
	var m model.Media
	err := row.Scan(&m.ID, &m.UUID, &m.Filename, &m.Path, &m.ThumbPath, &m.MimeType,
		&m.Size, &m.Width, &m.Height, &m.UploaderID, &m.CreatedAt)
	return m, err
}

// CreateMediaParams holds the fields for recording an upload.
type CreateMediaParams struct {
	UUID       string
	Filename   string
	Path       string
	ThumbPath  string
	MimeType   string
	Size       int64
	Width      int64
	Height     int64
	UploaderID int64
	CreatedAt  time.Time
}

// CreateMedia inserts a media record.
func (q *Queries) CreateMedia(ctx context.Context, arg CreateMediaParams) (model.Media, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO media (uuid, filename, path, thumb_path, mime_type, size, width, height, uploader_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+mediaColumns,
		arg.UUID, arg.Filename, arg.Path, arg.ThumbPath, arg.MimeType, arg.Size,
		arg.Width, arg.Height, arg.UploaderID, arg.CreatedAt)
	return scanMedia(row)
}

// GetMediaByID fetches a media record by primary key.
func (q *Queries) GetMediaByID(ctx context.Context, id int64) (model.Media, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = ?`, id)
	return scanMedia(row)
}

// ListMedia returns media records newest first.
func (q *Queries) ListMedia(ctx context.Context, limit, offset int64) ([]model.Media, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+mediaColumns+` FROM media ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Media
	for rows.Next() {
		var m model.Media
		if err := rows.Scan(&m.ID, &m.UUID, &m.Filename, &m.Path, &m.ThumbPath, &m.MimeType,
			&m.Size, &m.Width, &m.Height, &m.UploaderID, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// DeleteMedia removes a media record. The file on disk is the caller's
// concern.
func (q *Queries) DeleteMedia(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id)
	return err
}
