// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/havenretreats/haven-go/internal/model"
)

const previewTokenColumns = "id, token_hash, page_id, version_id, expires_at, created_by, created_at"

func scanPreviewToken(row *sql.Row) (model.PreviewToken, error) {
	var t model.PreviewToken
	err := row.Scan(&t.ID, &t.TokenHash, &t.PageID, &t.VersionID, &t.ExpiresAt, &t.CreatedBy, &t.CreatedAt)
	return t, err
}

// CreatePreviewTokenParams holds the fields for persisting a preview
// token. Only the hash is ever stored.
type CreatePreviewTokenParams struct {
	TokenHash string
	PageID    int64
	VersionID int64
	ExpiresAt time.Time
	CreatedBy int64
	CreatedAt time.Time
}

// CreatePreviewToken inserts a preview token record.
func (q *Queries) CreatePreviewToken(ctx context.Context, arg CreatePreviewTokenParams) (model.PreviewToken, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO preview_tokens (token_hash, page_id, version_id, expires_at, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+previewTokenColumns,
		arg.TokenHash, arg.PageID, arg.VersionID, arg.ExpiresAt, arg.CreatedBy, arg.CreatedAt)
	return scanPreviewToken(row)
}

// GetLivePreviewToken fetches an unexpired token by hash. Expired tokens
// are filtered in the query so they are indistinguishable from unknown
// ones: both come back as sql.ErrNoRows.
func (q *Queries) GetLivePreviewToken(ctx context.Context, tokenHash string, now time.Time) (model.PreviewToken, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+previewTokenColumns+` FROM preview_tokens
		WHERE token_hash = ? AND expires_at > ?`, tokenHash, now)
	return scanPreviewToken(row)
}

// DeleteExpiredPreviewTokens removes tokens past their expiry and returns
// how many were deleted.
func (q *Queries) DeleteExpiredPreviewTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM preview_tokens WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
