// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/havenretreats/haven-go/internal/model"
)

const pageColumns = "id, title, slug, status, draft_version_id, published_version_id, created_by, created_at, updated_at"

func scanPage(row *sql.Row) (model.Page, error) {
	var p model.Page
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Status, &p.DraftVersionID,
		&p.PublishedVersionID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreatePageParams holds the fields for creating a page shell. Content
// arrives later through version rows.
type CreatePageParams struct {
	Title     string
	Slug      string
	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreatePage inserts a new page with no versions yet.
func (q *Queries) CreatePage(ctx context.Context, arg CreatePageParams) (model.Page, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO pages (title, slug, status, created_by, created_at, updated_at)
		VALUES (?, ?, 'draft', ?, ?, ?)
		RETURNING `+pageColumns,
		arg.Title, arg.Slug, arg.CreatedBy, arg.CreatedAt, arg.UpdatedAt)
	return scanPage(row)
}

// GetPageByID fetches a page by primary key.
func (q *Queries) GetPageByID(ctx context.Context, id int64) (model.Page, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	return scanPage(row)
}

// GetPageBySlug fetches a page by its stable slug.
func (q *Queries) GetPageBySlug(ctx context.Context, slug string) (model.Page, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE slug = ?`, slug)
	return scanPage(row)
}

// ListPages returns all pages ordered by title.
func (q *Queries) ListPages(ctx context.Context) ([]model.Page, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []model.Page
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Status, &p.DraftVersionID,
			&p.PublishedVersionID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// UpdatePageMeta updates a page's title and slug.
func (q *Queries) UpdatePageMeta(ctx context.Context, id int64, title, slug string, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE pages SET title = ?, slug = ?, updated_at = ? WHERE id = ?`,
		title, slug, updatedAt, id)
	return err
}

// SetPageDraftVersion repoints the page's draft pointer and marks the
// page as draft.
func (q *Queries) SetPageDraftVersion(ctx context.Context, pageID, versionID int64, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE pages SET draft_version_id = ?, status = 'draft', updated_at = ? WHERE id = ?`,
		versionID, updatedAt, pageID)
	return err
}

// SetPagePublishedVersion repoints the page's published pointer and marks
// the page as published. The draft pointer is left untouched.
func (q *Queries) SetPagePublishedVersion(ctx context.Context, pageID, versionID int64, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE pages SET published_version_id = ?, status = 'published', updated_at = ? WHERE id = ?`,
		versionID, updatedAt, pageID)
	return err
}

// ClearPagePublishedVersion removes the published pointer, hiding the
// page from the public read path.
func (q *Queries) ClearPagePublishedVersion(ctx context.Context, pageID int64, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE pages SET published_version_id = NULL, status = 'draft', updated_at = ? WHERE id = ?`,
		updatedAt, pageID)
	return err
}

const pageVersionColumns = "id, page_id, version_number, document, notes, created_by, created_at"

func scanPageVersion(row *sql.Row) (model.PageVersion, error) {
	var v model.PageVersion
	err := row.Scan(&v.ID, &v.PageID, &v.VersionNumber, &v.Document, &v.Notes, &v.CreatedBy, &v.CreatedAt)
	return v, err
}

// CreatePageVersionParams holds the fields for appending a version row.
type CreatePageVersionParams struct {
	PageID        int64
	VersionNumber int64
	Document      string
	Notes         string
	CreatedBy     int64
	CreatedAt     time.Time
}

// CreatePageVersion appends an immutable version row. The UNIQUE
// constraint on (page_id, version_number) rejects concurrent saves racing
// on the same number.
func (q *Queries) CreatePageVersion(ctx context.Context, arg CreatePageVersionParams) (model.PageVersion, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO page_versions (page_id, version_number, document, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+pageVersionColumns,
		arg.PageID, arg.VersionNumber, arg.Document, arg.Notes, arg.CreatedBy, arg.CreatedAt)
	return scanPageVersion(row)
}

// GetPageVersionByID fetches a version row by primary key.
func (q *Queries) GetPageVersionByID(ctx context.Context, id int64) (model.PageVersion, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+pageVersionColumns+` FROM page_versions WHERE id = ?`, id)
	return scanPageVersion(row)
}

// GetMaxPageVersionNumber returns the highest version number for a page,
// or 0 if the page has no versions yet.
func (q *Queries) GetMaxPageVersionNumber(ctx context.Context, pageID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_number), 0) FROM page_versions WHERE page_id = ?`, pageID).Scan(&n)
	return n, err
}

// ListPageVersions returns version rows for a page, newest first, capped
// at limit.
func (q *Queries) ListPageVersions(ctx context.Context, pageID int64, limit int64) ([]model.PageVersion, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+pageVersionColumns+` FROM page_versions
		WHERE page_id = ? ORDER BY version_number DESC LIMIT ?`, pageID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []model.PageVersion
	for rows.Next() {
		var v model.PageVersion
		if err := rows.Scan(&v.ID, &v.PageID, &v.VersionNumber, &v.Document, &v.Notes, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
