// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/havenretreats/haven-go/internal/model"
)

const retreatColumns = `id, title, slug, summary, location, start_date, end_date, price_cents,
	capacity, hero_image_url, status, draft_version_id, published_version_id,
	created_by, created_at, updated_at`

func scanRetreat(row *sql.Row) (model.Retreat, error) {
	var r model.Retreat
	err := row.Scan(&r.ID, &r.Title, &r.Slug, &r.Summary, &r.Location, &r.StartDate, &r.EndDate,
		&r.PriceCents, &r.Capacity, &r.HeroImageURL, &r.Status, &r.DraftVersionID,
		&r.PublishedVersionID, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// CreateRetreatParams holds the fields for creating a retreat record.
type CreateRetreatParams struct {
	Title        string
	Slug         string
	Summary      string
	Location     string
	StartDate    sql.NullTime
	EndDate      sql.NullTime
	PriceCents   int64
	Capacity     int64
	HeroImageURL string
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateRetreat inserts a new retreat record with no versions yet.
func (q *Queries) CreateRetreat(ctx context.Context, arg CreateRetreatParams) (model.Retreat, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO retreats (title, slug, summary, location, start_date, end_date, price_cents,
			capacity, hero_image_url, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'draft', ?, ?, ?)
		RETURNING `+retreatColumns,
		arg.Title, arg.Slug, arg.Summary, arg.Location, arg.StartDate, arg.EndDate,
		arg.PriceCents, arg.Capacity, arg.HeroImageURL, arg.CreatedBy, arg.CreatedAt, arg.UpdatedAt)
	return scanRetreat(row)
}

// GetRetreatByID fetches a retreat by primary key.
func (q *Queries) GetRetreatByID(ctx context.Context, id int64) (model.Retreat, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+retreatColumns+` FROM retreats WHERE id = ?`, id)
	return scanRetreat(row)
}

// GetRetreatBySlug fetches a retreat by its stable slug.
func (q *Queries) GetRetreatBySlug(ctx context.Context, slug string) (model.Retreat, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+retreatColumns+` FROM retreats WHERE slug = ?`, slug)
	return scanRetreat(row)
}

// ListRetreats returns all retreat records ordered by start date, newest
// first, with undated retreats last.
func (q *Queries) ListRetreats(ctx context.Context) ([]model.Retreat, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+retreatColumns+` FROM retreats
		ORDER BY start_date IS NULL, start_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var retreats []model.Retreat
	for rows.Next() {
		var r model.Retreat
		if err := rows.Scan(&r.ID, &r.Title, &r.Slug, &r.Summary, &r.Location, &r.StartDate, &r.EndDate,
			&r.PriceCents, &r.Capacity, &r.HeroImageURL, &r.Status, &r.DraftVersionID,
			&r.PublishedVersionID, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		retreats = append(retreats, r)
	}
	return retreats, rows.Err()
}

// UpdateRetreatFieldsParams holds the editable retreat fields.
type UpdateRetreatFieldsParams struct {
	Title        string
	Slug         string
	Summary      string
	Location     string
	StartDate    sql.NullTime
	EndDate      sql.NullTime
	PriceCents   int64
	Capacity     int64
	HeroImageURL string
	UpdatedAt    time.Time
	ID           int64
}

// UpdateRetreatFields updates the retreat row's current field values.
// Snapshots of previous values live on in retreat_versions.
func (q *Queries) UpdateRetreatFields(ctx context.Context, arg UpdateRetreatFieldsParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE retreats SET title = ?, slug = ?, summary = ?, location = ?, start_date = ?,
			end_date = ?, price_cents = ?, capacity = ?, hero_image_url = ?, updated_at = ?
		WHERE id = ?`,
		arg.Title, arg.Slug, arg.Summary, arg.Location, arg.StartDate, arg.EndDate,
		arg.PriceCents, arg.Capacity, arg.HeroImageURL, arg.UpdatedAt, arg.ID)
	return err
}

// SetRetreatDraftVersion repoints the retreat's draft pointer.
func (q *Queries) SetRetreatDraftVersion(ctx context.Context, retreatID, versionID int64, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE retreats SET draft_version_id = ?, status = 'draft', updated_at = ? WHERE id = ?`,
		versionID, updatedAt, retreatID)
	return err
}

// SetRetreatPublishedVersion repoints the retreat's published pointer.
func (q *Queries) SetRetreatPublishedVersion(ctx context.Context, retreatID, versionID int64, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE retreats SET published_version_id = ?, status = 'published', updated_at = ? WHERE id = ?`,
		versionID, updatedAt, retreatID)
	return err
}

// ClearRetreatPublishedVersion removes the published pointer.
func (q *Queries) ClearRetreatPublishedVersion(ctx context.Context, retreatID int64, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE retreats SET published_version_id = NULL, status = 'draft', updated_at = ? WHERE id = ?`,
		updatedAt, retreatID)
	return err
}

const retreatVersionColumns = "id, retreat_id, version_number, snapshot, notes, created_by, created_at"

func scanRetreatVersion(row *sql.Row) (model.RetreatVersion, error) {
	var v model.RetreatVersion
	err := row.Scan(&v.ID, &v.RetreatID, &v.VersionNumber, &v.Snapshot, &v.Notes, &v.CreatedBy, &v.CreatedAt)
	return v, err
}

// CreateRetreatVersionParams holds the fields for appending a retreat
// version row.
type CreateRetreatVersionParams struct {
	RetreatID     int64
	VersionNumber int64
	Snapshot      string
	Notes         string
	CreatedBy     int64
	CreatedAt     time.Time
}

// CreateRetreatVersion appends an immutable snapshot row.
func (q *Queries) CreateRetreatVersion(ctx context.Context, arg CreateRetreatVersionParams) (model.RetreatVersion, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO retreat_versions (retreat_id, version_number, snapshot, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+retreatVersionColumns,
		arg.RetreatID, arg.VersionNumber, arg.Snapshot, arg.Notes, arg.CreatedBy, arg.CreatedAt)
	return scanRetreatVersion(row)
}

// GetRetreatVersionByID fetches a retreat version row by primary key.
func (q *Queries) GetRetreatVersionByID(ctx context.Context, id int64) (model.RetreatVersion, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+retreatVersionColumns+` FROM retreat_versions WHERE id = ?`, id)
	return scanRetreatVersion(row)
}

// GetMaxRetreatVersionNumber returns the highest version number for a
// retreat, or 0 if it has no versions yet.
func (q *Queries) GetMaxRetreatVersionNumber(ctx context.Context, retreatID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_number), 0) FROM retreat_versions WHERE retreat_id = ?`, retreatID).Scan(&n)
	return n, err
}

// ListRetreatVersions returns version rows for a retreat, newest first,
// capped at limit.
func (q *Queries) ListRetreatVersions(ctx context.Context, retreatID int64, limit int64) ([]model.RetreatVersion, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+retreatVersionColumns+` FROM retreat_versions
		WHERE retreat_id = ? ORDER BY version_number DESC LIMIT ?`, retreatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []model.RetreatVersion
	for rows.Next() {
		var v model.RetreatVersion
		if err := rows.Scan(&v.ID, &v.RetreatID, &v.VersionNumber, &v.Snapshot, &v.Notes, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
