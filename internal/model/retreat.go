// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Retreat is the denormalized CMS record for a retreat offering. The row
// holds the current editable field values; draft and published pointers
// reference full snapshots in retreat_versions. Public readers resolve
// only through the published pointer.
type Retreat struct {
	ID                 int64         `json:"id"`
	Title              string        `json:"title"`
	Slug               string        `json:"slug"`
	Summary            string        `json:"summary"`
	Location           string        `json:"location"`
	StartDate          sql.NullTime  `json:"start_date"`
	EndDate            sql.NullTime  `json:"end_date"`
	PriceCents         int64         `json:"price_cents"`
	Capacity           int64         `json:"capacity"`
	HeroImageURL       string        `json:"hero_image_url"`
	Status             string        `json:"status"`
	DraftVersionID     sql.NullInt64 `json:"draft_version_id"`
	PublishedVersionID sql.NullInt64 `json:"published_version_id"`
	CreatedBy          int64         `json:"created_by"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// RetreatVersion is an immutable snapshot of all retreat fields at save
// time. The snapshot is a full denormalized copy, not a diff.
type RetreatVersion struct {
	ID            int64     `json:"id"`
	RetreatID     int64     `json:"retreat_id"`
	VersionNumber int64     `json:"version_number"`
	Snapshot      string    `json:"snapshot"` // JSON-encoded RetreatSnapshot
	Notes         string    `json:"notes"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// RetreatSnapshot is the JSON shape stored in a retreat version row.
type RetreatSnapshot struct {
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	Summary      string `json:"summary"`
	Location     string `json:"location"`
	StartDate    string `json:"start_date,omitempty"` // RFC 3339 date
	EndDate      string `json:"end_date,omitempty"`
	PriceCents   int64  `json:"price_cents"`
	Capacity     int64  `json:"capacity"`
	HeroImageURL string `json:"hero_image_url,omitempty"`
}

// Snapshot captures the retreat's current field values.
func (r *Retreat) SnapshotFields() RetreatSnapshot {
	s := RetreatSnapshot{
		Title:        r.Title,
		Slug:         r.Slug,
		Summary:      r.Summary,
		Location:     r.Location,
		PriceCents:   r.PriceCents,
		Capacity:     r.Capacity,
		HeroImageURL: r.HeroImageURL,
	}
	if r.StartDate.Valid {
		s.StartDate = r.StartDate.Time.Format("2006-01-02")
	}
	if r.EndDate.Valid {
		s.EndDate = r.EndDate.Time.Format("2006-01-02")
	}
	return s
}

// SnapshotJSON returns the current field values encoded for storage in a
// version row.
func (r *Retreat) SnapshotJSON() (string, error) {
	b, err := json.Marshal(r.SnapshotFields())
	if err != nil {
		return "", err
	}
	return string(b), nil
}
