// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Page statuses
const (
	PageStatusDraft     = "draft"
	PageStatusPublished = "published"
	PageStatusArchived  = "archived"
)

// Page is a marketing page identified by a stable slug. It never embeds
// content itself; the draft and published pointers reference immutable
// rows in page_versions.
type Page struct {
	ID                 int64         `json:"id"`
	Title              string        `json:"title"`
	Slug               string        `json:"slug"`
	Status             string        `json:"status"`
	DraftVersionID     sql.NullInt64 `json:"draft_version_id"`
	PublishedVersionID sql.NullInt64 `json:"published_version_id"`
	CreatedBy          int64         `json:"created_by"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// IsPublished returns true if the page has a live published version.
func (p *Page) IsPublished() bool {
	return p.Status == PageStatusPublished && p.PublishedVersionID.Valid
}

// PageVersion is an immutable snapshot of a page document. Version numbers
// form a per-page sequence starting at 1; saving a draft always appends a
// new row and never rewrites an existing one.
type PageVersion struct {
	ID            int64     `json:"id"`
	PageID        int64     `json:"page_id"`
	VersionNumber int64     `json:"version_number"`
	Document      string    `json:"document"` // JSON-encoded content.Document
	Notes         string    `json:"notes"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}
