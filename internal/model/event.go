// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth    = "auth"
	EventCategoryPage    = "page"
	EventCategoryRetreat = "retreat"
	EventCategoryEmail   = "email"
	EventCategoryUser    = "user"
	EventCategoryForm    = "form"
	EventCategoryMedia   = "media"
	EventCategorySystem  = "system"
)

// Event is an audit trail entry. Event writes are best-effort side
// effects: a failed write is logged but never fails the primary mutation.
type Event struct {
	ID        int64         `json:"id"`
	Level     string        `json:"level"`
	Category  string        `json:"category"`
	Message   string        `json:"message"`
	UserID    sql.NullInt64 `json:"user_id,omitempty"`
	Metadata  string        `json:"metadata"` // JSON string
	IPAddress string        `json:"ip_address,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
