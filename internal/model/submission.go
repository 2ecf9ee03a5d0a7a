// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Submission kinds
const (
	SubmissionKindContact = "contact"
	SubmissionKindBooking = "booking"
)

// Submission statuses
const (
	SubmissionStatusNew      = "new"
	SubmissionStatusRead     = "read"
	SubmissionStatusArchived = "archived"
)

// Submission is a contact or booking inquiry captured from the public
// site. Booking submissions reference the retreat they concern.
type Submission struct {
	ID        int64         `json:"id"`
	Kind      string        `json:"kind"`
	RetreatID sql.NullInt64 `json:"retreat_id,omitempty"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone,omitempty"`
	Message   string        `json:"message"`
	Data      string        `json:"data"` // JSON map of extra form fields
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// IsUnread returns true if no admin has looked at the submission yet.
func (s *Submission) IsUnread() bool {
	return s.Status == SubmissionStatusNew
}
