// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Email job statuses. A job moves pending -> processing via an atomic
// claim, then to sent (terminal) or back to pending with a future run_at
// until attempts reaches max_attempts, at which point it becomes failed
// (terminal). Jobs are never deleted.
const (
	EmailJobStatusPending    = "pending"
	EmailJobStatusProcessing = "processing"
	EmailJobStatusSent       = "sent"
	EmailJobStatusFailed     = "failed"
)

// Email job types
const (
	EmailJobContactNotification = "contact_notification"
	EmailJobContactConfirmation = "contact_confirmation"
	EmailJobBookingNotification = "booking_notification"
	EmailJobBookingConfirmation = "booking_confirmation"
)

// DefaultEmailMaxAttempts is the number of delivery attempts before a job
// is marked failed.
const DefaultEmailMaxAttempts = 5

// EmailJob is a queued unit of outbound email, owned by the queue and
// outliving the request that created it.
type EmailJob struct {
	ID          int64          `json:"id"`
	Status      string         `json:"status"`
	JobType     string         `json:"job_type"`
	Payload     string         `json:"payload"` // JSON-encoded EmailPayload
	Attempts    int64          `json:"attempts"`
	MaxAttempts int64          `json:"max_attempts"`
	RunAt       time.Time      `json:"run_at"`
	LastError   sql.NullString `json:"last_error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsTerminal returns true once no further state transitions are possible.
func (j *EmailJob) IsTerminal() bool {
	return j.Status == EmailJobStatusSent || j.Status == EmailJobStatusFailed
}

// EmailPayload is the JSON shape stored in an email job's payload column.
type EmailPayload struct {
	To           string            `json:"to"`
	ReplyTo      string            `json:"reply_to,omitempty"`
	TemplateKind string            `json:"template_kind"`
	TemplateVars map[string]string `json:"template_vars,omitempty"`
}

// DecodePayload parses the job's payload column.
func (j *EmailJob) DecodePayload() (EmailPayload, error) {
	var p EmailPayload
	if err := json.Unmarshal([]byte(j.Payload), &p); err != nil {
		return EmailPayload{}, fmt.Errorf("decoding email payload for job %d: %w", j.ID, err)
	}
	return p, nil
}

// Email template statuses
const (
	EmailTemplateStatusActive   = "active"
	EmailTemplateStatusInactive = "inactive"
)

// EmailTemplate holds an editable transactional email template, addressed
// by a stable key. Placeholders of the form {{variable_name}} are
// substituted at render time.
type EmailTemplate struct {
	ID        int64          `json:"id"`
	Key       string         `json:"key"`
	Subject   string         `json:"subject"`
	HTMLBody  string         `json:"html_body"`
	TextBody  sql.NullString `json:"text_body,omitempty"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
