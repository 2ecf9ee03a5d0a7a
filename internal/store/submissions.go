// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/havenretreats/haven-go/internal/model"
)

const submissionColumns = "id, kind, retreat_id, name, email, phone, message, data, status, created_at"

func scanSubmission(row *sql.Row) (model.Submission, error) {
	var s model.Submission
	err := row.Scan(&s.ID, &s.Kind, &s.RetreatID, &s.Name, &s.Email, &s.Phone, &s.Message,
		&s.Data, &s.Status, &s.CreatedAt)
	return s, err
}

// CreateSubmissionParams holds the fields for recording a form submission.
type CreateSubmissionParams struct {
	Kind      string
	RetreatID sql.NullInt64
	Name      string
	Email     string
	Phone     string
	Message   string
	Data      string
	CreatedAt time.Time
}

// CreateSubmission inserts a new submission in the unread state.
func (q *Queries) CreateSubmission(ctx context.Context, arg CreateSubmissionParams) (model.Submission, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO submissions (kind, retreat_id, name, email, phone, message, data, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'new', ?)
		RETURNING `+submissionColumns,
		arg.Kind, arg.RetreatID, arg.Name, arg.Email, arg.Phone, arg.Message, arg.Data, arg.CreatedAt)
	return scanSubmission(row)
}

// GetSubmissionByID fetches a submission by primary key.
func (q *Queries) GetSubmissionByID(ctx context.Context, id int64) (model.Submission, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	return scanSubmission(row)
}

// ListSubmissionsParams controls submission listing.
type ListSubmissionsParams struct {
	Status string // empty for all
	Limit  int64
	Offset int64
}

// ListSubmissions returns submissions newest first.
func (q *Queries) ListSubmissions(ctx context.Context, arg ListSubmissionsParams) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions`
	args := []any{}
	if arg.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, arg.Status)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, arg.Limit, arg.Offset)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []model.Submission
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.Kind, &s.RetreatID, &s.Name, &s.Email, &s.Phone, &s.Message,
			&s.Data, &s.Status, &s.CreatedAt); err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}

// UpdateSubmissionStatus moves a submission between new/read/archived.
func (q *Queries) UpdateSubmissionStatus(ctx context.Context, id int64, status string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE submissions SET status = ? WHERE id = ?`, status, id)
	return err
}

// CountUnreadSubmissions returns how many submissions no admin has read.
func (q *Queries) CountUnreadSubmissions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions WHERE status = 'new'`).Scan(&n)
	return n, err
}
