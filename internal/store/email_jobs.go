// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/havenretreats/haven-go/internal/model"
)

const emailJobColumns = "id, status, job_type, payload, attempts, max_attempts, run_at, last_error, created_at, updated_at"

func scanEmailJob(row *sql.Row) (model.EmailJob, error) {
	var j model.EmailJob
	err := row.Scan(&j.ID, &j.Status, &j.JobType, &j.Payload, &j.Attempts, &j.MaxAttempts,
		&j.RunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

// CreateEmailJobParams holds the fields for enqueueing an email job.
type CreateEmailJobParams struct {
	JobType     string
	Payload     string
	MaxAttempts int64
	RunAt       time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateEmailJob inserts a pending job row.
func (q *Queries) CreateEmailJob(ctx context.Context, arg CreateEmailJobParams) (model.EmailJob, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO email_jobs (status, job_type, payload, attempts, max_attempts, run_at, created_at, updated_at)
		VALUES ('pending', ?, ?, 0, ?, ?, ?, ?)
		RETURNING `+emailJobColumns,
		arg.JobType, arg.Payload, arg.MaxAttempts, arg.RunAt, arg.CreatedAt, arg.UpdatedAt)
	return scanEmailJob(row)
}

// GetEmailJobByID fetches a job by primary key.
func (q *Queries) GetEmailJobByID(ctx context.Context, id int64) (model.EmailJob, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+emailJobColumns+` FROM email_jobs WHERE id = ?`, id)
	return scanEmailJob(row)
}

// ListDueEmailJobs returns pending jobs whose run_at has passed, oldest
// first, capped at limit.
func (q *Queries) ListDueEmailJobs(ctx context.Context, now time.Time, limit int64) ([]model.EmailJob, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+emailJobColumns+` FROM email_jobs
		WHERE status = 'pending' AND run_at <= ?
		ORDER BY created_at ASC LIMIT ?`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.EmailJob
	for rows.Next() {
		var j model.EmailJob
		if err := rows.Scan(&j.ID, &j.Status, &j.JobType, &j.Payload, &j.Attempts, &j.MaxAttempts,
			&j.RunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ClaimEmailJob performs the atomic pending -> processing transition.
// Returns true only if this caller won the claim; overlapping workers
// observe zero rows affected and must skip the job.
func (q *Queries) ClaimEmailJob(ctx context.Context, id int64, updatedAt time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = 'processing', updated_at = ?
		WHERE id = ? AND status = 'pending'`, updatedAt, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkEmailJobSent records successful delivery.
func (q *Queries) MarkEmailJobSent(ctx context.Context, id int64, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = 'sent', last_error = NULL, updated_at = ? WHERE id = ?`,
		updatedAt, id)
	return err
}

// RescheduleEmailJobParams holds the fields for returning a failed job to
// the pending state with a future run time.
type RescheduleEmailJobParams struct {
	Attempts  int64
	RunAt     time.Time
	LastError string
	UpdatedAt time.Time
	ID        int64
}

// RescheduleEmailJob returns a job to pending with backoff applied.
func (q *Queries) RescheduleEmailJob(ctx context.Context, arg RescheduleEmailJobParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = 'pending', attempts = ?, run_at = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		arg.Attempts, arg.RunAt, arg.LastError, arg.UpdatedAt, arg.ID)
	return err
}

// MarkEmailJobFailed records terminal failure with the last error kept
// for operator diagnosis.
func (q *Queries) MarkEmailJobFailed(ctx context.Context, id int64, attempts int64, lastError string, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = 'failed', attempts = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		attempts, lastError, updatedAt, id)
	return err
}

// ListEmailJobsParams controls admin job listing.
type ListEmailJobsParams struct {
	Status string // empty for all
	Limit  int64
	Offset int64
}

// ListEmailJobs returns jobs for the admin queue view, newest first.
func (q *Queries) ListEmailJobs(ctx context.Context, arg ListEmailJobsParams) ([]model.EmailJob, error) {
	query := `SELECT ` + emailJobColumns + ` FROM email_jobs`
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

	var jobs []model.EmailJob
	for rows.Next() {
		var j model.EmailJob
		if err := rows.Scan(&j.ID, &j.Status, &j.JobType, &j.Payload, &j.Attempts, &j.MaxAttempts,
			&j.RunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
