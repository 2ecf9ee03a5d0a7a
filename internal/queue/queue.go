// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

// Package queue implements the durable outbox for transactional email.
// Jobs are enqueued as pending rows and drained by RunBatch, which is
// invoked periodically by the scheduler or the jobs endpoint. Multiple
// overlapping invocations are safe: exclusivity is enforced by an atomic
// claim at the data layer, not by in-process locking.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/havenretreats/haven-go/internal/mailer"
	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/store"
)

// Config holds queue tuning parameters.
type Config struct {
	BatchSize   int64
	BackoffBase time.Duration // delay after the first failure
	BackoffCap  time.Duration // ceiling for the exponential schedule
	MaxAttempts int64
	From        string // sender address for all outbound mail
	ReplyTo     string // optional default Reply-To
}

// DefaultConfig returns the stock queue parameters.
func DefaultConfig() Config {
	return Config{
		BatchSize:   10,
		BackoffBase: time.Minute,
		BackoffCap:  time.Hour,
		MaxAttempts: model.DefaultEmailMaxAttempts,
	}
}

// Queue owns email job rows and the delivery loop.
type Queue struct {
	queries *store.Queries
	sender  mailer.Sender
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
}

// New creates a Queue.
func New(db *sql.DB, sender mailer.Sender, logger *slog.Logger, cfg Config) *Queue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Minute
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = model.DefaultEmailMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		queries: store.New(db),
		sender:  sender,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Enqueue inserts a pending job. A future runAt delays the first
// delivery attempt; a zero runAt means "as soon as possible".
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload model.EmailPayload, runAt time.Time) (model.EmailJob, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.EmailJob{}, fmt.Errorf("encoding payload: %w", err)
	}

	now := q.now()
	if runAt.IsZero() {
		runAt = now
	}

	job, err := q.queries.CreateEmailJob(ctx, store.CreateEmailJobParams{
		JobType:     jobType,
		Payload:     string(body),
		MaxAttempts: q.cfg.MaxAttempts,
		RunAt:       runAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.EmailJob{}, fmt.Errorf("enqueueing email job: %w", err)
	}
	return job, nil
}

// RunBatch processes up to the configured batch of due jobs, oldest
// first, and returns how many this invocation actually claimed and
// processed. A failure to load jobs aborts the batch; a failure to
// deliver one job never does.
func (q *Queue) RunBatch(ctx context.Context) (int, error) {
	jobs, err := q.queries.ListDueEmailJobs(ctx, q.now(), q.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("loading due email jobs: %w", err)
	}

	processed := 0
	for _, job := range jobs {
		claimed, err := q.queries.ClaimEmailJob(ctx, job.ID, q.now())
		if err != nil {
			q.logger.Error("failed to claim email job", "job_id", job.ID, "error", err)
			continue
		}
		if !claimed {
			// Another invocation won the claim; not an error.
			continue
		}

		q.processClaimed(ctx, job)
		processed++
	}
	return processed, nil
}

// processClaimed delivers one claimed job and records the outcome.
func (q *Queue) processClaimed(ctx context.Context, job model.EmailJob) {
	if err := q.deliver(ctx, job); err != nil {
		q.recordFailure(ctx, job, err)
		return
	}

	if err := q.queries.MarkEmailJobSent(ctx, job.ID, q.now()); err != nil {
		q.logger.Error("failed to mark email job sent", "job_id", job.ID, "error", err)
		return
	}
	q.logger.Info("email job sent", "job_id", job.ID, "job_type", job.JobType, "attempts", job.Attempts+1)
}

// deliver renders the job's template and hands the message to the
// provider.
func (q *Queue) deliver(ctx context.Context, job model.EmailJob) error {
	payload, err := job.DecodePayload()
	if err != nil {
		return err
	}

	tpl, err := q.queries.GetActiveEmailTemplateByKey(ctx, payload.TemplateKind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no active template for kind %q", payload.TemplateKind)
		}
		return fmt.Errorf("loading template %q: %w", payload.TemplateKind, err)
	}

	rendered := mailer.RenderTemplate(tpl, payload.TemplateVars)

	replyTo := payload.ReplyTo
	if replyTo == "" {
		replyTo = q.cfg.ReplyTo
	}

	return q.sender.Send(ctx, mailer.Message{
		From:    q.cfg.From,
		To:      payload.To,
		ReplyTo: replyTo,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	})
}

// recordFailure applies the retry/backoff state machine after a delivery
// failure.
func (q *Queue) recordFailure(ctx context.Context, job model.EmailJob, cause error) {
	attempts := job.Attempts + 1
	now := q.now()

	if attempts >= job.MaxAttempts {
		if err := q.queries.MarkEmailJobFailed(ctx, job.ID, attempts, cause.Error(), now); err != nil {
			q.logger.Error("failed to mark email job failed", "job_id", job.ID, "error", err)
			return
		}
		q.logger.Warn("email job exhausted retries",
			"job_id", job.ID,
			"job_type", job.JobType,
			"attempts", attempts,
			"error", cause,
		)
		return
	}

	delay := q.Backoff(attempts)
	if err := q.queries.RescheduleEmailJob(ctx, store.RescheduleEmailJobParams{
		Attempts:  attempts,
		RunAt:     now.Add(delay),
		LastError: cause.Error(),
		UpdatedAt: now,
		ID:        job.ID,
	}); err != nil {
		q.logger.Error("failed to reschedule email job", "job_id", job.ID, "error", err)
		return
	}
	q.logger.Warn("email job delivery failed, retrying",
		"job_id", job.ID,
		"job_type", job.JobType,
		"attempts", attempts,
		"retry_in", delay,
		"error", cause,
	)
}

// Backoff returns the delay before the next try after the given failed
// attempt number: base doubled per attempt, capped. Attempt 1 waits the
// base delay.
func (q *Queue) Backoff(attempt int64) time.Duration {
	delay := q.cfg.BackoffBase
	for i := int64(1); i < attempt; i++ {
		delay *= 2
		if delay >= q.cfg.BackoffCap {
			return q.cfg.BackoffCap
		}
	}
	if delay > q.cfg.BackoffCap {
		return q.cfg.BackoffCap
	}
	return delay
}
