// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance on a cron cadence: email
// queue draining, preview token cleanup and event retention.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/havenretreats/haven-go/internal/queue"
	"github.com/havenretreats/haven-go/internal/store"
)

// EventRetention is how long audit events are kept.
const EventRetention = 90 * 24 * time.Hour

// Scheduler owns the cron loop.
type Scheduler struct {
	db     *sql.DB
	queue  *queue.Queue
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a new scheduler instance. The email queue may be nil when
// mail delivery is driven externally via the jobs endpoint only.
func New(db *sql.DB, q *queue.Queue, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		db:     db,
		queue:  q,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers the recurring jobs and begins the cron loop.
func (s *Scheduler) Start() error {
	if s.queue != nil {
		// Drain the email outbox every minute. Overlapping ticks are
		// safe: each job is claimed atomically at the data layer.
		if _, err := s.cron.AddFunc("* * * * *", s.runEmailBatch); err != nil {
			return err
		}
	}

	if _, err := s.cron.AddFunc("@hourly", s.purgeExpiredPreviewTokens); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@daily", s.purgeOldEvents); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runEmailBatch() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	processed, err := s.queue.RunBatch(ctx)
	if err != nil {
		s.logger.Error("email batch failed", "error", err)
		return
	}
	if processed > 0 {
		s.logger.Info("email batch complete", "processed", processed)
	}
}

func (s *Scheduler) purgeExpiredPreviewTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := store.New(s.db).DeleteExpiredPreviewTokens(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to purge preview tokens", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("purged expired preview tokens", "count", deleted)
	}
}

func (s *Scheduler) purgeOldEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-EventRetention)
	if err := store.New(s.db).DeleteOldEvents(ctx, cutoff); err != nil {
		s.logger.Error("failed to purge old events", "error", err)
	}
}
