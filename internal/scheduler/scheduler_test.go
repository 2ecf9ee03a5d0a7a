// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"log/slog"
	"testing"
)

func TestNew(t *testing.T) {
	logger := slog.Default()

	s := New(nil, nil, logger)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.cron == nil {
		t.Error("New() scheduler has nil cron")
	}
	if s.logger != logger {
		t.Error("New() scheduler has wrong logger")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	logger := slog.Default()
	s := New(nil, nil, logger)

	err := s.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// With no queue configured only the cleanup jobs are registered.
	if got := len(s.cron.Entries()); got != 2 {
		t.Errorf("registered jobs = %d, want 2", got)
	}

	s.Stop()
}
