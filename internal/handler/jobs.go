// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/havenretreats/haven-go/internal/queue"
)

// JobsHandler exposes the manual queue trigger, protected by the shared
// jobs secret. The scheduler runs the same batch every minute; this
// endpoint exists for deploy hooks and operators draining the queue.
type JobsHandler struct {
	queue *queue.Queue
}

func NewJobsHandler(q *queue.Queue) *JobsHandler {
	return &JobsHandler{queue: q}
}

// RunEmail claims and delivers one batch of due email jobs.
func (h *JobsHandler) RunEmail(w http.ResponseWriter, r *http.Request) {
	processed, err := h.queue.RunBatch(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, map[string]int{"processed": processed})
}
