// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"net/http"

	"github.com/havenretreats/haven-go/internal/store"
)

// EventHandler serves the audit trail, filterable by category and level.
type EventHandler struct {
	queries *store.Queries
}

func NewEventHandler(db *sql.DB) *EventHandler {
	return &EventHandler{queries: store.New(db)}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100, 1, 500)
	offset := queryInt(r, "offset", 0, 0, 1<<31)
	events, err := h.queries.ListEvents(r.Context(), store.ListEventsParams{
		Category: r.URL.Query().Get("category"),
		Level:    r.URL.Query().Get("level"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteList(w, events, Meta{Limit: limit, Offset: offset})
}
