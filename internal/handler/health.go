// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/havenretreats/haven-go/internal/version"
)

// HealthHandler serves the liveness endpoint used by deploy checks.
type HealthHandler struct {
	db        *sql.DB
	info      version.Info
	startTime time.Time
}

func NewHealthHandler(db *sql.DB, info version.Info) *HealthHandler {
	return &HealthHandler{db: db, info: info, startTime: time.Now()}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Database: "ok",
		Version:  h.info.Version,
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
	}
	status := http.StatusOK
	if err := h.db.PingContext(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}
