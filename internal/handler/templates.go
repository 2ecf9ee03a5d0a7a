// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/store"
	"github.com/havenretreats/haven-go/internal/util"
)

// TemplateHandler manages the editable transactional email templates.
// The queue worker resolves templates by key at send time, so edits
// apply to every email delivered after the save.
type TemplateHandler struct {
	queries *store.Queries
}

func NewTemplateHandler(db *sql.DB) *TemplateHandler {
	return &TemplateHandler{queries: store.New(db)}
}

type templateRequest struct {
	Key      string `json:"key"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
	Status   string `json:"status"`
}

func (req *templateRequest) validate(w http.ResponseWriter, requireKey bool) bool {
	details := map[string]string{}
	if requireKey && strings.TrimSpace(req.Key) == "" {
		details["key"] = "key is required"
	}
	if req.Subject == "" {
		details["subject"] = "subject is required"
	}
	if req.HTMLBody == "" {
		details["html_body"] = "html_body is required"
	}
	if req.Status == "" {
		req.Status = model.EmailTemplateStatusActive
	}
	if req.Status != model.EmailTemplateStatusActive && req.Status != model.EmailTemplateStatusInactive {
		details["status"] = "status must be active or inactive"
	}
	if len(details) > 0 {
		WriteValidationError(w, details)
		return false
	}
	return true
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if !req.validate(w, true) {
		return
	}
	now := time.Now().UTC()
	tpl, err := h.queries.CreateEmailTemplate(r.Context(), store.CreateEmailTemplateParams{
		Key:       strings.TrimSpace(req.Key),
		Subject:   req.Subject,
		HTMLBody:  req.HTMLBody,
		TextBody:  util.NullString(req.TextBody),
		Status:    req.Status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			WriteConflict(w, "template key is already in use")
			return
		}
		WriteServiceError(w, err)
		return
	}
	WriteCreated(w, tpl)
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.queries.ListEmailTemplates(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, templates)
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "templateID")
	if !ok {
		return
	}
	tpl, err := h.queries.GetEmailTemplateByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "template not found")
			return
		}
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, tpl)
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "templateID")
	if !ok {
		return
	}
	var req templateRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if !req.validate(w, false) {
		return
	}
	if _, err := h.queries.GetEmailTemplateByID(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "template not found")
			return
		}
		WriteServiceError(w, err)
		return
	}
	err := h.queries.UpdateEmailTemplate(r.Context(), store.UpdateEmailTemplateParams{
		ID:        id,
		Subject:   req.Subject,
		HTMLBody:  req.HTMLBody,
		TextBody:  util.NullString(req.TextBody),
		Status:    req.Status,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	tpl, err := h.queries.GetEmailTemplateByID(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, tpl)
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "templateID")
	if !ok {
		return
	}
	if err := h.queries.DeleteEmailTemplate(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, map[string]bool{"deleted": true})
}
