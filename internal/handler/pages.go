// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/havenretreats/haven-go/internal/middleware"
	"github.com/havenretreats/haven-go/internal/service"
)

// PageHandler serves the admin page workflow: CRUD, draft saves, the
// publish pointer operations, version history and preview tokens.
type PageHandler struct {
	svc *service.PageService
}

func NewPageHandler(svc *service.PageService) *PageHandler {
	return &PageHandler{svc: svc}
}

type createPageRequest struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

func (h *PageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPageRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.Title == "" {
		WriteValidationError(w, map[string]string{"title": "title is required"})
		return
	}
	page, err := h.svc.CreatePage(r.Context(), req.Title, req.Slug, middleware.GetUserID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteCreated(w, page)
}

func (h *PageHandler) List(w http.ResponseWriter, r *http.Request) {
	pages, err := h.svc.ListPages(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, pages)
}

func (h *PageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "pageID")
	if !ok {
		return
	}
	page, err := h.svc.GetPage(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, page)
}

type saveDraftRequest struct {
	Document json.RawMessage `json:"document"`
	Notes    string          `json:"notes"`
}

// SaveDraft appends a new version from the submitted document. Parsing
// is lenient, so the draft always saves; malformed block nodes are
// dropped rather than rejected.
func (h *PageHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "pageID")
	if !ok {
		return
	}
	var req saveDraftRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	version, err := h.svc.SaveDraft(r.Context(), id, req.Document, req.Notes, middleware.GetUserID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteCreated(w, version)
}

type publishRequest struct {
	VersionID int64 `json:"version_id"`
}

// Publish points the page at the given version. With no version in the
// body the current draft is published, synthesizing an initial version
// for pages that have never been edited.
func (h *PageHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "pageID")
	if !ok {
		return
	}
	var req publishRequest
	if !readOptionalJSON(w, r, &req) {
		return
	}
	userID := middleware.GetUserID(r)
	var err error
	if req.VersionID == 0 {
		err = h.svc.PublishDraft(r.Context(), id, userID)
	} else {
		err = h.svc.Publish(r.Context(), id, req.VersionID, userID)
	}
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	page, err := h.svc.GetPage(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, page)
}

// Rollback republishes an older version. The version log is untouched;
// only the published pointer moves.
func (h *PageHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "pageID")
	if !ok {
		return
	}
	var req publishRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.VersionID == 0 {
		WriteValidationError(w, map[string]string{"version_id": "version_id is required"})
		return
	}
	if err := h.svc.Rollback(r.Context(), id, req.VersionID, middleware.GetUserID(r)); err != nil {
		WriteServiceError(w, err)
		return
	}
	page, err := h.svc.GetPage(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, page)
}

func (h *PageHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "pageID")
	if !ok {
		return
	}
	if err := h.svc.Unpublish(r.Context(), id, middleware.GetUserID(r)); err != nil {
		WriteServiceError(w, err)
		return
	}
	page, err := h.svc.GetPage(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, page)
}

func (h *PageHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "pageID")
	if !ok {
		return
	}
	versions, err := h.svc.ListVersions(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, versions)
}

func (h *PageHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	pageID, ok := pathID(w, r, "pageID")
	if !ok {
		return
	}
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	version, err := h.svc.GetVersion(r.Context(), pageID, versionID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, version)
}

type createPreviewRequest struct {
	VersionID     int64 `json:"version_id"`
	LifetimeHours int64 `json:"lifetime_hours"`
}

type previewTokenResponse struct {
	Token     string    `json:"token"`
	PageID    int64     `json:"page_id"`
	VersionID int64     `json:"version_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreatePreview mints a share link token pinned to one version. The
// plaintext token appears in this response and nowhere else.
func (h *PageHandler) CreatePreview(w http.ResponseWriter, r *http.Request) {
	pageID, ok := pathID(w, r, "pageID")
	if !ok {
		return
	}
	var req createPreviewRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.VersionID == 0 {
		WriteValidationError(w, map[string]string{"version_id": "version_id is required"})
		return
	}
	lifetime := time.Duration(req.LifetimeHours) * time.Hour
	plaintext, token, err := h.svc.CreatePreviewToken(r.Context(), pageID, req.VersionID, lifetime, middleware.GetUserID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteCreated(w, previewTokenResponse{
		Token:     plaintext,
		PageID:    token.PageID,
		VersionID: token.VersionID,
		ExpiresAt: token.ExpiresAt,
	})
}
