// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/havenretreats/haven-go/internal/middleware"
	"github.com/havenretreats/haven-go/internal/service"
)

// RetreatHandler serves the admin retreat workflow. Retreats version as
// whole-row snapshots rather than block documents, but the publish
// pointer operations mirror the page workflow.
type RetreatHandler struct {
	svc *service.RetreatService
}

func NewRetreatHandler(svc *service.RetreatService) *RetreatHandler {
	return &RetreatHandler{svc: svc}
}

type retreatRequest struct {
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	Summary      string `json:"summary"`
	Location     string `json:"location"`
	StartDate    string `json:"start_date"` // RFC 3339 date, empty for unset
	EndDate      string `json:"end_date"`
	PriceCents   int64  `json:"price_cents"`
	Capacity     int64  `json:"capacity"`
	HeroImageURL string `json:"hero_image_url"`
	Notes        string `json:"notes"`
}

func (req *retreatRequest) fields(w http.ResponseWriter) (service.RetreatFields, bool) {
	f := service.RetreatFields{
		Title:        req.Title,
		Slug:         req.Slug,
		Summary:      req.Summary,
		Location:     req.Location,
		PriceCents:   req.PriceCents,
		Capacity:     req.Capacity,
		HeroImageURL: req.HeroImageURL,
	}
	details := map[string]string{}
	if req.Title == "" {
		details["title"] = "title is required"
	}
	if req.PriceCents < 0 {
		details["price_cents"] = "price must not be negative"
	}
	if req.Capacity < 0 {
		details["capacity"] = "capacity must not be negative"
	}
	if req.StartDate != "" {
		t, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			details["start_date"] = "expected YYYY-MM-DD"
		} else {
			f.StartDate = &t
		}
	}
	if req.EndDate != "" {
		t, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			details["end_date"] = "expected YYYY-MM-DD"
		} else {
			f.EndDate = &t
		}
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		details["end_date"] = "end date precedes start date"
	}
	if len(details) > 0 {
		WriteValidationError(w, details)
		return service.RetreatFields{}, false
	}
	return f, true
}

func (h *RetreatHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req retreatRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	fields, ok := req.fields(w)
	if !ok {
		return
	}
	retreat, err := h.svc.CreateRetreat(r.Context(), fields, middleware.GetUserID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteCreated(w, retreat)
}

func (h *RetreatHandler) List(w http.ResponseWriter, r *http.Request) {
	retreats, err := h.svc.ListRetreats(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, retreats)
}

func (h *RetreatHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "retreatID")
	if !ok {
		return
	}
	retreat, err := h.svc.GetRetreat(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, retreat)
}

// SaveDraft updates the retreat row and appends a snapshot version.
func (h *RetreatHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "retreatID")
	if !ok {
		return
	}
	var req retreatRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	fields, ok := req.fields(w)
	if !ok {
		return
	}
	version, err := h.svc.SaveDraft(r.Context(), id, fields, req.Notes, middleware.GetUserID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteCreated(w, version)
}

func (h *RetreatHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "retreatID")
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
	retreat, err := h.svc.GetRetreat(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, retreat)
}

func (h *RetreatHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "retreatID")
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
	retreat, err := h.svc.GetRetreat(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, retreat)
}

func (h *RetreatHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "retreatID")
	if !ok {
		return
	}
	if err := h.svc.Unpublish(r.Context(), id, middleware.GetUserID(r)); err != nil {
		WriteServiceError(w, err)
		return
	}
	retreat, err := h.svc.GetRetreat(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, retreat)
}

func (h *RetreatHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "retreatID")
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
