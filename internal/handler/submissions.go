// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/queue"
	"github.com/havenretreats/haven-go/internal/service"
	"github.com/havenretreats/haven-go/internal/store"
	"github.com/havenretreats/haven-go/internal/util"
)

// SubmissionHandler captures contact and booking inquiries from the
// public site and serves the admin inbox. Each accepted submission
// enqueues a notification to the site owner and a confirmation to the
// visitor; delivery failures never surface to the visitor because the
// queue owns retries.
type SubmissionHandler struct {
	queries  *store.Queries
	retreats *service.RetreatService
	queue    *queue.Queue
	events   *service.EventService

	// notifyTo receives owner notifications for new submissions.
	notifyTo string
}

func NewSubmissionHandler(db *sql.DB, retreats *service.RetreatService, q *queue.Queue, events *service.EventService, notifyTo string) *SubmissionHandler {
	return &SubmissionHandler{
		queries:  store.New(db),
		retreats: retreats,
		queue:    q,
		events:   events,
		notifyTo: notifyTo,
	}
}

type submissionRequest struct {
	Name    string            `json:"name"`
	Email   string            `json:"email"`
	Phone   string            `json:"phone"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data"`
}

func (req *submissionRequest) validate(w http.ResponseWriter) bool {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	details := map[string]string{}
	if req.Name == "" {
		details["name"] = "name is required"
	}
	if !isValidEmail(req.Email) {
		details["email"] = "a valid email is required"
	}
	if len(req.Message) > 10000 {
		details["message"] = "message is too long"
	}
	if len(details) > 0 {
		WriteValidationError(w, details)
		return false
	}
	return true
}

func (req *submissionRequest) dataJSON() string {
	if len(req.Data) == 0 {
		return "{}"
	}
	b, err := json.Marshal(req.Data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Contact handles the public contact form.
func (h *SubmissionHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if !req.validate(w) {
		return
	}

	sub, err := h.queries.CreateSubmission(r.Context(), store.CreateSubmissionParams{
		Kind:      model.SubmissionKindContact,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Message:   req.Message,
		Data:      req.dataJSON(),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	h.enqueueEmails(r, sub, model.EmailJobContactNotification, model.EmailJobContactConfirmation, map[string]string{
		"name":    sub.Name,
		"email":   sub.Email,
		"message": sub.Message,
	})
	_ = h.events.LogFormEvent(r.Context(), model.EventLevelInfo, "contact submission received",
		nil, clientAddr(r), map[string]any{"submission_id": sub.ID})
	WriteCreated(w, map[string]any{"id": sub.ID})
}

// Book handles a booking inquiry for a published retreat, addressed by
// slug. Inquiries against unpublished or unknown retreats 404.
func (h *SubmissionHandler) Book(w http.ResponseWriter, r *http.Request) {
	slug := urlSlug(r, "slug")
	retreat, snapshot, err := h.retreats.ResolvePublished(r.Context(), slug)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	var req submissionRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if !req.validate(w) {
		return
	}

	sub, err := h.queries.CreateSubmission(r.Context(), store.CreateSubmissionParams{
		Kind:      model.SubmissionKindBooking,
		RetreatID: util.NullInt64(&retreat.ID),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Message:   req.Message,
		Data:      req.dataJSON(),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	h.enqueueEmails(r, sub, model.EmailJobBookingNotification, model.EmailJobBookingConfirmation, map[string]string{
		"name":          sub.Name,
		"email":         sub.Email,
		"message":       sub.Message,
		"retreat_title": snapshot.Title,
		"retreat_dates": formatDateRange(snapshot.StartDate, snapshot.EndDate),
	})
	_ = h.events.LogFormEvent(r.Context(), model.EventLevelInfo, "booking inquiry received",
		nil, clientAddr(r), map[string]any{"submission_id": sub.ID, "retreat_id": retreat.ID})
	WriteCreated(w, map[string]any{"id": sub.ID})
}

// enqueueEmails queues the owner notification and visitor confirmation
// for a stored submission. Enqueue failures are logged and swallowed;
// the submission is already durable.
func (h *SubmissionHandler) enqueueEmails(r *http.Request, sub model.Submission, notifyType, confirmType string, vars map[string]string) {
	ctx := r.Context()
	if h.notifyTo != "" {
		_, err := h.queue.Enqueue(ctx, notifyType, model.EmailPayload{
			To:           h.notifyTo,
			ReplyTo:      sub.Email,
			TemplateKind: notifyType,
			TemplateVars: vars,
		}, time.Time{})
		if err != nil {
			slog.Error("enqueueing notification email", "error", err, "submission_id", sub.ID)
		}
	}
	_, err := h.queue.Enqueue(ctx, confirmType, model.EmailPayload{
		To:           sub.Email,
		TemplateKind: confirmType,
		TemplateVars: vars,
	}, time.Time{})
	if err != nil {
		slog.Error("enqueueing confirmation email", "error", err, "submission_id", sub.ID)
	}
}

// List serves the admin inbox, filterable by status.
func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 200)
	offset := queryInt(r, "offset", 0, 0, 1<<31)
	subs, err := h.queries.ListSubmissions(r.Context(), store.ListSubmissionsParams{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteList(w, subs, Meta{Limit: limit, Offset: offset})
}

// Get returns one submission and marks it read on first view.
func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "submissionID")
	if !ok {
		return
	}
	sub, err := h.queries.GetSubmissionByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "submission not found")
			return
		}
		WriteServiceError(w, err)
		return
	}
	if sub.IsUnread() {
		if err := h.queries.UpdateSubmissionStatus(r.Context(), id, model.SubmissionStatusRead); err != nil {
			slog.Error("marking submission read", "error", err, "submission_id", id)
		} else {
			sub.Status = model.SubmissionStatusRead
		}
	}
	WriteSuccess(w, sub)
}

type submissionStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves a submission between new, read and archived.
func (h *SubmissionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "submissionID")
	if !ok {
		return
	}
	var req submissionStatusRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	switch req.Status {
	case model.SubmissionStatusNew, model.SubmissionStatusRead, model.SubmissionStatusArchived:
	default:
		WriteValidationError(w, map[string]string{"status": "status must be new, read or archived"})
		return
	}
	if _, err := h.queries.GetSubmissionByID(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "submission not found")
			return
		}
		WriteServiceError(w, err)
		return
	}
	if err := h.queries.UpdateSubmissionStatus(r.Context(), id, req.Status); err != nil {
		WriteServiceError(w, err)
		return
	}
	sub, err := h.queries.GetSubmissionByID(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, sub)
}

// UnreadCount powers the inbox badge.
func (h *SubmissionHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.queries.CountUnreadSubmissions(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, map[string]int64{"unread": count})
}

// formatDateRange renders snapshot dates for email templates.
func formatDateRange(start, end string) string {
	switch {
	case start == "" && end == "":
		return ""
	case end == "":
		return start
	case start == "":
		return end
	default:
		return start + " to " + end
	}
}
