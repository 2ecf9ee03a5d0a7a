// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/havenretreats/haven-go/internal/auth"
	"github.com/havenretreats/haven-go/internal/middleware"
	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/service"
	"github.com/havenretreats/haven-go/internal/store"
)

// minPasswordLength guards against trivially guessable passwords.
const minPasswordLength = 10

// UserHandler manages admin backend accounts. All routes require the
// admin role.
type UserHandler struct {
	queries *store.Queries
	events  *service.EventService
}

func NewUserHandler(db *sql.DB, events *service.EventService) *UserHandler {
	return &UserHandler{queries: store.New(db), events: events}
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

func validRole(role string) bool {
	return role == model.RoleAdmin || role == model.RoleEditor
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	details := map[string]string{}
	if !isValidEmail(req.Email) {
		details["email"] = "a valid email is required"
	}
	if len(req.Password) < minPasswordLength {
		details["password"] = "password is too short"
	}
	if !validRole(req.Role) {
		details["role"] = "role must be admin or editor"
	}
	if len(details) > 0 {
		WriteValidationError(w, details)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	now := time.Now().UTC()
	user, err := h.queries.CreateUser(r.Context(), store.CreateUserParams{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		Name:         req.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			WriteConflict(w, "email is already in use")
			return
		}
		WriteServiceError(w, err)
		return
	}
	actorID := middleware.GetUserID(r)
	_ = h.events.LogEvent(r.Context(), model.EventLevelInfo, model.EventCategoryUser,
		"user created", &actorID, clientAddr(r), map[string]any{"user_id": user.ID, "role": user.Role})
	WriteCreated(w, user)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.queries.ListUsers(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	user, err := h.queries.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "user not found")
			return
		}
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, user)
}

type updateUserRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req updateUserRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	details := map[string]string{}
	if !isValidEmail(req.Email) {
		details["email"] = "a valid email is required"
	}
	if !validRole(req.Role) {
		details["role"] = "role must be admin or editor"
	}
	if len(details) > 0 {
		WriteValidationError(w, details)
		return
	}
	if _, err := h.queries.GetUserByID(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "user not found")
			return
		}
		WriteServiceError(w, err)
		return
	}
	err := h.queries.UpdateUser(r.Context(), store.UpdateUserParams{
		ID:        id,
		Email:     req.Email,
		Role:      req.Role,
		Name:      req.Name,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			WriteConflict(w, "email is already in use")
			return
		}
		WriteServiceError(w, err)
		return
	}
	user, err := h.queries.GetUserByID(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, user)
}

type updatePasswordRequest struct {
	Password string `json:"password"`
}

func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req updatePasswordRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if len(req.Password) < minPasswordLength {
		WriteValidationError(w, map[string]string{"password": "password is too short"})
		return
	}
	if _, err := h.queries.GetUserByID(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "user not found")
			return
		}
		WriteServiceError(w, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if err := h.queries.UpdateUserPassword(r.Context(), id, hash, time.Now().UTC()); err != nil {
		WriteServiceError(w, err)
		return
	}
	actorID := middleware.GetUserID(r)
	_ = h.events.LogEvent(r.Context(), model.EventLevelInfo, model.EventCategoryUser,
		"user password changed", &actorID, clientAddr(r), map[string]any{"user_id": id})
	WriteSuccess(w, map[string]bool{"updated": true})
}

// Delete removes a user. Self-deletion is rejected so an admin cannot
// lock themselves out mid-session.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if id == middleware.GetUserID(r) {
		WriteBadRequest(w, "cannot delete your own account")
		return
	}
	if _, err := h.queries.GetUserByID(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "user not found")
			return
		}
		WriteServiceError(w, err)
		return
	}
	if err := h.queries.DeleteUser(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	actorID := middleware.GetUserID(r)
	_ = h.events.LogEvent(r.Context(), model.EventLevelInfo, model.EventCategoryUser,
		"user deleted", &actorID, clientAddr(r), map[string]any{"user_id": id})
	WriteSuccess(w, map[string]bool{"deleted": true})
}
