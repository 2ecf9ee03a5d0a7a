// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"

	"github.com/havenretreats/haven-go/internal/auth"
	"github.com/havenretreats/haven-go/internal/middleware"
	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/service"
	"github.com/havenretreats/haven-go/internal/session"
	"github.com/havenretreats/haven-go/internal/store"
)

// AuthHandler serves login, logout and the current-user endpoint.
type AuthHandler struct {
	queries *store.Queries
	sm      *scs.SessionManager
	events  *service.EventService
}

func NewAuthHandler(db *sql.DB, sm *scs.SessionManager, events *service.EventService) *AuthHandler {
	return &AuthHandler{queries: store.New(db), sm: sm, events: events}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an admin user and establishes a session. The
// response never distinguishes an unknown email from a wrong password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		WriteBadRequest(w, "email and password are required")
		return
	}

	user, err := h.queries.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("looking up user for login", "error", err)
		}
		h.logFailedLogin(r, req.Email)
		WriteUnauthorized(w, "invalid credentials")
		return
	}

	ok, err := auth.CheckPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		h.logFailedLogin(r, req.Email)
		WriteUnauthorized(w, "invalid credentials")
		return
	}

	if err := session.SignIn(r.Context(), h.sm, user.ID); err != nil {
		slog.Error("establishing session", "error", err)
		WriteInternalError(w)
		return
	}

	_ = h.events.LogAuthEvent(r.Context(), model.EventLevelInfo, "user logged in",
		&user.ID, clientAddr(r), map[string]any{"email": user.Email})
	WriteSuccess(w, user)
}

// Logout destroys the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := session.UserID(r.Context(), h.sm)
	if err := session.SignOut(r.Context(), h.sm); err != nil {
		slog.Error("destroying session", "error", err)
		WriteInternalError(w)
		return
	}
	if userID != 0 {
		_ = h.events.LogAuthEvent(r.Context(), model.EventLevelInfo, "user logged out",
			&userID, clientAddr(r), nil)
	}
	WriteSuccess(w, map[string]bool{"logged_out": true})
}

// Me returns the authenticated user attached by the middleware chain.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "authentication required")
		return
	}
	WriteSuccess(w, user)
}

func (h *AuthHandler) logFailedLogin(r *http.Request, email string) {
	_ = h.events.LogAuthEvent(r.Context(), model.EventLevelWarning, "failed login attempt",
		nil, clientAddr(r), map[string]any{"email": email})
}
