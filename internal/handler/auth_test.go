// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/havenretreats/haven-go/internal/auth"
	"github.com/havenretreats/haven-go/internal/middleware"
	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/session"
	"github.com/havenretreats/haven-go/internal/store"
)

func newAuthStack(t *testing.T) (*testEnv, chi.Router) {
	t.Helper()
	env := newTestEnv(t)
	sm := session.New(env.db, true)
	h := NewAuthHandler(env.db, sm, env.events)

	r := chi.NewRouter()
	r.Use(sm.LoadAndSave)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(sm))
		r.Use(middleware.LoadUser(sm, env.db))
		r.Get("/me", h.Me)
	})
	return env, r
}

func seedLoginUser(t *testing.T, env *testEnv, email, password string) model.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	now := time.Now().UTC()
	user, err := store.New(env.db).CreateUser(context.Background(), store.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleEditor,
		Name:         "Login User",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("creating login user: %v", err)
	}
	return user
}

func postLogin(t *testing.T, r chi.Router, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.RemoteAddr = "203.0.113.7:52000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLoginSetsSessionCookie(t *testing.T) {
	env, r := newAuthStack(t)
	seedLoginUser(t, env, "pat@haven.test", "sufficiently-long-pass")

	rec := postLogin(t, r, "pat@haven.test", "sufficiently-long-pass")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	// The session cookie authenticates /me.
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	me := httptest.NewRecorder()
	r.ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Fatalf("me status = %d, want 200 (body: %s)", me.Code, me.Body.String())
	}
	var user model.User
	decodeData(t, me, &user)
	if user.Email != "pat@haven.test" {
		t.Errorf("me email = %q, want pat@haven.test", user.Email)
	}
	if user.PasswordHash != "" {
		t.Error("password hash must never serialize")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env, r := newAuthStack(t)
	seedLoginUser(t, env, "pat@haven.test", "sufficiently-long-pass")

	rec := postLogin(t, r, "pat@haven.test", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLoginUnknownEmailMatchesWrongPassword(t *testing.T) {
	env, r := newAuthStack(t)
	seedLoginUser(t, env, "pat@haven.test", "sufficiently-long-pass")

	unknown := postLogin(t, r, "nobody@haven.test", "whatever")
	wrong := postLogin(t, r, "pat@haven.test", "wrong")
	if unknown.Code != wrong.Code {
		t.Errorf("unknown email status %d differs from wrong password status %d", unknown.Code, wrong.Code)
	}
	// Same error body, so responses don't reveal which accounts exist.
	if unknown.Body.String() != wrong.Body.String() {
		t.Error("error bodies should not distinguish unknown email from wrong password")
	}
}

func TestMeWithoutSession(t *testing.T) {
	_, r := newAuthStack(t)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestFailedLoginIsAudited(t *testing.T) {
	env, r := newAuthStack(t)
	seedLoginUser(t, env, "pat@haven.test", "sufficiently-long-pass")
	postLogin(t, r, "pat@haven.test", "wrong")

	events, err := store.New(env.db).ListEvents(context.Background(), store.ListEventsParams{
		Category: model.EventCategoryAuth,
		Level:    model.EventLevelWarning,
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("listing events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected a warning audit event for the failed login")
	}
}
