// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/havenretreats/haven-go/internal/mailer"
	"github.com/havenretreats/haven-go/internal/middleware"
	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/queue"
	"github.com/havenretreats/haven-go/internal/service"
	"github.com/havenretreats/haven-go/internal/store"
	"github.com/havenretreats/haven-go/internal/util"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func testUser(t *testing.T, db *sql.DB, role string) model.User {
	t.Helper()
	now := time.Now().UTC()
	user, err := store.New(db).CreateUser(context.Background(), store.CreateUserParams{
		Email:        role + "@haven.test",
		PasswordHash: "unused",
		Role:         role,
		Name:         "Test " + role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return user
}

// asUser injects an authenticated user the way the session middleware
// chain would.
func asUser(user model.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// testEnv bundles the stack a handler test needs.
type testEnv struct {
	db       *sql.DB
	pages    *service.PageService
	retreats *service.RetreatService
	events   *service.EventService
	queue    *queue.Queue
	admin    model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testDB(t)
	events := service.NewEventService(db)
	return &testEnv{
		db:       db,
		pages:    service.NewPageService(db, events, nil),
		retreats: service.NewRetreatService(db, events, nil),
		events:   events,
		queue:    queue.New(db, mailer.NewLogSender(nil), nil, queue.Config{From: "hello@haven.test"}),
		admin:    testUser(t, db, model.RoleAdmin),
	}
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "203.0.113.7:52000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response envelope: %v (body: %s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		t.Fatalf("decoding response data: %v", err)
	}
}

func seedTemplate(t *testing.T, db *sql.DB, key string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := store.New(db).CreateEmailTemplate(context.Background(), store.CreateEmailTemplateParams{
		Key:       key,
		Subject:   "Hello {{name}}",
		HTMLBody:  "<p>Hi {{name}}</p>",
		TextBody:  util.NullString("Hi {{name}}"),
		Status:    model.EmailTemplateStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seeding template: %v", err)
	}
}

// adminRouter mounts the admin page and retreat routes with the given
// user pre-authenticated.
func (env *testEnv) adminRouter(user model.User) chi.Router {
	pageHandler := NewPageHandler(env.pages)
	retreatHandler := NewRetreatHandler(env.retreats)
	r := chi.NewRouter()
	r.Use(asUser(user))
	r.Post("/pages", pageHandler.Create)
	r.Get("/pages", pageHandler.List)
	r.Get("/pages/{pageID}", pageHandler.Get)
	r.Post("/pages/{pageID}/draft", pageHandler.SaveDraft)
	r.Post("/pages/{pageID}/publish", pageHandler.Publish)
	r.Post("/pages/{pageID}/rollback", pageHandler.Rollback)
	r.Post("/pages/{pageID}/unpublish", pageHandler.Unpublish)
	r.Get("/pages/{pageID}/versions", pageHandler.ListVersions)
	r.Post("/pages/{pageID}/preview-tokens", pageHandler.CreatePreview)
	r.Post("/retreats", retreatHandler.Create)
	r.Post("/retreats/{retreatID}/draft", retreatHandler.SaveDraft)
	r.Post("/retreats/{retreatID}/publish", retreatHandler.Publish)
	return r
}

// publicRouter mounts the public content routes.
func (env *testEnv) publicRouter() chi.Router {
	frontend := NewFrontendHandler(env.pages, env.retreats, nil)
	submissions := NewSubmissionHandler(env.db, env.retreats, env.queue, env.events, "owner@haven.test")
	r := chi.NewRouter()
	r.Get("/pages/{slug}", frontend.GetPage)
	r.Get("/preview/{token}", frontend.Preview)
	r.Get("/retreats", frontend.ListRetreats)
	r.Get("/retreats/{slug}", frontend.GetRetreat)
	r.Post("/contact", submissions.Contact)
	r.Post("/retreats/{slug}/book", submissions.Book)
	return r
}
