// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/havenretreats/haven-go/internal/cache"
	"github.com/havenretreats/haven-go/internal/service"
)

// cachedStack builds page/retreat services and a frontend handler that
// share one content cache, mirroring the production wiring.
func cachedStack(t *testing.T, env *testEnv) (*service.PageService, chi.Router) {
	t.Helper()
	backend, err := cache.New(cache.Options{DefaultTTL: time.Minute})
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	cc := cache.NewContentCache(backend, time.Minute)
	t.Cleanup(func() { _ = cc.Close() })

	pages := service.NewPageService(env.db, env.events, cc)
	retreats := service.NewRetreatService(env.db, env.events, cc)
	frontend := NewFrontendHandler(pages, retreats, cc)
	r := chi.NewRouter()
	r.Get("/pages/{slug}", frontend.GetPage)
	r.Get("/retreats", frontend.ListRetreats)
	r.Get("/retreats/{slug}", frontend.GetRetreat)
	return pages, r
}

func TestPublishedPageIsCached(t *testing.T) {
	env := newTestEnv(t)
	pages, public := cachedStack(t, env)
	ctx := context.Background()

	page, err := pages.CreatePage(ctx, "Cached", "", env.admin.ID)
	if err != nil {
		t.Fatalf("creating page: %v", err)
	}
	doc := `{"schemaVersion":1,"blocks":[{"id":"b1","type":"hero","props":{"heading":"Hi"}}]}`
	if _, err := pages.SaveDraft(ctx, page.ID, []byte(doc), "", env.admin.ID); err != nil {
		t.Fatalf("saving draft: %v", err)
	}
	if err := pages.PublishDraft(ctx, page.ID, env.admin.ID); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	first := doJSON(t, public, http.MethodGet, "/pages/cached", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first read = %d, want 200", first.Code)
	}
	if first.Header().Get("X-Cache") == "hit" {
		t.Error("first read should miss the cache")
	}

	second := doJSON(t, public, http.MethodGet, "/pages/cached", nil)
	if second.Code != http.StatusOK {
		t.Fatalf("second read = %d, want 200", second.Code)
	}
	if second.Header().Get("X-Cache") != "hit" {
		t.Error("second read should hit the cache")
	}
	if first.Body.String() != second.Body.String() {
		t.Error("cached body differs from rendered body")
	}
}

func TestUnpublishInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	pages, public := cachedStack(t, env)
	ctx := context.Background()

	page, err := pages.CreatePage(ctx, "Fleeting", "", env.admin.ID)
	if err != nil {
		t.Fatalf("creating page: %v", err)
	}
	if err := pages.PublishDraft(ctx, page.ID, env.admin.ID); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	if rec := doJSON(t, public, http.MethodGet, "/pages/fleeting", nil); rec.Code != http.StatusOK {
		t.Fatalf("read while published = %d, want 200", rec.Code)
	}

	if err := pages.Unpublish(ctx, page.ID, env.admin.ID); err != nil {
		t.Fatalf("unpublishing: %v", err)
	}
	if rec := doJSON(t, public, http.MethodGet, "/pages/fleeting", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("read after unpublish = %d, want 404 (cache should be invalidated)", rec.Code)
	}
}

func TestRichTextMarkdownIsRendered(t *testing.T) {
	env := newTestEnv(t)
	public := env.publicRouter()
	ctx := context.Background()

	page, err := env.pages.CreatePage(ctx, "Notes", "", env.admin.ID)
	if err != nil {
		t.Fatalf("creating page: %v", err)
	}
	doc := `{"schemaVersion":1,"blocks":[{"id":"b1","type":"rich_text","props":{"markdown":"# Welcome\n\nCome *rest* with us."}}]}`
	if _, err := env.pages.SaveDraft(ctx, page.ID, []byte(doc), "", env.admin.ID); err != nil {
		t.Fatalf("saving draft: %v", err)
	}
	if err := env.pages.PublishDraft(ctx, page.ID, env.admin.ID); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	rec := doJSON(t, public, http.MethodGet, "/pages/notes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Welcome") || !strings.Contains(body, "<em>") {
		t.Errorf("expected rendered HTML in response, got: %s", body)
	}
	if strings.Contains(body, "markdown") {
		t.Error("raw markdown prop leaked into the public response")
	}
}

func TestPublishedRetreatListing(t *testing.T) {
	env := newTestEnv(t)
	publishRetreat(t, env)
	_, public := cachedStack(t, env)

	rec := doJSON(t, public, http.MethodGet, "/retreats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var listing []publicRetreat
	decodeData(t, rec, &listing)
	if len(listing) != 1 || listing[0].Slug != "spring-reset" {
		t.Fatalf("listing = %+v, want one spring-reset entry", listing)
	}
	if listing[0].PriceCents != 129900 {
		t.Errorf("price_cents = %d, want snapshot value 129900", listing[0].PriceCents)
	}

	rec = doJSON(t, public, http.MethodGet, "/retreats/spring-reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detail status = %d, want 200", rec.Code)
	}
	var detail publicRetreat
	decodeData(t, rec, &detail)
	if detail.Title != "Spring Reset" {
		t.Errorf("title = %q, want Spring Reset", detail.Title)
	}

	if rec := doJSON(t, public, http.MethodGet, "/retreats/nope", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown retreat = %d, want 404", rec.Code)
	}
}
