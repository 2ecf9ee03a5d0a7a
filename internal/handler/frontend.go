// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/havenretreats/haven-go/internal/cache"
	"github.com/havenretreats/haven-go/internal/content"
	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/service"
)

// FrontendHandler serves the public read API consumed by the marketing
// site. Published pages and retreats are cached as fully rendered JSON
// bodies; the services invalidate the cache on every publish pointer
// move, so a stale entry can only outlive a publish by the TTL.
type FrontendHandler struct {
	pages    *service.PageService
	retreats *service.RetreatService
	cache    *cache.ContentCache
}

func NewFrontendHandler(pages *service.PageService, retreats *service.RetreatService, cc *cache.ContentCache) *FrontendHandler {
	return &FrontendHandler{pages: pages, retreats: retreats, cache: cc}
}

// publicPage is the delivery shape for a published page.
type publicPage struct {
	Slug     string           `json:"slug"`
	Title    string           `json:"title"`
	Document content.Document `json:"document"`
}

// publicRetreat is the delivery shape for a published retreat.
type publicRetreat struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Location string `json:"location"`
	// RFC 3339 dates, empty when unset
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	PriceCents   int64  `json:"price_cents"`
	Capacity     int64  `json:"capacity"`
	HeroImageURL string `json:"hero_image_url,omitempty"`
}

func toPublicRetreat(s model.RetreatSnapshot) publicRetreat {
	return publicRetreat{
		Slug:         s.Slug,
		Title:        s.Title,
		Summary:      s.Summary,
		Location:     s.Location,
		StartDate:    s.StartDate,
		EndDate:      s.EndDate,
		PriceCents:   s.PriceCents,
		Capacity:     s.Capacity,
		HeroImageURL: s.HeroImageURL,
	}
}

// GetPage serves the published version of a page by slug. Drafts saved
// after the publish are invisible here.
func (h *FrontendHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	slug := urlSlug(r, "slug")
	key := "page:" + slug
	if h.serveCached(w, r.Context(), key) {
		return
	}

	page, version, err := h.pages.ResolvePublished(r.Context(), slug)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	doc := content.Render(content.ParseString(version.Document))
	body := Response{Data: publicPage{Slug: page.Slug, Title: page.Title, Document: doc}}
	h.writeAndCache(w, r.Context(), key, body)
}

// Preview serves the exact version a preview token is pinned to,
// bypassing the published pointer and the cache. Expired and unknown
// tokens are indistinguishable.
func (h *FrontendHandler) Preview(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	page, version, err := h.pages.ResolvePreview(r.Context(), token)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	doc := content.Render(content.ParseString(version.Document))
	WriteSuccess(w, publicPage{Slug: page.Slug, Title: page.Title, Document: doc})
}

// ListRetreats serves the published retreat snapshots for listings.
func (h *FrontendHandler) ListRetreats(w http.ResponseWriter, r *http.Request) {
	key := "retreats:index"
	if h.serveCached(w, r.Context(), key) {
		return
	}
	snapshots, err := h.retreats.ListPublishedRetreats(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	out := make([]publicRetreat, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, toPublicRetreat(s))
	}
	h.writeAndCache(w, r.Context(), key, Response{Data: out})
}

// GetRetreat serves one published retreat by slug.
func (h *FrontendHandler) GetRetreat(w http.ResponseWriter, r *http.Request) {
	slug := urlSlug(r, "slug")
	key := "retreat:" + slug
	if h.serveCached(w, r.Context(), key) {
		return
	}
	_, snapshot, err := h.retreats.ResolvePublished(r.Context(), slug)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	h.writeAndCache(w, r.Context(), key, Response{Data: toPublicRetreat(snapshot)})
}

func (h *FrontendHandler) serveCached(w http.ResponseWriter, ctx context.Context, key string) bool {
	if h.cache == nil {
		return false
	}
	body, err := h.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Cache", "hit")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Error("writing cached response", "error", err)
	}
	return true
}

func (h *FrontendHandler) writeAndCache(w http.ResponseWriter, ctx context.Context, key string, body Response) {
	encoded, err := json.Marshal(body)
	if err != nil {
		slog.Error("encoding public response", "error", err)
		WriteInternalError(w)
		return
	}
	if h.cache != nil {
		h.cache.Set(ctx, key, encoded)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(encoded); err != nil {
		slog.Error("writing public response", "error", err)
	}
}
