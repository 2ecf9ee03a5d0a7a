// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/havenretreats/haven-go/internal/model"
)

func heroDocument(heading string) map[string]any {
	return map[string]any{
		"schemaVersion": 1,
		"blocks": []map[string]any{
			{"id": "b1", "type": "hero", "props": map[string]any{"heading": heading}},
		},
	}
}

func TestCreatePageReturnsCreated(t *testing.T) {
	env := newTestEnv(t)
	r := env.adminRouter(env.admin)

	rec := doJSON(t, r, http.MethodPost, "/pages", map[string]any{"title": "About Us"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}
	var page model.Page
	decodeData(t, rec, &page)
	if page.Slug != "about-us" {
		t.Errorf("slug = %q, want about-us", page.Slug)
	}
	if page.Status != "draft" {
		t.Errorf("status = %q, want draft", page.Status)
	}
}

func TestCreatePageDuplicateSlugConflicts(t *testing.T) {
	env := newTestEnv(t)
	r := env.adminRouter(env.admin)

	doJSON(t, r, http.MethodPost, "/pages", map[string]any{"title": "About"})
	rec := doJSON(t, r, http.MethodPost, "/pages", map[string]any{"title": "About"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestCreatePageWithoutTitleFailsValidation(t *testing.T) {
	env := newTestEnv(t)
	r := env.adminRouter(env.admin)

	rec := doJSON(t, r, http.MethodPost, "/pages", map[string]any{"slug": "untitled"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSaveDraftAndPublishFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminRouter(env.admin)
	public := env.publicRouter()

	var page model.Page
	decodeData(t, doJSON(t, admin, http.MethodPost, "/pages", map[string]any{"title": "Home"}), &page)

	// Draft saved but not published: public read is a 404.
	rec := doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/draft", page.ID), map[string]any{
		"document": heroDocument("Welcome"),
		"notes":    "first draft",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("draft status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}
	var version model.PageVersion
	decodeData(t, rec, &version)
	if version.VersionNumber != 1 {
		t.Errorf("version_number = %d, want 1", version.VersionNumber)
	}
	if rec := doJSON(t, public, http.MethodGet, "/pages/home", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("public read before publish = %d, want 404", rec.Code)
	}

	// Publish the draft and read it publicly.
	rec = doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/publish", page.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, public, http.MethodGet, "/pages/home", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("public read after publish = %d, want 200", rec.Code)
	}
	var pub struct {
		Slug     string `json:"slug"`
		Document struct {
			Blocks []struct {
				Type  string         `json:"type"`
				Props map[string]any `json:"props"`
			} `json:"blocks"`
		} `json:"document"`
	}
	decodeData(t, rec, &pub)
	if len(pub.Document.Blocks) != 1 || pub.Document.Blocks[0].Props["heading"] != "Welcome" {
		t.Errorf("unexpected published document: %+v", pub.Document)
	}
}

func TestRollbackEndpoint(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminRouter(env.admin)
	public := env.publicRouter()

	var page model.Page
	decodeData(t, doJSON(t, admin, http.MethodPost, "/pages", map[string]any{"title": "Story"}), &page)

	var v1, v2 model.PageVersion
	decodeData(t, doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/draft", page.ID),
		map[string]any{"document": heroDocument("One")}), &v1)
	decodeData(t, doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/draft", page.ID),
		map[string]any{"document": heroDocument("Two")}), &v2)

	doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/publish", page.ID),
		map[string]any{"version_id": v2.ID})
	rec := doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/rollback", page.ID),
		map[string]any{"version_id": v1.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("rollback status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var pub struct {
		Document struct {
			Blocks []struct {
				Props map[string]any `json:"props"`
			} `json:"blocks"`
		} `json:"document"`
	}
	decodeData(t, doJSON(t, public, http.MethodGet, "/pages/story", nil), &pub)
	if pub.Document.Blocks[0].Props["heading"] != "One" {
		t.Errorf("heading after rollback = %v, want One", pub.Document.Blocks[0].Props["heading"])
	}
}

func TestPublishForeignVersionIsUnprocessable(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminRouter(env.admin)

	var pageA, pageB model.Page
	decodeData(t, doJSON(t, admin, http.MethodPost, "/pages", map[string]any{"title": "A"}), &pageA)
	decodeData(t, doJSON(t, admin, http.MethodPost, "/pages", map[string]any{"title": "B"}), &pageB)

	var versionA model.PageVersion
	decodeData(t, doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/draft", pageA.ID),
		map[string]any{"document": heroDocument("A")}), &versionA)

	rec := doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/publish", pageB.ID),
		map[string]any{"version_id": versionA.ID})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestUnpublishEndpoint(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminRouter(env.admin)
	public := env.publicRouter()

	var page model.Page
	decodeData(t, doJSON(t, admin, http.MethodPost, "/pages", map[string]any{"title": "Gone"}), &page)
	doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/draft", page.ID),
		map[string]any{"document": heroDocument("Visible")})
	doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/publish", page.ID), nil)

	rec := doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/unpublish", page.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unpublish status = %d, want 200", rec.Code)
	}
	if rec := doJSON(t, public, http.MethodGet, "/pages/gone", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("public read after unpublish = %d, want 404", rec.Code)
	}
}

func TestPreviewTokenFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminRouter(env.admin)
	public := env.publicRouter()

	var page model.Page
	decodeData(t, doJSON(t, admin, http.MethodPost, "/pages", map[string]any{"title": "Draft Land"}), &page)
	var v1 model.PageVersion
	decodeData(t, doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/draft", page.ID),
		map[string]any{"document": heroDocument("Pinned")}), &v1)

	rec := doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/preview-tokens", page.ID),
		map[string]any{"version_id": v1.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("preview token status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}
	var token struct {
		Token string `json:"token"`
	}
	decodeData(t, rec, &token)
	if token.Token == "" {
		t.Fatal("expected a plaintext token in the response")
	}

	// The token serves the pinned version even though nothing is published.
	rec = doJSON(t, public, http.MethodGet, "/preview/"+token.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	if rec := doJSON(t, public, http.MethodGet, "/preview/not-a-real-token", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown token status = %d, want 404", rec.Code)
	}
}

func TestVersionListEndpoint(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminRouter(env.admin)

	var page model.Page
	decodeData(t, doJSON(t, admin, http.MethodPost, "/pages", map[string]any{"title": "History"}), &page)
	for i := 0; i < 3; i++ {
		doJSON(t, admin, http.MethodPost, fmt.Sprintf("/pages/%d/draft", page.ID),
			map[string]any{"document": heroDocument(fmt.Sprintf("rev %d", i))})
	}

	var versions []model.PageVersion
	decodeData(t, doJSON(t, admin, http.MethodGet, fmt.Sprintf("/pages/%d/versions", page.ID), nil), &versions)
	if len(versions) != 3 {
		t.Fatalf("len(versions) = %d, want 3", len(versions))
	}
	if versions[0].VersionNumber != 3 {
		t.Errorf("newest version first, got %d", versions[0].VersionNumber)
	}
}
