// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/havenretreats/haven-go/internal/content"
	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/store"
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

func testUser(t *testing.T, db *sql.DB) model.User {
	t.Helper()
	now := time.Now().UTC()
	user, err := store.New(db).CreateUser(context.Background(), store.CreateUserParams{
		Email:        "editor@haven.test",
		PasswordHash: "unused",
		Role:         model.RoleAdmin,
		Name:         "Test Editor",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return user
}

func heroDocument(heading string) []byte {
	return []byte(`{
		"schemaVersion": 1,
		"blocks": [
			{"id": "b1", "type": "hero", "props": {"heading": "` + heading + `"}}
		]
	}`)
}

func TestSaveDraftMonotonicVersions(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewPageService(db, nil, nil)
	ctx := context.Background()

	page, err := svc.CreatePage(ctx, "About", "about", user.ID)
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}

	for i := int64(1); i <= 3; i++ {
		v, err := svc.SaveDraft(ctx, page.ID, heroDocument("Draft"), "", user.ID)
		if err != nil {
			t.Fatalf("SaveDraft %d: %v", i, err)
		}
		if v.VersionNumber != i {
			t.Errorf("version number = %d, want %d", v.VersionNumber, i)
		}
	}

	got, err := svc.GetPage(ctx, page.ID)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if !got.DraftVersionID.Valid {
		t.Fatal("draft pointer not set")
	}
	if got.Status != model.PageStatusDraft {
		t.Errorf("status = %q, want draft", got.Status)
	}

	versions, err := svc.ListVersions(ctx, page.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("got %d versions, want 3", len(versions))
	}
	// Newest first.
	for i, v := range versions {
		if want := int64(3 - i); v.VersionNumber != want {
			t.Errorf("versions[%d].VersionNumber = %d, want %d", i, v.VersionNumber, want)
		}
	}
}

func TestPublishWorkflowEndToEnd(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewPageService(db, nil, nil)
	ctx := context.Background()

	page, err := svc.CreatePage(ctx, "Home", "home", user.ID)
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}

	v1, err := svc.SaveDraft(ctx, page.ID, heroDocument("Welcome"), "", user.ID)
	if err != nil {
		t.Fatalf("SaveDraft v1: %v", err)
	}

	// Nothing published yet.
	if _, _, err := svc.ResolvePublished(ctx, "home"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ResolvePublished before publish = %v, want ErrNotFound", err)
	}

	if err := svc.Publish(ctx, page.ID, v1.ID, user.ID); err != nil {
		t.Fatalf("Publish v1: %v", err)
	}

	_, published, err := svc.ResolvePublished(ctx, "home")
	if err != nil {
		t.Fatalf("ResolvePublished: %v", err)
	}
	if !strings.Contains(published.Document, "Welcome") {
		t.Errorf("published document = %s, want the v1 hero heading", published.Document)
	}

	// A newer draft never leaks into the public read path.
	if _, err := svc.SaveDraft(ctx, page.ID, heroDocument("Welcome back"), "", user.ID); err != nil {
		t.Fatalf("SaveDraft v2: %v", err)
	}
	_, published, err = svc.ResolvePublished(ctx, "home")
	if err != nil {
		t.Fatalf("ResolvePublished after v2 draft: %v", err)
	}
	if strings.Contains(published.Document, "Welcome back") {
		t.Error("draft content leaked into the published read path")
	}
}

func TestRollbackRoundTrip(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewPageService(db, nil, nil)
	ctx := context.Background()

	page, err := svc.CreatePage(ctx, "Retreats", "retreats", user.ID)
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}

	v1, err := svc.SaveDraft(ctx, page.ID, heroDocument("First"), "", user.ID)
	if err != nil {
		t.Fatalf("SaveDraft v1: %v", err)
	}
	v2, err := svc.SaveDraft(ctx, page.ID, heroDocument("Second"), "", user.ID)
	if err != nil {
		t.Fatalf("SaveDraft v2: %v", err)
	}

	if err := svc.Publish(ctx, page.ID, v2.ID, user.ID); err != nil {
		t.Fatalf("Publish v2: %v", err)
	}
	if err := svc.Rollback(ctx, page.ID, v1.ID, user.ID); err != nil {
		t.Fatalf("Rollback to v1: %v", err)
	}

	_, published, err := svc.ResolvePublished(ctx, "retreats")
	if err != nil {
		t.Fatalf("ResolvePublished: %v", err)
	}
	if !strings.Contains(published.Document, "First") {
		t.Errorf("published document = %s, want v1 content after rollback", published.Document)
	}

	// Drafting again does not change what is published.
	if _, err := svc.SaveDraft(ctx, page.ID, heroDocument("Third"), "", user.ID); err != nil {
		t.Fatalf("SaveDraft v3: %v", err)
	}
	_, published, err = svc.ResolvePublished(ctx, "retreats")
	if err != nil {
		t.Fatalf("ResolvePublished after v3: %v", err)
	}
	if !strings.Contains(published.Document, "First") {
		t.Error("rollback target changed after a later draft save")
	}

	// History keeps every version, newest first.
	versions, err := svc.ListVersions(ctx, page.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 3 {
		t.Errorf("got %d versions, want 3", len(versions))
	}
}

func TestUnpublishHidesContent(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewPageService(db, nil, nil)
	ctx := context.Background()

	page, err := svc.CreatePage(ctx, "Contact", "contact", user.ID)
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	v1, err := svc.SaveDraft(ctx, page.ID, heroDocument("Reach us"), "", user.ID)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if err := svc.Publish(ctx, page.ID, v1.ID, user.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := svc.Unpublish(ctx, page.ID, user.ID); err != nil {
		t.Fatalf("Unpublish: %v", err)
	}

	if _, _, err := svc.ResolvePublished(ctx, "contact"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ResolvePublished after unpublish = %v, want ErrNotFound", err)
	}

	versions, err := svc.ListVersions(ctx, page.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 {
		t.Errorf("got %d versions, want 1; unpublish must not delete history", len(versions))
	}
}

func TestPublishRejectsForeignVersion(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewPageService(db, nil, nil)
	ctx := context.Background()

	pageA, err := svc.CreatePage(ctx, "A", "page-a", user.ID)
	if err != nil {
		t.Fatalf("CreatePage A: %v", err)
	}
	pageB, err := svc.CreatePage(ctx, "B", "page-b", user.ID)
	if err != nil {
		t.Fatalf("CreatePage B: %v", err)
	}
	vA, err := svc.SaveDraft(ctx, pageA.ID, heroDocument("A"), "", user.ID)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	if err := svc.Publish(ctx, pageB.ID, vA.ID, user.ID); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("Publish with foreign version = %v, want ErrVersionMismatch", err)
	}
}

func TestPublishDraftSynthesizesFirstVersion(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewPageService(db, nil, nil)
	ctx := context.Background()

	page, err := svc.CreatePage(ctx, "FAQ", "faq", user.ID)
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if err := svc.PublishDraft(ctx, page.ID, user.ID); err != nil {
		t.Fatalf("PublishDraft: %v", err)
	}

	_, published, err := svc.ResolvePublished(ctx, "faq")
	if err != nil {
		t.Fatalf("ResolvePublished: %v", err)
	}
	if published.VersionNumber != 1 {
		t.Errorf("synthesized version number = %d, want 1", published.VersionNumber)
	}
	doc := content.ParseString(published.Document)
	if len(doc.Blocks) != 0 {
		t.Errorf("synthesized document has %d blocks, want 0", len(doc.Blocks))
	}
}

func TestPreviewTokenResolvesExactVersion(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewPageService(db, nil, nil)
	ctx := context.Background()

	page, err := svc.CreatePage(ctx, "Story", "story", user.ID)
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	v1, err := svc.SaveDraft(ctx, page.ID, heroDocument("Old"), "", user.ID)
	if err != nil {
		t.Fatalf("SaveDraft v1: %v", err)
	}
	if _, err := svc.SaveDraft(ctx, page.ID, heroDocument("New"), "", user.ID); err != nil {
		t.Fatalf("SaveDraft v2: %v", err)
	}

	plaintext, token, err := svc.CreatePreviewToken(ctx, page.ID, v1.ID, 0, user.ID)
	if err != nil {
		t.Fatalf("CreatePreviewToken: %v", err)
	}
	if plaintext == "" {
		t.Fatal("empty token plaintext")
	}
	if token.TokenHash == plaintext {
		t.Fatal("plaintext stored instead of hash")
	}

	_, version, err := svc.ResolvePreview(ctx, plaintext)
	if err != nil {
		t.Fatalf("ResolvePreview: %v", err)
	}
	if version.ID != v1.ID {
		t.Errorf("preview resolved version %d, want the pinned v1 id %d", version.ID, v1.ID)
	}
	if !strings.Contains(version.Document, "Old") {
		t.Error("preview returned content of a different version")
	}
}

func TestExpiredPreviewTokenIsNotFound(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewPageService(db, nil, nil)
	ctx := context.Background()

	page, err := svc.CreatePage(ctx, "Hidden", "hidden", user.ID)
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	v1, err := svc.SaveDraft(ctx, page.ID, heroDocument("Secret"), "", user.ID)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	plaintext, _, err := svc.CreatePreviewToken(ctx, page.ID, v1.ID, time.Minute, user.ID)
	if err != nil {
		t.Fatalf("CreatePreviewToken: %v", err)
	}

	// Jump past expiry.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, _, err = svc.ResolvePreview(ctx, plaintext)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expired token = %v, want ErrNotFound", err)
	}

	// Unknown tokens produce the identical error.
	_, _, unknownErr := svc.ResolvePreview(ctx, "deadbeef")
	if !errors.Is(unknownErr, ErrNotFound) {
		t.Errorf("unknown token = %v, want ErrNotFound", unknownErr)
	}
}

func TestConcurrentSaveDraftNumbersStayUnique(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewPageService(db, nil, nil)
	ctx := context.Background()

	page, err := svc.CreatePage(ctx, "Busy Page", "busy-page", user.ID)
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var numbers []int64
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := svc.SaveDraft(ctx, page.ID, heroDocument("race"), "", user.ID)
			if err != nil {
				// A losing writer may surface a lock error; it must
				// never come back with a duplicate number.
				return
			}
			mu.Lock()
			numbers = append(numbers, v.VersionNumber)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(numbers) == 0 {
		t.Fatal("no concurrent save succeeded")
	}
	seen := make(map[int64]bool)
	for _, n := range numbers {
		if seen[n] {
			t.Fatalf("duplicate version number %d returned to callers", n)
		}
		seen[n] = true
	}

	versions, err := svc.ListVersions(ctx, page.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	stored := make(map[int64]bool)
	for _, v := range versions {
		if stored[v.VersionNumber] {
			t.Fatalf("duplicate version number %d in the log", v.VersionNumber)
		}
		stored[v.VersionNumber] = true
	}
}

func TestCreatePageDerivesSlugFromTitle(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewPageService(db, nil, nil)

	page, err := svc.CreatePage(context.Background(), "About Us", "", user.ID)
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if page.Slug != "about-us" {
		t.Errorf("slug = %q, want about-us", page.Slug)
	}
}

func TestCreatePageRejectsDuplicateSlug(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewPageService(db, nil, nil)
	ctx := context.Background()

	if _, err := svc.CreatePage(ctx, "One", "duplicate", user.ID); err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if _, err := svc.CreatePage(ctx, "Two", "duplicate", user.ID); !errors.Is(err, ErrSlugTaken) {
		t.Errorf("duplicate slug = %v, want ErrSlugTaken", err)
	}
}
