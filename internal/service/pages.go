// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/havenretreats/haven-go/internal/content"
	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/store"
	"github.com/havenretreats/haven-go/internal/util"
)

// Service-level errors mapped to HTTP statuses by the handler layer.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionMismatch = errors.New("version does not belong to this record")
	ErrSlugTaken       = errors.New("slug already in use")
	ErrInvalidSlug     = errors.New("invalid slug")
)

// MaxVersionListLimit caps how much history ListVersions returns.
const MaxVersionListLimit = 50

// Invalidator drops cached published output after a pointer change.
// A nil Invalidator disables cache invalidation.
type Invalidator interface {
	Invalidate(ctx context.Context, key string)
}

// PageService owns the page draft/publish workflow. Saving a draft
// appends an immutable version; publish and rollback are pointer swaps
// and never touch version content.
type PageService struct {
	db      *sql.DB
	queries *store.Queries
	events  *EventService
	cache   Invalidator
	now     func() time.Time
}

// NewPageService creates a PageService. events and cache may be nil.
func NewPageService(db *sql.DB, events *EventService, cache Invalidator) *PageService {
	return &PageService{
		db:      db,
		queries: store.New(db),
		events:  events,
		cache:   cache,
		now:     time.Now,
	}
}

// CreatePage creates a page shell with no versions. An empty slug is
// derived from the title.
func (s *PageService) CreatePage(ctx context.Context, title, slug string, userID int64) (model.Page, error) {
	if slug == "" {
		slug = title
	}
	slug = util.Slugify(slug)
	if !util.IsValidSlug(slug) {
		return model.Page{}, ErrInvalidSlug
	}
	if _, err := s.queries.GetPageBySlug(ctx, slug); err == nil {
		return model.Page{}, ErrSlugTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return model.Page{}, fmt.Errorf("checking slug: %w", err)
	}

	now := s.now()
	page, err := s.queries.CreatePage(ctx, store.CreatePageParams{
		Title:     title,
		Slug:      slug,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return model.Page{}, fmt.Errorf("creating page: %w", err)
	}

	s.logPage(ctx, "page created", page.ID, userID, map[string]any{"slug": slug})
	return page, nil
}

// GetPage fetches a page by id.
func (s *PageService) GetPage(ctx context.Context, id int64) (model.Page, error) {
	page, err := s.queries.GetPageByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Page{}, ErrNotFound
	}
	return page, err
}

// ListPages returns all pages.
func (s *PageService) ListPages(ctx context.Context) ([]model.Page, error) {
	return s.queries.ListPages(ctx)
}

// SaveDraft normalizes the raw document, appends a new version row with
// the next per-page number and repoints the draft pointer, all in one
// transaction. The input is never rejected for content reasons: unknown
// blocks are dropped during normalization. A concurrent save racing on
// the same version number trips the unique constraint; the losing writer
// retries once with a fresh number.
func (s *PageService) SaveDraft(ctx context.Context, pageID int64, rawDocument []byte, notes string, userID int64) (model.PageVersion, error) {
	page, err := s.GetPage(ctx, pageID)
	if err != nil {
		return model.PageVersion{}, err
	}

	doc := content.Parse(rawDocument)
	encoded, err := doc.Encode()
	if err != nil {
		return model.PageVersion{}, fmt.Errorf("encoding document: %w", err)
	}

	version, err := s.appendVersion(ctx, page.ID, encoded, notes, userID)
	if isUniqueViolation(err) {
		version, err = s.appendVersion(ctx, page.ID, encoded, notes, userID)
	}
	if err != nil {
		return model.PageVersion{}, err
	}

	s.logPage(ctx, "draft saved", page.ID, userID, map[string]any{
		"version_id":     version.ID,
		"version_number": version.VersionNumber,
	})
	return version, nil
}

func (s *PageService) appendVersion(ctx context.Context, pageID int64, document, notes string, userID int64) (model.PageVersion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PageVersion{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	qtx := s.queries.WithTx(tx)
	maxNumber, err := qtx.GetMaxPageVersionNumber(ctx, pageID)
	if err != nil {
		return model.PageVersion{}, fmt.Errorf("reading version sequence: %w", err)
	}

	now := s.now()
	version, err := qtx.CreatePageVersion(ctx, store.CreatePageVersionParams{
		PageID:        pageID,
		VersionNumber: maxNumber + 1,
		Document:      document,
		Notes:         notes,
		CreatedBy:     userID,
		CreatedAt:     now,
	})
	if err != nil {
		return model.PageVersion{}, fmt.Errorf("appending version: %w", err)
	}
	if err := qtx.SetPageDraftVersion(ctx, pageID, version.ID, now); err != nil {
		return model.PageVersion{}, fmt.Errorf("updating draft pointer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.PageVersion{}, fmt.Errorf("committing draft: %w", err)
	}
	return version, nil
}

// Publish repoints the published pointer at an existing version of the
// page. The draft pointer is left untouched. Version content is never
// rewritten, which is what makes rollback instant.
func (s *PageService) Publish(ctx context.Context, pageID, versionID int64, userID int64) error {
	page, err := s.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	version, err := s.queries.GetPageVersionByID(ctx, versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading version: %w", err)
	}
	if version.PageID != page.ID {
		return ErrVersionMismatch
	}

	if err := s.queries.SetPagePublishedVersion(ctx, page.ID, version.ID, s.now()); err != nil {
		return fmt.Errorf("updating published pointer: %w", err)
	}

	s.invalidate(ctx, page.Slug)
	s.logPage(ctx, "page published", page.ID, userID, map[string]any{
		"version_id":     version.ID,
		"version_number": version.VersionNumber,
	})
	return nil
}

// PublishDraft publishes the page's current draft. A page with no
// versions yet gets an empty document synthesized as version 1 first.
func (s *PageService) PublishDraft(ctx context.Context, pageID int64, userID int64) error {
	page, err := s.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	if !page.DraftVersionID.Valid {
		encoded, err := content.Empty().Encode()
		if err != nil {
			return fmt.Errorf("encoding empty document: %w", err)
		}
		version, err := s.appendVersion(ctx, page.ID, encoded, "", userID)
		if err != nil {
			return err
		}
		return s.Publish(ctx, page.ID, version.ID, userID)
	}
	return s.Publish(ctx, pageID, page.DraftVersionID.Int64, userID)
}

// Rollback publishes an older version. Intervening versions are neither
// deleted nor renumbered; the caller picks any version id from history.
func (s *PageService) Rollback(ctx context.Context, pageID, versionID int64, userID int64) error {
	return s.Publish(ctx, pageID, versionID, userID)
}

// Unpublish clears the published pointer. Versions remain listable; only
// the public read path goes dark.
func (s *PageService) Unpublish(ctx context.Context, pageID int64, userID int64) error {
	page, err := s.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	if err := s.queries.ClearPagePublishedVersion(ctx, page.ID, s.now()); err != nil {
		return fmt.Errorf("clearing published pointer: %w", err)
	}

	s.invalidate(ctx, page.Slug)
	s.logPage(ctx, "page unpublished", page.ID, userID, nil)
	return nil
}

// ListVersions returns the page's history, newest first, capped.
func (s *PageService) ListVersions(ctx context.Context, pageID int64) ([]model.PageVersion, error) {
	if _, err := s.GetPage(ctx, pageID); err != nil {
		return nil, err
	}
	return s.queries.ListPageVersions(ctx, pageID, MaxVersionListLimit)
}

// GetVersion fetches one version of the page.
func (s *PageService) GetVersion(ctx context.Context, pageID, versionID int64) (model.PageVersion, error) {
	version, err := s.queries.GetPageVersionByID(ctx, versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PageVersion{}, ErrNotFound
	}
	if err != nil {
		return model.PageVersion{}, err
	}
	if version.PageID != pageID {
		return model.PageVersion{}, ErrVersionMismatch
	}
	return version, nil
}

// CreatePreviewToken mints a time-limited share link for one version of
// the page. The plaintext token is returned exactly once; only its
// SHA-256 hash is stored.
func (s *PageService) CreatePreviewToken(ctx context.Context, pageID, versionID int64, lifetime time.Duration, userID int64) (plaintext string, token model.PreviewToken, err error) {
	version, err := s.GetVersion(ctx, pageID, versionID)
	if err != nil {
		return "", model.PreviewToken{}, err
	}

	plaintext, hash, err := model.GeneratePreviewToken()
	if err != nil {
		return "", model.PreviewToken{}, fmt.Errorf("generating token: %w", err)
	}
	if lifetime <= 0 {
		lifetime = model.DefaultPreviewTokenLifetime
	}

	now := s.now()
	token, err = s.queries.CreatePreviewToken(ctx, store.CreatePreviewTokenParams{
		TokenHash: hash,
		PageID:    version.PageID,
		VersionID: version.ID,
		ExpiresAt: now.Add(lifetime),
		CreatedBy: userID,
		CreatedAt: now,
	})
	if err != nil {
		return "", model.PreviewToken{}, fmt.Errorf("storing preview token: %w", err)
	}

	s.logPage(ctx, "preview token created", pageID, userID, map[string]any{
		"version_id": versionID,
		"expires_at": token.ExpiresAt,
	})
	return plaintext, token, nil
}

// ResolvePreview returns the page and version a preview token grants
// access to. Unknown and expired tokens are indistinguishable: both are
// ErrNotFound.
func (s *PageService) ResolvePreview(ctx context.Context, plaintext string) (model.Page, model.PageVersion, error) {
	token, err := s.queries.GetLivePreviewToken(ctx, model.HashPreviewToken(plaintext), s.now())
	if errors.Is(err, sql.ErrNoRows) {
		return model.Page{}, model.PageVersion{}, ErrNotFound
	}
	if err != nil {
		return model.Page{}, model.PageVersion{}, fmt.Errorf("looking up preview token: %w", err)
	}

	page, err := s.GetPage(ctx, token.PageID)
	if err != nil {
		return model.Page{}, model.PageVersion{}, err
	}
	version, err := s.queries.GetPageVersionByID(ctx, token.VersionID)
	if err != nil {
		return model.Page{}, model.PageVersion{}, fmt.Errorf("loading previewed version: %w", err)
	}
	return page, version, nil
}

// ResolvePublished is the public read path: strictly the published
// pointer, never the draft. Pages without a live published version are
// not found.
func (s *PageService) ResolvePublished(ctx context.Context, slug string) (model.Page, model.PageVersion, error) {
	page, err := s.queries.GetPageBySlug(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Page{}, model.PageVersion{}, ErrNotFound
	}
	if err != nil {
		return model.Page{}, model.PageVersion{}, err
	}
	if !page.PublishedVersionID.Valid || page.Status == model.PageStatusArchived {
		return model.Page{}, model.PageVersion{}, ErrNotFound
	}

	version, err := s.queries.GetPageVersionByID(ctx, page.PublishedVersionID.Int64)
	if err != nil {
		return model.Page{}, model.PageVersion{}, fmt.Errorf("loading published version: %w", err)
	}
	return page, version, nil
}

func (s *PageService) invalidate(ctx context.Context, slug string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, "page:"+slug)
	}
}

func (s *PageService) logPage(ctx context.Context, message string, pageID int64, userID int64, metadata map[string]any) {
	if s.events == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["page_id"] = pageID
	_ = s.events.LogPageEvent(ctx, model.EventLevelInfo, message, &userID, "", metadata)
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure, which SaveDraft treats as a losable race worth one retry.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
