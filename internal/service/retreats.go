// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/store"
	"github.com/havenretreats/haven-go/internal/util"
)

// RetreatFields is the editable field set for a retreat. Saving a draft
// writes these onto the retreat row and snapshots them into an immutable
// version row.
type RetreatFields struct {
	Title        string
	Slug         string
	Summary      string
	Location     string
	StartDate    *time.Time
	EndDate      *time.Time
	PriceCents   int64
	Capacity     int64
	HeroImageURL string
}

// RetreatService mirrors the page workflow over denormalized retreat
// rows: the row carries the current field values, retreat_versions
// carries full-field snapshots, and publish is a pointer swap.
type RetreatService struct {
	db      *sql.DB
	queries *store.Queries
	events  *EventService
	cache   Invalidator
	now     func() time.Time
}

// NewRetreatService creates a RetreatService. events and cache may be nil.
func NewRetreatService(db *sql.DB, events *EventService, cache Invalidator) *RetreatService {
	return &RetreatService{
		db:      db,
		queries: store.New(db),
		events:  events,
		cache:   cache,
		now:     time.Now,
	}
}

// CreateRetreat creates a retreat with its initial field values and no
// versions yet. An empty slug is derived from the title.
func (s *RetreatService) CreateRetreat(ctx context.Context, fields RetreatFields, userID int64) (model.Retreat, error) {
	if fields.Slug == "" {
		fields.Slug = fields.Title
	}
	fields.Slug = util.Slugify(fields.Slug)
	if !util.IsValidSlug(fields.Slug) {
		return model.Retreat{}, ErrInvalidSlug
	}
	if _, err := s.queries.GetRetreatBySlug(ctx, fields.Slug); err == nil {
		return model.Retreat{}, ErrSlugTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return model.Retreat{}, fmt.Errorf("checking slug: %w", err)
	}

	now := s.now()
	retreat, err := s.queries.CreateRetreat(ctx, store.CreateRetreatParams{
		Title:        fields.Title,
		Slug:         fields.Slug,
		Summary:      fields.Summary,
		Location:     fields.Location,
		StartDate:    nullTimeFromPtr(fields.StartDate),
		EndDate:      nullTimeFromPtr(fields.EndDate),
		PriceCents:   fields.PriceCents,
		Capacity:     fields.Capacity,
		HeroImageURL: fields.HeroImageURL,
		CreatedBy:    userID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return model.Retreat{}, fmt.Errorf("creating retreat: %w", err)
	}

	s.logRetreat(ctx, "retreat created", retreat.ID, userID, map[string]any{"slug": retreat.Slug})
	return retreat, nil
}

// GetRetreat fetches a retreat by id.
func (s *RetreatService) GetRetreat(ctx context.Context, id int64) (model.Retreat, error) {
	retreat, err := s.queries.GetRetreatByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Retreat{}, ErrNotFound
	}
	return retreat, err
}

// ListRetreats returns all retreats.
func (s *RetreatService) ListRetreats(ctx context.Context) ([]model.Retreat, error) {
	return s.queries.ListRetreats(ctx)
}

// SaveDraft writes the new field values onto the retreat row, appends a
// full-field snapshot as the next version and repoints the draft
// pointer, all in one transaction. An empty slug keeps the current one.
// Racing saves retry once on the version number constraint.
func (s *RetreatService) SaveDraft(ctx context.Context, retreatID int64, fields RetreatFields, notes string, userID int64) (model.RetreatVersion, error) {
	retreat, err := s.GetRetreat(ctx, retreatID)
	if err != nil {
		return model.RetreatVersion{}, err
	}

	if fields.Slug == "" {
		fields.Slug = retreat.Slug
	}
	fields.Slug = util.Slugify(fields.Slug)
	if !util.IsValidSlug(fields.Slug) {
		return model.RetreatVersion{}, ErrInvalidSlug
	}
	if fields.Slug != retreat.Slug {
		if _, err := s.queries.GetRetreatBySlug(ctx, fields.Slug); err == nil {
			return model.RetreatVersion{}, ErrSlugTaken
		} else if !errors.Is(err, sql.ErrNoRows) {
			return model.RetreatVersion{}, fmt.Errorf("checking slug: %w", err)
		}
	}

	version, err := s.saveSnapshot(ctx, retreat.ID, fields, notes, userID)
	if isUniqueViolation(err) {
		version, err = s.saveSnapshot(ctx, retreat.ID, fields, notes, userID)
	}
	if err != nil {
		return model.RetreatVersion{}, err
	}

	s.logRetreat(ctx, "draft saved", retreat.ID, userID, map[string]any{
		"version_id":     version.ID,
		"version_number": version.VersionNumber,
	})
	return version, nil
}

func (s *RetreatService) saveSnapshot(ctx context.Context, retreatID int64, fields RetreatFields, notes string, userID int64) (model.RetreatVersion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.RetreatVersion{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	qtx := s.queries.WithTx(tx)
	now := s.now()

	if err := qtx.UpdateRetreatFields(ctx, store.UpdateRetreatFieldsParams{
		Title:        fields.Title,
		Slug:         fields.Slug,
		Summary:      fields.Summary,
		Location:     fields.Location,
		StartDate:    nullTimeFromPtr(fields.StartDate),
		EndDate:      nullTimeFromPtr(fields.EndDate),
		PriceCents:   fields.PriceCents,
		Capacity:     fields.Capacity,
		HeroImageURL: fields.HeroImageURL,
		UpdatedAt:    now,
		ID:           retreatID,
	}); err != nil {
		return model.RetreatVersion{}, fmt.Errorf("updating retreat fields: %w", err)
	}

	updated, err := qtx.GetRetreatByID(ctx, retreatID)
	if err != nil {
		return model.RetreatVersion{}, fmt.Errorf("reloading retreat: %w", err)
	}
	snapshot, err := updated.SnapshotJSON()
	if err != nil {
		return model.RetreatVersion{}, fmt.Errorf("encoding snapshot: %w", err)
	}

	maxNumber, err := qtx.GetMaxRetreatVersionNumber(ctx, retreatID)
	if err != nil {
		return model.RetreatVersion{}, fmt.Errorf("reading version sequence: %w", err)
	}

	version, err := qtx.CreateRetreatVersion(ctx, store.CreateRetreatVersionParams{
		RetreatID:     retreatID,
		VersionNumber: maxNumber + 1,
		Snapshot:      snapshot,
		Notes:         notes,
		CreatedBy:     userID,
		CreatedAt:     now,
	})
	if err != nil {
		return model.RetreatVersion{}, fmt.Errorf("appending version: %w", err)
	}
	if err := qtx.SetRetreatDraftVersion(ctx, retreatID, version.ID, now); err != nil {
		return model.RetreatVersion{}, fmt.Errorf("updating draft pointer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.RetreatVersion{}, fmt.Errorf("committing draft: %w", err)
	}
	return version, nil
}

// Publish repoints the published pointer at an existing version of the
// retreat.
func (s *RetreatService) Publish(ctx context.Context, retreatID, versionID int64, userID int64) error {
	retreat, err := s.GetRetreat(ctx, retreatID)
	if err != nil {
		return err
	}
	version, err := s.queries.GetRetreatVersionByID(ctx, versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading version: %w", err)
	}
	if version.RetreatID != retreat.ID {
		return ErrVersionMismatch
	}

	if err := s.queries.SetRetreatPublishedVersion(ctx, retreat.ID, version.ID, s.now()); err != nil {
		return fmt.Errorf("updating published pointer: %w", err)
	}

	s.invalidate(ctx, retreat.Slug)
	s.logRetreat(ctx, "retreat published", retreat.ID, userID, map[string]any{
		"version_id":     version.ID,
		"version_number": version.VersionNumber,
	})
	return nil
}

// PublishDraft publishes the current draft. A retreat with no versions
// yet has one synthesized from the current row state first.
func (s *RetreatService) PublishDraft(ctx context.Context, retreatID int64, userID int64) error {
	retreat, err := s.GetRetreat(ctx, retreatID)
	if err != nil {
		return err
	}
	if !retreat.DraftVersionID.Valid {
		snapshot, err := retreat.SnapshotJSON()
		if err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}
		version, err := s.appendExistingSnapshot(ctx, retreat.ID, snapshot, userID)
		if err != nil {
			return err
		}
		return s.Publish(ctx, retreat.ID, version.ID, userID)
	}
	return s.Publish(ctx, retreatID, retreat.DraftVersionID.Int64, userID)
}

// appendExistingSnapshot writes a version row from an already-encoded
// snapshot without touching the retreat's field values.
func (s *RetreatService) appendExistingSnapshot(ctx context.Context, retreatID int64, snapshot string, userID int64) (model.RetreatVersion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.RetreatVersion{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	qtx := s.queries.WithTx(tx)
	maxNumber, err := qtx.GetMaxRetreatVersionNumber(ctx, retreatID)
	if err != nil {
		return model.RetreatVersion{}, fmt.Errorf("reading version sequence: %w", err)
	}

	now := s.now()
	version, err := qtx.CreateRetreatVersion(ctx, store.CreateRetreatVersionParams{
		RetreatID:     retreatID,
		VersionNumber: maxNumber + 1,
		Snapshot:      snapshot,
		Notes:         "",
		CreatedBy:     userID,
		CreatedAt:     now,
	})
	if err != nil {
		return model.RetreatVersion{}, fmt.Errorf("appending version: %w", err)
	}
	if err := qtx.SetRetreatDraftVersion(ctx, retreatID, version.ID, now); err != nil {
		return model.RetreatVersion{}, fmt.Errorf("updating draft pointer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.RetreatVersion{}, fmt.Errorf("committing version: %w", err)
	}
	return version, nil
}

// Rollback publishes an older snapshot.
func (s *RetreatService) Rollback(ctx context.Context, retreatID, versionID int64, userID int64) error {
	return s.Publish(ctx, retreatID, versionID, userID)
}

// Unpublish clears the published pointer, removing the retreat from the
// public read path while keeping all history.
func (s *RetreatService) Unpublish(ctx context.Context, retreatID int64, userID int64) error {
	retreat, err := s.GetRetreat(ctx, retreatID)
	if err != nil {
		return err
	}
	if err := s.queries.ClearRetreatPublishedVersion(ctx, retreat.ID, s.now()); err != nil {
		return fmt.Errorf("clearing published pointer: %w", err)
	}

	s.invalidate(ctx, retreat.Slug)
	s.logRetreat(ctx, "retreat unpublished", retreat.ID, userID, nil)
	return nil
}

// ListVersions returns the retreat's history, newest first, capped.
func (s *RetreatService) ListVersions(ctx context.Context, retreatID int64) ([]model.RetreatVersion, error) {
	if _, err := s.GetRetreat(ctx, retreatID); err != nil {
		return nil, err
	}
	return s.queries.ListRetreatVersions(ctx, retreatID, MaxVersionListLimit)
}

// ResolvePublished is the public read path for a retreat: the published
// snapshot only, never the live row values.
func (s *RetreatService) ResolvePublished(ctx context.Context, slug string) (model.Retreat, model.RetreatSnapshot, error) {
	retreat, err := s.queries.GetRetreatBySlug(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Retreat{}, model.RetreatSnapshot{}, ErrNotFound
	}
	if err != nil {
		return model.Retreat{}, model.RetreatSnapshot{}, err
	}
	if !retreat.PublishedVersionID.Valid {
		return model.Retreat{}, model.RetreatSnapshot{}, ErrNotFound
	}

	version, err := s.queries.GetRetreatVersionByID(ctx, retreat.PublishedVersionID.Int64)
	if err != nil {
		return model.Retreat{}, model.RetreatSnapshot{}, fmt.Errorf("loading published snapshot: %w", err)
	}

	var snapshot model.RetreatSnapshot
	if err := json.Unmarshal([]byte(version.Snapshot), &snapshot); err != nil {
		return model.Retreat{}, model.RetreatSnapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return retreat, snapshot, nil
}

// ListPublishedRetreats returns the published snapshot of every retreat
// that has one, for public listing surfaces.
func (s *RetreatService) ListPublishedRetreats(ctx context.Context) ([]model.RetreatSnapshot, error) {
	retreats, err := s.queries.ListRetreats(ctx)
	if err != nil {
		return nil, err
	}

	var snapshots []model.RetreatSnapshot
	for _, r := range retreats {
		if !r.PublishedVersionID.Valid {
			continue
		}
		version, err := s.queries.GetRetreatVersionByID(ctx, r.PublishedVersionID.Int64)
		if err != nil {
			return nil, fmt.Errorf("loading snapshot for retreat %d: %w", r.ID, err)
		}
		var snapshot model.RetreatSnapshot
		if err := json.Unmarshal([]byte(version.Snapshot), &snapshot); err != nil {
			return nil, fmt.Errorf("decoding snapshot for retreat %d: %w", r.ID, err)
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func (s *RetreatService) invalidate(ctx context.Context, slug string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, "retreat:"+slug)
		s.cache.Invalidate(ctx, "retreats:index")
	}
}

func (s *RetreatService) logRetreat(ctx context.Context, message string, retreatID int64, userID int64, metadata map[string]any) {
	if s.events == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["retreat_id"] = retreatID
	_ = s.events.LogRetreatEvent(ctx, model.EventLevelInfo, message, &userID, "", metadata)
}

func nullTimeFromPtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
