// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/havenretreats/haven-go/internal/imaging"
	"github.com/havenretreats/haven-go/internal/middleware"
	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/store"
)

// maxUploadSize caps image uploads at 10 MB.
const maxUploadSize = 10 << 20

// MediaHandler manages image uploads for page blocks and retreat hero
// images. Files land on local disk under the uploads directory; the
// processor normalizes orientation and emits a thumbnail.
type MediaHandler struct {
	queries   *store.Queries
	processor *imaging.Processor
}

func NewMediaHandler(db *sql.DB, processor *imaging.Processor) *MediaHandler {
	return &MediaHandler{queries: store.New(db), processor: processor}
}

// mediaResponse augments the stored record with public URLs.
type mediaResponse struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	ThumbURL  string    `json:"thumb_url,omitempty"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	Width     int64     `json:"width,omitempty"`
	Height    int64     `json:"height,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *MediaHandler) toResponse(m model.Media) mediaResponse {
	return mediaResponse{
		ID:        m.ID,
		UUID:      m.UUID,
		Filename:  m.Filename,
		URL:       h.processor.PublicURL(m.Path),
		ThumbURL:  h.processor.PublicURL(m.ThumbPath),
		MimeType:  m.MimeType,
		Size:      m.Size,
		Width:     m.Width,
		Height:    m.Height,
		CreatedAt: m.CreatedAt,
	}
}

// Upload accepts a multipart form with a single "file" field.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		WriteBadRequest(w, "upload exceeds the size limit or is not multipart")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteBadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	id := uuid.New().String()
	result, err := h.processor.Process(file, id, header.Filename)
	if err != nil {
		WriteBadRequest(w, "unsupported or corrupt image")
		return
	}

	media, err := h.queries.CreateMedia(r.Context(), store.CreateMediaParams{
		UUID:       id,
		Filename:   header.Filename,
		Path:       result.FilePath,
		ThumbPath:  result.ThumbPath,
		MimeType:   result.MimeType,
		Size:       result.Size,
		Width:      int64(result.Width),
		Height:     int64(result.Height),
		UploaderID: middleware.GetUserID(r),
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		// Orphaned files are removed so disk and DB stay consistent.
		if cleanupErr := h.processor.DeleteFiles(id); cleanupErr != nil {
			slog.Error("cleaning up failed upload", "error", cleanupErr, "uuid", id)
		}
		WriteServiceError(w, err)
		return
	}
	WriteCreated(w, h.toResponse(media))
}

func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 200)
	offset := queryInt(r, "offset", 0, 0, 1<<31)
	items, err := h.queries.ListMedia(r.Context(), limit, offset)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	out := make([]mediaResponse, 0, len(items))
	for _, m := range items {
		out = append(out, h.toResponse(m))
	}
	WriteList(w, out, Meta{Limit: limit, Offset: offset})
}

func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "mediaID")
	if !ok {
		return
	}
	media, err := h.queries.GetMediaByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "media not found")
			return
		}
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, h.toResponse(media))
}

// Delete removes the database record and the files on disk.
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "mediaID")
	if !ok {
		return
	}
	media, err := h.queries.GetMediaByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "media not found")
			return
		}
		WriteServiceError(w, err)
		return
	}
	if err := h.queries.DeleteMedia(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	if err := h.processor.DeleteFiles(media.UUID); err != nil {
		slog.Error("deleting media files", "error", err, "uuid", media.UUID)
	}
	WriteSuccess(w, map[string]bool{"deleted": true})
}
