// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Supported upload MIME types.
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
)

// IsSupportedMimeType reports whether uploads of this type are accepted.
func IsSupportedMimeType(mimeType string) bool {
	switch mimeType {
	case MimeTypeJPEG, MimeTypePNG, MimeTypeGIF, MimeTypeWebP:
		return true
	default:
		return false
	}
}

// Media represents an uploaded file stored on local disk and referenced
// from page blocks and retreat records by public URL.
type Media struct {
	ID         int64     `json:"id"`
	UUID       string    `json:"uuid"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	ThumbPath  string    `json:"thumb_path,omitempty"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	Width      int64     `json:"width,omitempty"`
	Height     int64     `json:"height,omitempty"`
	UploaderID int64     `json:"uploader_id"`
	CreatedAt  time.Time `json:"created_at"`
}
