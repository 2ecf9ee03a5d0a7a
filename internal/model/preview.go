// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DefaultPreviewTokenLifetime is how long a preview link stays valid.
const DefaultPreviewTokenLifetime = 24 * time.Hour

// PreviewToken grants time-limited read access to exactly one page
// version. Only the SHA-256 hash of the bearer token is stored; the
// plaintext is returned once at creation and cannot be recovered.
type PreviewToken struct {
	ID        int64     `json:"id"`
	TokenHash string    `json:"-"`
	PageID    int64     `json:"page_id"`
	VersionID int64     `json:"version_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the token is past its expiry at the given time.
func (t *PreviewToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// GeneratePreviewToken returns a new random token plaintext and its hash.
func GeneratePreviewToken() (plaintext, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plaintext = hex.EncodeToString(buf)
	return plaintext, HashPreviewToken(plaintext), nil
}

// HashPreviewToken returns the hex-encoded SHA-256 hash of a token
// plaintext, the only form ever persisted.
func HashPreviewToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
