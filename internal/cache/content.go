// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"time"
)

// ContentCache caches rendered published-content responses keyed by
// record type and slug. Publish and unpublish invalidate the affected
// key so public readers never see stale pointers past one swap.
type ContentCache struct {
	backend Cacher
	ttl     time.Duration
}

// NewContentCache wraps a backend for published-content use.
func NewContentCache(backend Cacher, ttl time.Duration) *ContentCache {
	return &ContentCache{backend: backend, ttl: ttl}
}

// Get returns a cached response body, or ErrCacheMiss.
func (c *ContentCache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.backend.Get(ctx, key)
}

// Set stores a response body under the content TTL.
func (c *ContentCache) Set(ctx context.Context, key string, body []byte) {
	// Best effort: a failed cache write only costs the next reader a
	// database round trip.
	_ = c.backend.Set(ctx, key, body, c.ttl)
}

// Invalidate drops one key after a pointer change.
func (c *ContentCache) Invalidate(ctx context.Context, key string) {
	_ = c.backend.Delete(ctx, key)
}

// Close closes the underlying backend.
func (c *ContentCache) Close() error {
	return c.backend.Close()
}
