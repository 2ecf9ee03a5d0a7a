// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the published-content cache: an in-memory
// backend for single-node deployments and a Redis backend for shared
// ones, behind a common interface.
package cache

import (
	"context"
	"time"
)

// Cacher is implemented by all cache backends. Implementations must be
// safe for concurrent use. Values are []byte so memory and Redis
// backends are interchangeable.
type Cacher interface {
	// Get returns the cached value, or ErrCacheMiss when absent or
	// expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. A zero TTL uses the
	// backend's default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries owned by this cache.
	Clear(ctx context.Context) error

	// Close releases any resources held by the cache.
	Close() error
}

// Error is a sentinel cache error.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrCacheMiss indicates the key was not found or has expired.
	ErrCacheMiss Error = "cache miss"

	// ErrCacheClosed indicates the cache has been closed.
	ErrCacheClosed Error = "cache closed"
)

// Stats holds hit/miss counters for a cache backend.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Items   int     `json:"items"`
	HitRate float64 `json:"hit_rate"`
}

// Options configures cache creation.
type Options struct {
	// RedisURL selects the Redis backend when non-empty, for example
	// redis://localhost:6379/0. Empty selects the memory backend.
	RedisURL string

	// Prefix namespaces keys in shared Redis instances.
	Prefix string

	// DefaultTTL applies when Set is called with a zero TTL.
	DefaultTTL time.Duration

	// MaxEntries bounds the memory backend (0 = unlimited).
	MaxEntries int
}

// New creates a cache backend from the options.
func New(opts Options) (Cacher, error) {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.RedisURL != "" {
		return NewRedis(opts)
	}
	return NewMemory(opts), nil
}
