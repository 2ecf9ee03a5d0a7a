// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	c := NewMemory(Options{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemorySetGet(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()

	if err := c.Set(ctx, "page:home", []byte("body"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "page:home")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "body" {
		t.Errorf("Get = %q, want body", got)
	}
}

func TestMemoryMiss(t *testing.T) {
	c := newTestMemory(t)

	_, err := c.Get(context.Background(), "absent")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get absent = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get expired = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryDelete(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after delete = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryReturnsCopy(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("abc"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	first, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	first[0] = 'X'

	second, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(second) != "abc" {
		t.Errorf("cached value mutated through a returned slice: %q", second)
	}
}

func TestMemoryClosed(t *testing.T) {
	c := NewMemory(Options{DefaultTTL: time.Minute})
	_ = c.Close()

	if _, err := c.Get(context.Background(), "k"); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Get after close = %v, want ErrCacheClosed", err)
	}
	if err := c.Set(context.Background(), "k", nil, 0); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Set after close = %v, want ErrCacheClosed", err)
	}
}

func TestContentCacheInvalidate(t *testing.T) {
	c := NewContentCache(newTestMemory(t), time.Minute)
	ctx := context.Background()

	c.Set(ctx, "page:home", []byte(`{"title":"Home"}`))
	if _, err := c.Get(ctx, "page:home"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	c.Invalidate(ctx, "page:home")
	if _, err := c.Get(ctx, "page:home"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after invalidate = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryStats(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), 0)
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "absent")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 1 set", stats)
	}
}
