// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"testing"
	"time"
)

const testSecret = "test-secret-key-32-bytes-long!!!"

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set %s: %v", key, err)
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	setEnv(t, "HAVEN_SESSION_SECRET", testSecret)
	setEnv(t, "HAVEN_JOBS_SECRET", testSecret)
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "./data/haven.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/haven.db")
	}
	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr() = %q", cfg.ServerAddr())
	}
	if !cfg.IsDevelopment() {
		t.Error("default env should be development")
	}
	if cfg.EmailBatchSize != 10 {
		t.Errorf("EmailBatchSize = %d, want 10", cfg.EmailBatchSize)
	}
	if cfg.EmailBackoffBaseDuration() != time.Minute {
		t.Errorf("backoff base = %v, want 1m", cfg.EmailBackoffBaseDuration())
	}
	if cfg.EmailBackoffCapDuration() != time.Hour {
		t.Errorf("backoff cap = %v, want 1h", cfg.EmailBackoffCapDuration())
	}
	if cfg.MailConfigured() {
		t.Error("mail should not be configured by default")
	}
	if cfg.UseRedisCache() {
		t.Error("redis should not be configured by default")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without required secrets")
	}
}

func TestLoad_ShortSecret(t *testing.T) {
	os.Clearenv()
	setEnv(t, "HAVEN_SESSION_SECRET", "too-short")
	setEnv(t, "HAVEN_JOBS_SECRET", testSecret)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a short session secret")
	}
}

func TestLoad_WeakSecret(t *testing.T) {
	os.Clearenv()
	setEnv(t, "HAVEN_SESSION_SECRET", "change-me-to-32-byte-secret-key!")
	setEnv(t, "HAVEN_JOBS_SECRET", testSecret)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a known weak secret")
	}
}

func TestLoad_InvalidBackoff(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	setEnv(t, "HAVEN_EMAIL_BACKOFF_BASE", "120")
	setEnv(t, "HAVEN_EMAIL_BACKOFF_CAP", "60")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject cap < base")
	}
}

func TestLoad_MailConfigured(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	setEnv(t, "HAVEN_MAIL_API_URL", "https://mail.example/send")
	setEnv(t, "HAVEN_MAIL_API_KEY", "k")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.MailConfigured() {
		t.Error("mail should be configured")
	}
}
