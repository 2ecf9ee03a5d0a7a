// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// MinSecretLength is the minimum required length for secrets used as
// session and CSRF keys. AES-256 requires 32 bytes.
const MinSecretLength = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"HAVEN_DB_PATH" envDefault:"./data/haven.db"`
	SessionSecret string `env:"HAVEN_SESSION_SECRET,required"`
	ServerHost    string `env:"HAVEN_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"HAVEN_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"HAVEN_ENV" envDefault:"development"`
	LogLevel      string `env:"HAVEN_LOG_LEVEL" envDefault:"info"`
	UploadsDir    string `env:"HAVEN_UPLOADS_DIR" envDefault:"./uploads"`
	PublicBaseURL string `env:"HAVEN_PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// Mail provider configuration
	MailAPIURL  string `env:"HAVEN_MAIL_API_URL"`  // Transactional mail API endpoint
	MailAPIKey  string `env:"HAVEN_MAIL_API_KEY"`  // Bearer key for the mail API
	MailFrom    string `env:"HAVEN_MAIL_FROM" envDefault:"hello@havenretreats.example"`
	MailReplyTo string `env:"HAVEN_MAIL_REPLY_TO"`

	// Email queue configuration. Backoff values are seconds.
	JobsSecret       string `env:"HAVEN_JOBS_SECRET,required"` // Shared secret for the job trigger endpoint
	EmailBatchSize   int    `env:"HAVEN_EMAIL_BATCH_SIZE" envDefault:"10"`
	EmailBackoffBase int    `env:"HAVEN_EMAIL_BACKOFF_BASE" envDefault:"60"`
	EmailBackoffCap  int    `env:"HAVEN_EMAIL_BACKOFF_CAP" envDefault:"3600"`
	EmailMaxAttempts int    `env:"HAVEN_EMAIL_MAX_ATTEMPTS" envDefault:"5"`

	// Cache configuration
	RedisURL     string `env:"HAVEN_REDIS_URL"`                       // Optional Redis URL for distributed caching
	CachePrefix  string `env:"HAVEN_CACHE_PREFIX" envDefault:"haven:"`
	CacheTTL     int    `env:"HAVEN_CACHE_TTL" envDefault:"300"`      // Published-content cache TTL in seconds
	CacheMaxSize int    `env:"HAVEN_CACHE_MAX_SIZE" envDefault:"1000"`

	// Seeding configuration
	DoSeed bool `env:"HAVEN_DO_SEED" envDefault:"true"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// MailConfigured returns true if the mail provider is configured. When it
// is not, the queue worker logs sends instead of delivering them.
func (c Config) MailConfigured() bool {
	return c.MailAPIURL != "" && c.MailAPIKey != ""
}

// EmailBackoffBaseDuration returns the configured backoff base.
func (c Config) EmailBackoffBaseDuration() time.Duration {
	return time.Duration(c.EmailBackoffBase) * time.Second
}

// EmailBackoffCapDuration returns the configured backoff ceiling.
func (c Config) EmailBackoffCapDuration() time.Duration {
	return time.Duration(c.EmailBackoffCap) * time.Second
}

// CacheTTLDuration returns the published-content cache TTL.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validateSecret("HAVEN_SESSION_SECRET", cfg.SessionSecret); err != nil {
		return nil, err
	}
	if err := validateSecret("HAVEN_JOBS_SECRET", cfg.JobsSecret); err != nil {
		return nil, err
	}

	if cfg.EmailBatchSize <= 0 {
		return nil, fmt.Errorf("HAVEN_EMAIL_BATCH_SIZE must be positive, got %d", cfg.EmailBatchSize)
	}
	if cfg.EmailBackoffBase <= 0 || cfg.EmailBackoffCap < cfg.EmailBackoffBase {
		return nil, fmt.Errorf("invalid backoff configuration: base=%ds cap=%ds",
			cfg.EmailBackoffBase, cfg.EmailBackoffCap)
	}

	return cfg, nil
}

// validateSecret enforces length and rejects known defaults.
func validateSecret(name, value string) error {
	if len(value) < MinSecretLength {
		return fmt.Errorf("%s must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			name, MinSecretLength, len(value))
	}

	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known default value and must not be used; "+
				"generate a secure secret with: openssl rand -base64 32", name)
		}
	}

	if !hasMinimumEntropy(value) {
		slog.Warn(name + " has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
