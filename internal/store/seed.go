// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/havenretreats/haven-go/internal/auth"
	"github.com/havenretreats/haven-go/internal/model"
)

// Default admin credentials
const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "changeme"
	DefaultAdminName     = "Administrator"
)

// defaultTemplates are created on first boot so the email queue has
// something to render before anyone touches the template editor.
var defaultTemplates = []struct {
	key     string
	subject string
	html    string
	text    string
}{
	{
		key:     model.EmailJobContactNotification,
		subject: "New contact inquiry from {{name}}",
		html:    "<p><strong>{{name}}</strong> ({{email}}) wrote:</p><p>{{message}}</p>",
		text:    "{{name}} ({{email}}) wrote:\n\n{{message}}",
	},
	{
		key:     model.EmailJobContactConfirmation,
		subject: "We received your message",
		html:    "<p>Hi {{name}},</p><p>Thanks for reaching out. We'll reply within two business days.</p>",
		text:    "Hi {{name}},\n\nThanks for reaching out. We'll reply within two business days.",
	},
	{
		key:     model.EmailJobBookingNotification,
		subject: "New booking inquiry: {{retreat_title}}",
		html:    "<p><strong>{{name}}</strong> ({{email}}) asked about <strong>{{retreat_title}}</strong>.</p><p>{{message}}</p>",
		text:    "{{name}} ({{email}}) asked about {{retreat_title}}.\n\n{{message}}",
	},
	{
		key:     model.EmailJobBookingConfirmation,
		subject: "Your inquiry about {{retreat_title}}",
		html:    "<p>Hi {{name}},</p><p>We received your inquiry about <strong>{{retreat_title}}</strong> and will be in touch shortly.</p>",
		text:    "Hi {{name}},\n\nWe received your inquiry about {{retreat_title}} and will be in touch shortly.",
	},
}

// Seed creates initial data: the default admin account and the stock
// email templates. It is idempotent and safe to run on every boot.
func Seed(ctx context.Context, db *sql.DB) error {
	queries := New(db)
	now := time.Now()

	if err := seedAdmin(ctx, queries, now); err != nil {
		return err
	}
	return seedTemplates(ctx, queries, now)
}

func seedAdmin(ctx context.Context, queries *Queries, now time.Time) error {
	_, err := queries.GetUserByEmail(ctx, DefaultAdminEmail)
	if err == nil {
		slog.Info("admin user already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for admin user: %w", err)
	}

	passwordHash, err := auth.HashPassword(DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user, err := queries.CreateUser(ctx, CreateUserParams{
		Email:        DefaultAdminEmail,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
		Name:         DefaultAdminName,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created default admin user",
		"id", user.ID,
		"email", user.Email,
		"password", DefaultAdminPassword,
	)
	return nil
}

func seedTemplates(ctx context.Context, queries *Queries, now time.Time) error {
	for _, t := range defaultTemplates {
		_, err := queries.GetActiveEmailTemplateByKey(ctx, t.key)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking for template %s: %w", t.key, err)
		}

		_, err = queries.CreateEmailTemplate(ctx, CreateEmailTemplateParams{
			Key:       t.key,
			Subject:   t.subject,
			HTMLBody:  t.html,
			TextBody:  sql.NullString{String: t.text, Valid: true},
			Status:    model.EmailTemplateStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("creating template %s: %w", t.key, err)
		}
		slog.Info("created default email template", "key", t.key)
	}
	return nil
}
