// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/havenretreats/haven-go/internal/model"
)

const emailTemplateColumns = "id, key, subject, html_body, text_body, status, created_at, updated_at"

func scanEmailTemplate(row *sql.Row) (model.EmailTemplate, error) {
	var t model.EmailTemplate
	err := row.Scan(&t.ID, &t.Key, &t.Subject, &t.HTMLBody, &t.TextBody, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateEmailTemplateParams holds the fields for creating a template.
type CreateEmailTemplateParams struct {
	Key       string
	Subject   string
	HTMLBody  string
	TextBody  sql.NullString
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateEmailTemplate inserts a new email template.
func (q *Queries) CreateEmailTemplate(ctx context.Context, arg CreateEmailTemplateParams) (model.EmailTemplate, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO email_templates (key, subject, html_body, text_body, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+emailTemplateColumns,
		arg.Key, arg.Subject, arg.HTMLBody, arg.TextBody, arg.Status, arg.CreatedAt, arg.UpdatedAt)
	return scanEmailTemplate(row)
}

// GetEmailTemplateByID fetches a template by primary key.
func (q *Queries) GetEmailTemplateByID(ctx context.Context, id int64) (model.EmailTemplate, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+emailTemplateColumns+` FROM email_templates WHERE id = ?`, id)
	return scanEmailTemplate(row)
}

// GetActiveEmailTemplateByKey fetches an active template by its stable
// key. Inactive templates are invisible to the send path.
func (q *Queries) GetActiveEmailTemplateByKey(ctx context.Context, key string) (model.EmailTemplate, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+emailTemplateColumns+` FROM email_templates
		WHERE key = ? AND status = 'active'`, key)
	return scanEmailTemplate(row)
}

// ListEmailTemplates returns all templates ordered by key.
func (q *Queries) ListEmailTemplates(ctx context.Context) ([]model.EmailTemplate, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+emailTemplateColumns+` FROM email_templates ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []model.EmailTemplate
	for rows.Next() {
		var t model.EmailTemplate
		if err := rows.Scan(&t.ID, &t.Key, &t.Subject, &t.HTMLBody, &t.TextBody, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// UpdateEmailTemplateParams holds the mutable template fields.
type UpdateEmailTemplateParams struct {
	Subject   string
	HTMLBody  string
	TextBody  sql.NullString
	Status    string
	UpdatedAt time.Time
	ID        int64
}

// UpdateEmailTemplate updates a template's content and status. The key is
// stable and never changes once jobs reference it.
func (q *Queries) UpdateEmailTemplate(ctx context.Context, arg UpdateEmailTemplateParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE email_templates SET subject = ?, html_body = ?, text_body = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		arg.Subject, arg.HTMLBody, arg.TextBody, arg.Status, arg.UpdatedAt, arg.ID)
	return err
}

// DeleteEmailTemplate removes a template.
func (q *Queries) DeleteEmailTemplate(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM email_templates WHERE id = ?`, id)
	return err
}
