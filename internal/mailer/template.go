// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package mailer

import (
	"html"
	"regexp"

	"github.com/havenretreats/haven-go/internal/model"
)

// placeholderRe matches {{variable_name}} tokens, with optional inner
// whitespace.
var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderText substitutes placeholders into a plain-text or subject
// template. Values are inserted verbatim; missing variables render as
// the empty string, never as an error or a literal token.
func RenderText(tpl string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		return vars[name]
	})
}

// RenderHTML substitutes placeholders into an HTML template,
// HTML-escaping every value. The surrounding template markup is trusted
// editor content and passes through untouched.
func RenderHTML(tpl string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		return html.EscapeString(vars[name])
	})
}

// RenderedEmail is the output of template rendering, ready to hand to a
// Sender.
type RenderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

// RenderTemplate renders an email template with the given variables.
// Subjects and text bodies are never HTML-escaped; HTML bodies always
// are.
func RenderTemplate(t model.EmailTemplate, vars map[string]string) RenderedEmail {
	out := RenderedEmail{
		Subject: RenderText(t.Subject, vars),
		HTML:    RenderHTML(t.HTMLBody, vars),
	}
	if t.TextBody.Valid {
		out.Text = RenderText(t.TextBody.String, vars)
	}
	return out
}
