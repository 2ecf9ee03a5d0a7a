// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"bytes"

	"github.com/yuin/goldmark"
)

// Render prepares a document for public delivery. Rich text blocks may
// carry a "markdown" prop instead of pre-rendered HTML; Render converts
// it to sanitized HTML so clients never see raw markdown. Blocks that
// already carry HTML pass through unchanged.
func Render(d Document) Document {
	for i := range d.Blocks {
		b := &d.Blocks[i]
		if b.Type != BlockRichText || b.Props == nil {
			continue
		}
		md, ok := b.Props["markdown"].(string)
		if !ok || md == "" {
			continue
		}
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(md), &buf); err != nil {
			continue
		}
		b.Props["html"] = htmlPolicy.Sanitize(buf.String())
		delete(b.Props, "markdown")
	}
	return d
}
