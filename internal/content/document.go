// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content implements the block-based page document format used by
// the visual page builder. Parsing is lenient by contract: any input
// normalizes to some valid document, with malformed or unknown nodes
// dropped rather than rejected.
package content

import (
	"encoding/json"

	"github.com/microcosm-cc/bluemonday"
)

// SchemaVersion is the only document schema this build understands.
// Documents carrying any other version normalize to the empty document.
const SchemaVersion = 1

// Block types form a closed set; nodes with any other type are dropped
// during parse.
const (
	BlockHero           = "hero"
	BlockRichText       = "rich_text"
	BlockImage          = "image"
	BlockImageTextSplit = "image_text_split"
	BlockQuote          = "quote"
	BlockStatsRow       = "stats_row"
	BlockFAQList        = "faq_list"
	BlockRetreatCards   = "retreat_cards"
	BlockCTABanner      = "cta_banner"
	BlockFormEmbed      = "form_embed"
)

// Style value sets
const (
	BackgroundDefault = "default"
	BackgroundAlt     = "alt"
	BackgroundDark    = "dark"
)

var knownBlockTypes = map[string]bool{
	BlockHero:           true,
	BlockRichText:       true,
	BlockImage:          true,
	BlockImageTextSplit: true,
	BlockQuote:          true,
	BlockStatsRow:       true,
	BlockFAQList:        true,
	BlockRetreatCards:   true,
	BlockCTABanner:      true,
	BlockFormEmbed:      true,
}

var knownBackgrounds = map[string]bool{
	BackgroundDefault: true,
	BackgroundAlt:     true,
	BackgroundDark:    true,
}

var knownSpacings = map[string]bool{
	"s": true,
	"m": true,
	"l": true,
}

// htmlPolicy sanitizes editor-supplied HTML inside rich_text props.
var htmlPolicy = bluemonday.UGCPolicy()

// Style holds optional presentation hints for a block. Unknown values are
// cleared during parse and fall back to the renderer's defaults.
type Style struct {
	Background    string `json:"background,omitempty"`
	SpacingTop    string `json:"spacingTop,omitempty"`
	SpacingBottom string `json:"spacingBottom,omitempty"`
}

// IsZero reports whether the style carries no hints at all.
func (s Style) IsZero() bool {
	return s.Background == "" && s.SpacingTop == "" && s.SpacingBottom == ""
}

// Block is a typed, self-contained content unit within a page document.
// The ID is an opaque editor-assigned string, unique within the document.
type Block struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"`
	Props map[string]any `json:"props"`
	Style *Style         `json:"style,omitempty"`
}

// Document is a versioned content tree for one page.
type Document struct {
	SchemaVersion int     `json:"schemaVersion"`
	Blocks        []Block `json:"blocks"`
}

// Empty returns the default document every unparseable input falls back to.
func Empty() Document {
	return Document{SchemaVersion: SchemaVersion, Blocks: []Block{}}
}

// Parse decodes and normalizes a page document. It never fails: null,
// non-object, or wrong-schema input yields the empty document, and
// individual malformed or unknown blocks are dropped while the rest of
// the document survives.
func Parse(data []byte) Document {
	if len(data) == 0 {
		return Empty()
	}

	var raw struct {
		SchemaVersion int               `json:"schemaVersion"`
		Blocks        []json.RawMessage `json:"blocks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Empty()
	}
	if raw.SchemaVersion != SchemaVersion {
		return Empty()
	}

	doc := Empty()
	seen := make(map[string]bool, len(raw.Blocks))
	for _, rb := range raw.Blocks {
		block, ok := parseBlock(rb)
		if !ok || seen[block.ID] {
			continue
		}
		seen[block.ID] = true
		doc.Blocks = append(doc.Blocks, block)
	}
	return doc
}

// ParseString is Parse over a string column value.
func ParseString(s string) Document {
	return Parse([]byte(s))
}

// Encode returns the canonical JSON encoding of the document. This is the
// form stored in version rows, so published output is byte-for-byte what
// was saved.
func (d Document) Encode() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// parseBlock decodes one block node, reporting ok=false for anything that
// must be dropped.
func parseBlock(raw json.RawMessage) (Block, bool) {
	var b Block
	if err := json.Unmarshal(raw, &b); err != nil {
		return Block{}, false
	}
	if b.ID == "" || !knownBlockTypes[b.Type] {
		return Block{}, false
	}
	if b.Props == nil {
		b.Props = map[string]any{}
	}
	if b.Type == BlockRichText {
		sanitizeRichText(b.Props)
	}
	b.Style = normalizeStyle(b.Style)
	return b, true
}

// normalizeStyle clears unknown style values and collapses an empty style
// to nil so documents without hints stay compact.
func normalizeStyle(s *Style) *Style {
	if s == nil {
		return nil
	}
	out := *s
	if !knownBackgrounds[out.Background] {
		out.Background = ""
	}
	if !knownSpacings[out.SpacingTop] {
		out.SpacingTop = ""
	}
	if !knownSpacings[out.SpacingBottom] {
		out.SpacingBottom = ""
	}
	if out.IsZero() {
		return nil
	}
	return &out
}

// sanitizeRichText runs editor HTML through the UGC policy in place.
func sanitizeRichText(props map[string]any) {
	if html, ok := props["html"].(string); ok {
		props["html"] = htmlPolicy.Sanitize(html)
	}
}
