// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// clientAddr extracts the remote IP without the port.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// pathID parses a numeric chi URL parameter. A false return means an
// error response has been written.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteBadRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}

// urlSlug returns a trimmed, lowercased chi URL parameter.
func urlSlug(r *http.Request, name string) string {
	return strings.ToLower(strings.TrimSpace(chi.URLParam(r, name)))
}

// queryInt parses a query parameter with a default, clamped to [min, max].
func queryInt(r *http.Request, name string, def, min, max int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// isValidEmail performs the lightweight shape check used for public
// form input. Deliverability is the mail provider's problem.
func isValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && strings.Contains(email[at+1:], ".")
}
