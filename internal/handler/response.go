// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler implements the HTTP API: the authenticated admin
// surface under /api/admin, the public content endpoints under /api,
// and the operational endpoints (job trigger, health).
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/havenretreats/haven-go/internal/service"
)

// Response is the envelope for successful API responses.
type Response struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta carries pagination details for list responses.
type Meta struct {
	Total  int64 `json:"total,omitempty"`
	Limit  int64 `json:"limit,omitempty"`
	Offset int64 `json:"offset,omitempty"`
}

// ErrorResponse is the envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a single API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// maxRequestBody caps JSON request bodies at 1 MB.
const maxRequestBody = 1 << 20

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// WriteSuccess writes a 200 response with the data wrapped in the
// standard envelope.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{Data: data})
}

// WriteList writes a 200 response with list data and pagination meta.
func WriteList(w http.ResponseWriter, data any, meta Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: &meta})
}

// WriteCreated writes a 201 response with the created resource.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error response with the given status and code.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// WriteValidationError writes a 400 response carrying per-field details.
func WriteValidationError(w http.ResponseWriter, details map[string]string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{
		Code:    "validation_failed",
		Message: "request validation failed",
		Details: details,
	}})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// WriteServiceError maps service-layer errors onto API status codes.
// Unknown errors are logged and reported as 500 without leaking detail.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		WriteNotFound(w, "resource not found")
	case errors.Is(err, service.ErrVersionMismatch):
		WriteError(w, http.StatusUnprocessableEntity, "version_mismatch", "version does not belong to this resource")
	case errors.Is(err, service.ErrSlugTaken):
		WriteConflict(w, "slug is already in use")
	case errors.Is(err, service.ErrInvalidSlug):
		WriteBadRequest(w, "invalid slug")
	default:
		slog.Error("unhandled service error", "error", err)
		WriteInternalError(w)
	}
}

// ReadJSON decodes the request body into dst, enforcing the body size
// cap. A false return means an error response has been written.
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// readOptionalJSON is ReadJSON for endpoints where an empty body is a
// legal request. dst is left zero-valued when no body is sent.
func readOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		WriteBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}
