// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

// Package mailer sends transactional email through an HTTP mail provider.
// It performs single delivery attempts only; retry policy belongs to the
// email queue.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Message is one outbound email handed to a Sender.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	ReplyTo string `json:"reply_to,omitempty"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

// Sender is the mail provider collaborator. Implementations must not
// retry internally.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Delivery configuration constants
const (
	requestTimeout = 30 * time.Second
	maxResponseLen = 10 * 1024 // response body kept for error messages
)

// httpClient is the shared HTTP client with appropriate timeouts.
var httpClient = &http.Client{
	Timeout: requestTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// APISender delivers messages through a JSON-over-HTTP transactional
// mail API using bearer authentication.
type APISender struct {
	url    string
	apiKey string
	client *http.Client
}

// NewAPISender creates a Sender for the given mail API endpoint.
func NewAPISender(url, apiKey string) *APISender {
	return &APISender{
		url:    url,
		apiKey: apiKey,
		client: httpClient,
	}
}

// Send posts the message to the provider. Any non-2xx response is an
// error; the queue decides whether and when to retry.
func (s *APISender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseLen))
		return fmt.Errorf("mail provider returned %d: %s", resp.StatusCode, string(detail))
	}

	return nil
}

// LogSender is the development fallback used when no mail provider is
// configured. It logs messages instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message and reports success.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail provider not configured, logging message instead",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
