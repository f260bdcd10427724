package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"loyaltykit/core"
)

// Sink posts notifications to configured HTTP endpoints.
// It is synchronous for determinism; wrap it in an async bus if endpoints are slow.
type Sink struct {
	client    *http.Client
	endpoints []string
	kinds     map[core.NotificationKind]bool
	logger    *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithKinds restricts delivery to the given notification kinds.
func WithKinds(kinds ...core.NotificationKind) Option {
	return func(s *Sink) {
		if len(kinds) == 0 {
			return
		}
		s.kinds = map[core.NotificationKind]bool{}
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// Publish posts the notification JSON to all endpoints. Failures are logged
// and never returned.
func (s *Sink) Publish(ctx context.Context, n core.Notification) {
	if len(s.endpoints) == 0 {
		return
	}
	if s.kinds != nil && !s.kinds[n.Kind] {
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		return
	}
	for _, ep := range s.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(body))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			s.logger.Warn("webhook delivery failed", "endpoint", ep, "notification", n.ID, "error", err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode >= 300 {
			s.logger.Warn("webhook rejected", "endpoint", ep, "notification", n.ID, "status", resp.StatusCode)
		}
	}
}
