// Package webhook posts reassembly notifications to an HTTP endpoint.
//
// Every request carries the message id in X-Stitch-Message-Id so the
// receiving side can drop repeats after a retried POST. 4xx responses are
// final; anything else is retried with exponential backoff.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pithecene-io/stitch/adapter"
	"github.com/pithecene-io/stitch/iox"
)

// Defaults applied by New.
const (
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 3
	DefaultBackoff = 500 * time.Millisecond
)

// Request headers set on every notification.
const (
	HeaderEvent     = "X-Stitch-Event"
	HeaderMessageID = "X-Stitch-Message-Id"
)

// Config configures the webhook adapter.
type Config struct {
	URL     string            // required
	Headers map[string]string // added to every request; cannot override Content-Type
	Timeout time.Duration     // per request
	Retries int
	Backoff time.Duration // before the first retry
}

// Adapter publishes notifications via HTTP POST.
type Adapter struct {
	config Config
	client *http.Client
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Adapter, error) {
	switch {
	case cfg.URL == "":
		return nil, errors.New("webhook adapter requires a URL")
	case cfg.Retries < 0:
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	cfg.Timeout = orDefault(cfg.Timeout, DefaultTimeout)
	cfg.Backoff = orDefault(cfg.Backoff, DefaultBackoff)
	return &Adapter{config: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Publish POSTs the event as JSON.
func (a *Adapter) Publish(ctx context.Context, event *adapter.MessageReassembledEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}
	err = adapter.Retry(ctx, a.config.Retries, a.config.Backoff, func(ctx context.Context) error {
		return a.post(ctx, event.MessageID, body)
	})
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

func (a *Adapter) post(ctx context.Context, messageID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return adapter.Permanent(fmt.Errorf("create request: %w", err))
	}
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, adapter.EventTypeMessageReassembled)
	req.Header.Set(HeaderMessageID, messageID)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code >= 400 && code < 500:
		return adapter.Permanent(&StatusError{Code: code})
	default:
		return &StatusError{Code: code}
	}
}

// Close drops idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
