// Package clients talks to the sibling services the profile core depends on:
// the authorization service and the document service.
//
// Idempotent reads are retried a fixed number of times with a constant
// backoff; writes are attempted once because no idempotency key exists.
// Client errors (4xx) are never retried.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"profile-service/internal/platform/metrics"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultAttempts = 3

	correlationHeader = "X-Correlation-Id"
	retryInterval     = 200 * time.Millisecond
)

// Config is the connection budget for one collaborator.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Attempts int
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures a collaborator client.
type Option func(*base)

func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) {
		b.metrics = m
	}
}

// WithHTTPClient replaces the underlying *http.Client. Its Timeout is kept.
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) {
		b.http = c
	}
}

// WithRetryInterval sets the pause between attempts of an idempotent call.
func WithRetryInterval(d time.Duration) Option {
	return func(b *base) {
		b.retryInterval = d
	}
}

type base struct {
	name          string
	baseURL       string
	attempts      int
	retryInterval time.Duration
	http          *http.Client
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

func newBase(name string, cfg Config, opts ...Option) *base {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	b := &base{
		name:          name,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		attempts:      attempts,
		retryInterval: retryInterval,
		http:          &http.Client{Timeout: timeout},
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// read performs an idempotent call with the retry budget.
func (b *base) read(ctx context.Context, method, path string, in, out any) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(b.retryInterval), uint64(b.attempts-1)),
		ctx,
	)
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := b.once(ctx, method, path, in, out)
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		if err != nil {
			b.logger.WarnContext(ctx, "collaborator call failed",
				"collaborator", b.name,
				"path", path,
				"attempt", attempt,
				"max_attempts", b.attempts,
				"error", err,
			)
		}
		return err
	}, policy)
	return b.outcome(err)
}

// write performs a non-idempotent call exactly once.
func (b *base) write(ctx context.Context, method, path string, in, out any) error {
	err := b.once(ctx, method, path, in, out)
	if err != nil {
		b.logger.WarnContext(ctx, "collaborator write failed", "collaborator", b.name, "path", path, "error", err)
	}
	return b.outcome(err)
}

func (b *base) outcome(err error) error {
	if err == nil {
		b.metrics.IncrementCollaborator(b.name, "ok")
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError {
		b.metrics.IncrementCollaborator(b.name, "rejected")
		if se.StatusCode == http.StatusNotFound {
			return dErrors.Wrap(err, dErrors.CodeNotFound, b.name+" resource not found")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, b.name+" rejected the request")
	}
	b.metrics.IncrementCollaborator(b.name, "unavailable")
	return dErrors.Wrap(err, dErrors.CodeUnavailable, b.name+" unavailable")
}

func (b *base) once(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cid := requestcontext.RequestID(ctx); cid != "" {
		req.Header.Set(correlationHeader, cid)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
