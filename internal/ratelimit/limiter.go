// Package ratelimit enforces per-user quotas on customer mutations using an
// in-memory sliding window.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"profile-service/internal/platform/metrics"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

// Action names a quota-limited operation.
type Action string

const (
	ActionProfileUpdate  Action = "profile_update"
	ActionAddressAdd     Action = "address_add"
	ActionDocumentUpload Action = "document_upload"
)

// Rule allows Limit events per Window.
type Rule struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// DefaultRules: 10 profile updates per hour, 20 new addresses per month and
// 10 document uploads per day.
var DefaultRules = map[Action]Rule{
	ActionProfileUpdate:  {Limit: 10, Window: time.Hour},
	ActionAddressAdd:     {Limit: 20, Window: 30 * 24 * time.Hour},
	ActionDocumentUpload: {Limit: 10, Window: 24 * time.Hour},
}

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// Limiter is a process-local sliding-window limiter keyed by action and
// subject. A nil *Limiter admits everything.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	rules   map[Action]Rule
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// WithRules overrides the rules for the actions present in rules. Other
// actions keep their defaults.
func WithRules(rules map[Action]Rule) Option {
	return func(l *Limiter) {
		for action, rule := range rules {
			l.rules[action] = rule
		}
	}
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[string]*slidingWindow),
		rules:   make(map[Action]Rule, len(DefaultRules)),
		logger:  slog.New(slog.DiscardHandler),
	}
	for action, rule := range DefaultRules {
		l.rules[action] = rule
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one event of action for subject and returns a CodeRateLimited
// error when the subject's quota is exhausted. Actions without a rule, or
// with a non-positive limit, are not limited.
func (l *Limiter) Check(ctx context.Context, action Action, subject string) error {
	if l == nil {
		return nil
	}
	rule, ok := l.rules[action]
	if !ok || rule.Limit <= 0 || rule.Window <= 0 {
		return nil
	}
	res := l.Allow(string(action)+":"+subject, rule, requestcontext.Now(ctx))
	if res.Allowed {
		return nil
	}
	l.metrics.IncrementRateLimited(string(action))
	l.logger.WarnContext(ctx, "rate limit exceeded",
		"action", action,
		"user_id", subject,
		"limit", rule.Limit,
		"reset_at", res.ResetAt,
	)
	return dErrors.Newf(dErrors.CodeRateLimited, "%s limit of %d reached, retry after %s",
		action, rule.Limit, res.ResetAt.UTC().Format(time.RFC3339))
}

// Allow admits one event for key at now if fewer than rule.Limit events fall
// inside the trailing window.
func (l *Limiter) Allow(key string, rule Rule, now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	sw := l.windows[key]
	if sw == nil {
		sw = &slidingWindow{window: rule.Window}
		l.windows[key] = sw
	}
	sw.cleanup(now)

	if len(sw.timestamps) >= rule.Limit {
		return Result{
			Allowed: false,
			Limit:   rule.Limit,
			ResetAt: sw.timestamps[0].Add(sw.window),
		}
	}
	sw.timestamps = append(sw.timestamps, now)
	return Result{
		Allowed:   true,
		Remaining: rule.Limit - len(sw.timestamps),
		Limit:     rule.Limit,
		ResetAt:   sw.timestamps[0].Add(sw.window),
	}
}

// Count returns the number of events for key inside its window at now.
func (l *Limiter) Count(key string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	sw := l.windows[key]
	if sw == nil {
		return 0
	}
	sw.cleanup(now)
	return len(sw.timestamps)
}

// Reset forgets every event recorded for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// cleanup drops timestamps that have left the window.
func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
