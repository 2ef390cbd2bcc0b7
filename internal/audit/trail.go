// Package audit is the append-only audit trail for the profile aggregate.
//
// Append is fail-closed: callers must treat an error as failure of the
// mutation being audited. Appended entries are optionally forwarded to an
// Exporter on a best-effort basis.
package audit

import (
	"context"
	"log/slog"
	"sort"

	"profile-service/internal/domain"
	"profile-service/internal/platform/metrics"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

const (
	DefaultQueryLimit = 50
	MaxQueryLimit     = 100
)

// Exporter receives committed entries. Export must not block the caller.
type Exporter interface {
	Export(ctx context.Context, entry domain.AuditEntry)
}

// Trail appends and queries audit entries.
type Trail struct {
	store    Store
	exporter Exporter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Trail)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) {
		t.logger = logger
	}
}

func WithExporter(e Exporter) Option {
	return func(t *Trail) {
		t.exporter = e
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Trail) {
		t.metrics = m
	}
}

func NewTrail(store Store, opts ...Option) *Trail {
	t := &Trail{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Append validates and persists entry. ID, timestamp and correlation ID are
// filled from ctx when absent.
func (t *Trail) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	if entry.ProfileID.IsNil() {
		return domain.AuditEntry{}, dErrors.New(dErrors.CodeInvariantViolation, "audit entry requires profile id")
	}
	if !entry.Action.IsValid() {
		return domain.AuditEntry{}, dErrors.Newf(dErrors.CodeInvariantViolation, "audit entry has unknown action %q", entry.Action)
	}
	if entry.ActorID == "" {
		return domain.AuditEntry{}, dErrors.New(dErrors.CodeInvariantViolation, "audit entry requires actor id")
	}
	entry.ID = id.NewAuditEntryID()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.CorrelationID == "" {
		entry.CorrelationID = requestcontext.RequestID(ctx)
	}

	stored, err := t.store.Append(ctx, entry)
	if err != nil {
		t.logger.ErrorContext(ctx, "audit append failed",
			"profile_id", entry.ProfileID,
			"action", entry.Action,
			"error", err,
		)
		return domain.AuditEntry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write audit entry")
	}
	t.metrics.IncrementAuditAppended(string(stored.Action))
	if t.exporter != nil {
		t.exporter.Export(ctx, stored)
	}
	return stored, nil
}

// Query filters by action (when non-empty), orders newest first (equal
// timestamps: later append first), then applies offset and limit. Appends
// for one profile happen under its lock with a monotonic commit time, so the
// result is commit order reversed.
func (t *Trail) Query(ctx context.Context, profileID id.ProfileID, limit, offset int, action domain.AuditAction) ([]domain.AuditEntry, error) {
	if action != "" && !action.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown audit action %q", action)
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		return nil, dErrors.Newf(dErrors.CodeValidation, "limit must be at most %d", MaxQueryLimit)
	}
	if offset < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "offset must not be negative")
	}

	entries, err := t.store.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit entries")
	}

	filtered := entries[:0]
	for _, e := range entries {
		if action == "" || e.Action == action {
			filtered = append(filtered, e)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if !filtered[i].Timestamp.Equal(filtered[j].Timestamp) {
			return filtered[i].Timestamp.After(filtered[j].Timestamp)
		}
		return filtered[i].Sequence > filtered[j].Sequence
	})

	if offset >= len(filtered) {
		return []domain.AuditEntry{}, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], nil
}
