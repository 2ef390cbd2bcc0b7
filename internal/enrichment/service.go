// Package enrichment runs the maker-checker workflow for risk and credit
// attributes.
//
// A maker proposes; a different checker approves or rejects. Approval copies
// the proposal onto the profile in the same store mutation that marks the
// enrichment approved, so neither write can land without the other.
package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"profile-service/internal/audit"
	"profile-service/internal/cache"
	"profile-service/internal/domain"
	"profile-service/internal/platform/metrics"
	"profile-service/internal/storage"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

const DefaultReviewSLA = 24 * time.Hour

type Service struct {
	store     *storage.Store
	locker    *storage.ProfileLocker
	trail     *audit.Trail
	cache     *cache.Cache
	reviewSLA time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithReviewSLA sets how long a submission may wait for a checker before it
// is reported as overdue.
func WithReviewSLA(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.reviewSLA = d
		}
	}
}

func NewService(store *storage.Store, locker *storage.ProfileLocker, trail *audit.Trail, c *cache.Cache, opts ...Option) *Service {
	s := &Service{
		store:     store,
		locker:    locker,
		trail:     trail,
		cache:     c,
		reviewSLA: DefaultReviewSLA,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create records a maker submission in pending_review.
func (s *Service) Create(ctx context.Context, profileID id.ProfileID, data domain.EnrichmentData, makerID string) (*domain.Enrichment, error) {
	if _, err := s.store.Profiles.Get(ctx, profileID.String()); err != nil {
		return nil, wrapStoreErr(err, "profile")
	}
	var e *domain.Enrichment
	err := s.locker.RunInTx(ctx, profileID, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		created, err := domain.NewEnrichment(profileID, data, makerID, now)
		if err != nil {
			return err
		}
		if err := s.store.Enrichments.Create(ctx, created, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create enrichment")
		}
		e = created
		_, err = s.trail.Append(ctx, domain.AuditEntry{
			ProfileID: profileID,
			Action:    domain.AuditEnrich,
			ActorID:   makerID,
			ActorRole: domain.ActorMaker,
			FieldName: "enrichment",
			ToValue:   *e,
			Reason:    data.Notes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "enrichment submitted",
		"profile_id", profileID,
		"enrichment_id", e.ID,
		"maker_id", makerID,
	)
	return e, nil
}

// Review applies a checker decision. The checker must differ from the maker
// and the enrichment must still be pending review.
func (s *Service) Review(ctx context.Context, enrichmentID id.EnrichmentID, decision domain.CheckerDecision, checkerID, notes string) (*domain.Enrichment, error) {
	if !decision.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "decision must be approve or reject")
	}
	current, err := s.store.Enrichments.Get(ctx, enrichmentID.String())
	if err != nil {
		return nil, wrapStoreErr(err, "enrichment")
	}
	if err := current.CanReview(checkerID); err != nil {
		return nil, err
	}
	profileID := current.ProfileID

	var reviewed *domain.Enrichment
	err = s.locker.RunInTx(ctx, profileID, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		e, err := s.store.Enrichments.Update(ctx, enrichmentID.String(), now, func(e *domain.Enrichment) error {
			if err := e.CanReview(checkerID); err != nil {
				return err
			}
			e.ApplyReview(decision, checkerID, notes, now)
			if e.Status != domain.EnrichmentApproved {
				return nil
			}
			_, err := s.store.Profiles.Update(ctx, e.ProfileID.String(), now, func(p *domain.Profile) error {
				p.ApplyEnrichment(e, now)
				return nil
			})
			return err
		})
		if err != nil {
			return wrapStoreErr(err, "enrichment")
		}
		if e.Status == domain.EnrichmentApproved {
			s.cache.Invalidate(ctx, profileID, cache.KindProfile)
		}
		s.metrics.IncrementEnrichmentReview(string(decision))

		if _, err := s.trail.Append(ctx, domain.AuditEntry{
			ProfileID: profileID,
			Action:    domain.AuditEnrich,
			ActorID:   checkerID,
			ActorRole: domain.ActorChecker,
			FieldName: "enrichment_status",
			FromValue: string(domain.EnrichmentPendingReview),
			ToValue:   map[string]string{"decision": string(decision), "enrichment_id": e.ID.String()},
			Reason:    notes,
		}); err != nil {
			return err
		}
		reviewed = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "enrichment reviewed",
		"profile_id", profileID,
		"enrichment_id", enrichmentID,
		"decision", decision,
	)
	return reviewed, nil
}

// Get returns one enrichment.
func (s *Service) Get(ctx context.Context, enrichmentID id.EnrichmentID) (*domain.Enrichment, error) {
	e, err := s.store.Enrichments.Get(ctx, enrichmentID.String())
	if err != nil {
		return nil, wrapStoreErr(err, "enrichment")
	}
	return e, nil
}

// List returns the profile's enrichments in submission order.
func (s *Service) List(ctx context.Context, profileID id.ProfileID) ([]*domain.Enrichment, error) {
	if _, err := s.store.Profiles.Get(ctx, profileID.String()); err != nil {
		return nil, wrapStoreErr(err, "profile")
	}
	return s.store.Enrichments.ListByProfile(ctx, profileID), nil
}

// Overdue lists submissions that have waited longer than the review SLA.
func (s *Service) Overdue(ctx context.Context, now time.Time) []*domain.Enrichment {
	return s.store.Enrichments.Scan(ctx, func(e *domain.Enrichment) bool {
		return e.Status == domain.EnrichmentPendingReview && now.Sub(e.MakerSubmittedAt) > s.reviewSLA
	})
}

func wrapStoreErr(err error, entity string) error {
	if storage.IsNotFound(err) {
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update "+entity)
}
