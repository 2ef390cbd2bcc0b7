package main

import (
	"context"
	"log/slog"
	"time"

	"profile-service/internal/domain"
)

type expirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	ExpiringWithin(ctx context.Context, now time.Time, window time.Duration) []*domain.KYCWorkflow
}

type reviewQueue interface {
	Overdue(ctx context.Context, now time.Time) []*domain.Enrichment
}

// sweeper expires lapsed KYC workflows and reports renewals due soon and
// enrichments waiting past the review SLA.
type sweeper struct {
	kyc         expirer
	enrichments reviewQueue
	warnWindow  time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.Info("kyc expiry sweep disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *sweeper) sweep(ctx context.Context) {
	now := s.now()
	expired, err := s.kyc.ExpireDue(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "kyc expiry sweep failed", "error", err, "expired", expired)
	} else if expired > 0 {
		s.logger.InfoContext(ctx, "kyc workflows expired", "expired", expired)
	}

	if s.warnWindow > 0 {
		for _, w := range s.kyc.ExpiringWithin(ctx, now, s.warnWindow) {
			s.logger.WarnContext(ctx, "kyc renewal due",
				"profile_id", w.ProfileID,
				"kyc_id", w.ID,
				"expiry_date", w.ExpiryDate,
			)
		}
	}

	if overdue := s.enrichments.Overdue(ctx, now); len(overdue) > 0 {
		s.logger.WarnContext(ctx, "enrichments overdue for review", "count", len(overdue))
	}
}
