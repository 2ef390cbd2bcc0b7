// Package kyc runs the KYC check-aggregation workflow.
//
// Every mutation runs under the owning profile's lock: the workflow change,
// the mirror onto the profile and the completeness refresh commit together,
// the kyc and profile cache keys are invalidated before the lock is released,
// and the audit entry is appended from the committed values.
package kyc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"profile-service/internal/audit"
	"profile-service/internal/cache"
	"profile-service/internal/completeness"
	"profile-service/internal/domain"
	"profile-service/internal/platform/metrics"
	"profile-service/internal/storage"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

const DefaultValidity = 365 * 24 * time.Hour

// DefaultRequirements resolves required document codes per kyc_type.
var DefaultRequirements = map[domain.KYCType][]domain.DocumentType{
	domain.KYCTypeStandard: {domain.DocumentPAN, domain.DocumentAadhar},
	domain.KYCTypeEnhanced: {domain.DocumentPAN, domain.DocumentAadhar, domain.DocumentUtilityBill, domain.DocumentBankStatement},
	domain.KYCTypeLegacy:   {domain.DocumentPAN},
}

// Service owns KYC workflow transitions.
type Service struct {
	store        *storage.Store
	locker       *storage.ProfileLocker
	trail        *audit.Trail
	cache        *cache.Cache
	refresher    *completeness.Refresher
	requirements map[domain.KYCType][]domain.DocumentType
	validity     time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
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

// WithRequirements replaces the document requirements table.
func WithRequirements(reqs map[domain.KYCType][]domain.DocumentType) Option {
	return func(s *Service) {
		if len(reqs) > 0 {
			s.requirements = reqs
		}
	}
}

// WithValidity sets how long a verified workflow stays valid.
func WithValidity(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.validity = d
		}
	}
}

func NewService(store *storage.Store, locker *storage.ProfileLocker, trail *audit.Trail, c *cache.Cache, refresher *completeness.Refresher, opts ...Option) *Service {
	s := &Service{
		store:        store,
		locker:       locker,
		trail:        trail,
		cache:        c,
		refresher:    refresher,
		requirements: DefaultRequirements,
		validity:     DefaultValidity,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Requirements returns the document codes kycType requires.
func (s *Service) Requirements(kycType domain.KYCType) []domain.DocumentType {
	return s.requirements[kycType]
}

// Status returns the profile's latest workflow, served from cache when
// possible.
func (s *Service) Status(ctx context.Context, profileID id.ProfileID) (*domain.KYCWorkflow, error) {
	if w, ok := s.cache.GetKYC(ctx, profileID); ok {
		return w, nil
	}
	w, err := s.store.LatestKYC(ctx, profileID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, dErrors.New(dErrors.CodeNotFound, "kyc not initiated")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load kyc workflow")
	}
	s.cache.SetKYC(ctx, w)
	return w, nil
}

// Initiate starts a workflow for profileID. An existing workflow that is not
// rejected is returned unchanged.
func (s *Service) Initiate(ctx context.Context, profileID id.ProfileID, kycType domain.KYCType) (*domain.KYCWorkflow, error) {
	if kycType == "" {
		kycType = domain.KYCTypeStandard
	}
	if !kycType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unsupported kyc type %q", kycType)
	}

	var workflow *domain.KYCWorkflow
	err := s.locker.RunInTx(ctx, profileID, func(ctx context.Context) error {
		if _, err := s.loadProfile(ctx, profileID); err != nil {
			return err
		}
		if existing, err := s.store.ActiveKYC(ctx, profileID); err == nil {
			workflow = existing
			return nil
		}

		now := requestcontext.Now(ctx)
		w := domain.NewKYCWorkflow(profileID, kycType, s.requirements[kycType], now)
		if err := s.store.KYC.Create(ctx, w, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create kyc workflow")
		}
		profile, err := s.mirror(ctx, w, now)
		if err != nil {
			return err
		}
		s.cache.Invalidate(ctx, profileID, cache.KindKYC, cache.KindProfile)
		s.metrics.IncrementKYCTransition(string(w.Status))

		if _, err := s.trail.Append(ctx, s.entry(ctx, profileID, domain.AuditCreate, "kyc_status",
			string(domain.KYCStatusPending), string(profile.KYCStatus), string(kycType))); err != nil {
			return err
		}
		workflow = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return workflow, nil
}

// UpdateCheck sets one check on kycID. When all four checks pass the workflow
// becomes verified and the profile mirror is updated in the same step. The
// kyc cache key is dropped on every call.
func (s *Service) UpdateCheck(ctx context.Context, kycID id.KYCID, check domain.KYCCheck, verified bool) (*domain.KYCWorkflow, error) {
	current, err := s.loadWorkflow(ctx, kycID)
	if err != nil {
		return nil, err
	}
	profileID := current.ProfileID

	var workflow *domain.KYCWorkflow
	err = s.locker.RunInTx(ctx, profileID, func(ctx context.Context) error {
		defer s.cache.Invalidate(ctx, profileID, cache.KindKYC)

		now := requestcontext.Now(ctx)
		var before bool
		var completed bool
		w, err := s.store.KYC.Update(ctx, kycID.String(), now, func(w *domain.KYCWorkflow) error {
			if err := w.CanUpdateCheck(); err != nil {
				return err
			}
			before = checkValue(w.Checks, check)
			completed = w.ApplyCheck(check, verified, s.validity, now)
			return nil
		})
		if err != nil {
			return wrapStoreErr(err, "kyc workflow")
		}
		if _, err := s.mirror(ctx, w, now); err != nil {
			return err
		}
		s.cache.Invalidate(ctx, profileID, cache.KindProfile)
		if completed {
			s.metrics.IncrementKYCTransition(string(domain.KYCStatusVerified))
			s.logger.InfoContext(ctx, "kyc verified",
				"profile_id", profileID,
				"kyc_id", w.ID,
				"expiry_date", w.ExpiryDate,
			)
		}

		if _, err := s.trail.Append(ctx, s.entry(ctx, profileID, domain.AuditVerify, string(check), before, verified, "")); err != nil {
			return err
		}
		if completed {
			if _, err := s.trail.Append(ctx, s.entry(ctx, profileID, domain.AuditVerify, "kyc_status",
				string(domain.KYCStatusInProgress), string(domain.KYCStatusVerified), "all checks verified")); err != nil {
				return err
			}
		}
		workflow = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return workflow, nil
}

// Reject ends an in-progress workflow. The profile may initiate again.
func (s *Service) Reject(ctx context.Context, kycID id.KYCID, reason string) (*domain.KYCWorkflow, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	current, err := s.loadWorkflow(ctx, kycID)
	if err != nil {
		return nil, err
	}
	profileID := current.ProfileID

	var workflow *domain.KYCWorkflow
	err = s.locker.RunInTx(ctx, profileID, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		var from domain.KYCStatus
		w, err := s.store.KYC.Update(ctx, kycID.String(), now, func(w *domain.KYCWorkflow) error {
			if err := w.CanReject(); err != nil {
				return err
			}
			from = w.Status
			w.ApplyRejection(reason, now)
			return nil
		})
		if err != nil {
			return wrapStoreErr(err, "kyc workflow")
		}
		if _, err := s.mirror(ctx, w, now); err != nil {
			return err
		}
		s.cache.Invalidate(ctx, profileID, cache.KindKYC, cache.KindProfile)
		s.metrics.IncrementKYCTransition(string(w.Status))

		if _, err := s.trail.Append(ctx, s.entry(ctx, profileID, domain.AuditVerify, "kyc_status",
			string(from), string(w.Status), reason)); err != nil {
			return err
		}
		workflow = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return workflow, nil
}

// ExpireDue moves every verified workflow whose expiry has passed to expired
// and returns how many were swept. A failure on one profile does not stop the
// sweep.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due := s.store.KYC.Scan(ctx, func(w *domain.KYCWorkflow) bool {
		return w.IsExpiredAt(now)
	})
	ctx = requestcontext.WithTime(ctx, now)
	ctx = requestcontext.WithCaller(ctx, requestcontext.Principal{UserID: domain.ActorSystem, Role: domain.ActorSystem})

	expired := 0
	var firstErr error
	for _, w := range due {
		if err := s.expire(ctx, w.ID, w.ProfileID); err != nil {
			s.logger.ErrorContext(ctx, "kyc expiry failed", "profile_id", w.ProfileID, "kyc_id", w.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		expired++
	}
	return expired, firstErr
}

func (s *Service) expire(ctx context.Context, kycID id.KYCID, profileID id.ProfileID) error {
	return s.locker.RunInTx(ctx, profileID, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		var swept bool
		w, err := s.store.KYC.Update(ctx, kycID.String(), now, func(w *domain.KYCWorkflow) error {
			// Re-check under the lock; a concurrent sweep may have won.
			if w.IsExpiredAt(now) {
				w.ApplyExpiry(now)
				swept = true
			}
			return nil
		})
		if err != nil {
			return wrapStoreErr(err, "kyc workflow")
		}
		if !swept {
			return nil
		}
		if _, err := s.mirror(ctx, w, now); err != nil {
			return err
		}
		s.cache.Invalidate(ctx, profileID, cache.KindKYC, cache.KindProfile)
		s.metrics.IncrementKYCTransition(string(w.Status))

		_, err = s.trail.Append(ctx, s.entry(ctx, profileID, domain.AuditUpdate, "kyc_status",
			string(domain.KYCStatusVerified), string(domain.KYCStatusExpired), "kyc validity elapsed"))
		return err
	})
}

// ExpiringWithin lists verified workflows that expire inside window.
func (s *Service) ExpiringWithin(ctx context.Context, now time.Time, window time.Duration) []*domain.KYCWorkflow {
	return s.store.KYC.Scan(ctx, func(w *domain.KYCWorkflow) bool {
		return w.ExpiresWithin(now, window) && !w.IsExpiredAt(now)
	})
}

// mirror copies workflow state onto the profile and refreshes completeness.
func (s *Service) mirror(ctx context.Context, w *domain.KYCWorkflow, now time.Time) (*domain.Profile, error) {
	if _, err := s.store.Profiles.Update(ctx, w.ProfileID.String(), now, func(p *domain.Profile) error {
		p.ApplyKYC(w)
		return nil
	}); err != nil {
		return nil, wrapStoreErr(err, "profile")
	}
	p, _, err := s.refresher.Refresh(ctx, w.ProfileID, now)
	return p, err
}

func (s *Service) loadProfile(ctx context.Context, profileID id.ProfileID) (*domain.Profile, error) {
	p, err := s.store.Profiles.Get(ctx, profileID.String())
	if err != nil {
		return nil, wrapStoreErr(err, "profile")
	}
	return p, nil
}

func (s *Service) loadWorkflow(ctx context.Context, kycID id.KYCID) (*domain.KYCWorkflow, error) {
	if kycID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "kyc id is required")
	}
	w, err := s.store.KYC.Get(ctx, kycID.String())
	if err != nil {
		return nil, wrapStoreErr(err, "kyc workflow")
	}
	return w, nil
}

func (s *Service) entry(ctx context.Context, profileID id.ProfileID, action domain.AuditAction, field string, from, to any, reason string) domain.AuditEntry {
	caller := requestcontext.Caller(ctx)
	role := caller.Role
	if role == "" {
		role = domain.ActorOfficer
	}
	return domain.AuditEntry{
		ProfileID: profileID,
		Action:    action,
		ActorID:   caller.UserID,
		ActorRole: role,
		FieldName: field,
		FromValue: from,
		ToValue:   to,
		Reason:    reason,
	}
}

func checkValue(c domain.CompletedChecks, check domain.KYCCheck) bool {
	switch check {
	case domain.CheckIdentity:
		return c.IdentityVerified
	case domain.CheckAddress:
		return c.AddressVerified
	case domain.CheckIncome:
		return c.IncomeVerified
	default:
		return c.DocumentVerified
	}
}

func wrapStoreErr(err error, entity string) error {
	if storage.IsNotFound(err) {
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to update %s", entity))
}
