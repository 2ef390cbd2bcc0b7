// Package profile orchestrates the customer profile aggregate: profile reads
// and edits, addresses, documents and consents.
//
// Mutations follow one sequence under the owning profile's lock: commit the
// change, recompute completeness, invalidate the affected cache keys, then
// append audit entries built from the committed values. An audit failure
// fails the operation. Collaborator calls that do not gate the mutation run
// outside the lock.
package profile

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
	"profile-service/internal/ratelimit"
	"profile-service/internal/storage"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/platform/sentinel"
	"profile-service/pkg/requestcontext"
)

const (
	DefaultMaxAddresses = 10
	mirrorTimeout       = 5 * time.Second
)

// DefaultMandatoryConsents must be accepted before a profile can be used for
// lending.
var DefaultMandatoryConsents = []domain.ConsentType{
	domain.ConsentTermsAndConditions,
	domain.ConsentDataUsage,
}

// errUnchanged aborts a store update that would not change anything.
var errUnchanged = errors.New("unchanged")

type Service struct {
	store             *storage.Store
	locker            *storage.ProfileLocker
	trail             *audit.Trail
	cache             *cache.Cache
	refresher         *completeness.Refresher
	authz             Authorizer
	documents         DocumentStore
	mirror            Mirror
	limiter           *ratelimit.Limiter
	maxAddresses      int
	mandatoryConsents []domain.ConsentType
	logger            *slog.Logger
	metrics           *metrics.Metrics
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

// WithMirror enables best-effort replication after each committed mutation.
func WithMirror(m Mirror) Option {
	return func(s *Service) {
		s.mirror = m
	}
}

// WithLimiter applies per-user quotas to customer mutations.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

func WithMaxAddresses(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAddresses = n
		}
	}
}

func WithMandatoryConsents(types []domain.ConsentType) Option {
	return func(s *Service) {
		if len(types) > 0 {
			s.mandatoryConsents = types
		}
	}
}

func New(
	store *storage.Store,
	locker *storage.ProfileLocker,
	trail *audit.Trail,
	c *cache.Cache,
	refresher *completeness.Refresher,
	authz Authorizer,
	documents DocumentStore,
	opts ...Option,
) (*Service, error) {
	if store == nil || locker == nil {
		return nil, fmt.Errorf("store and locker are required")
	}
	if trail == nil {
		return nil, fmt.Errorf("audit trail is required")
	}
	if c == nil || refresher == nil {
		return nil, fmt.Errorf("cache and completeness refresher are required")
	}
	if authz == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	if documents == nil {
		return nil, fmt.Errorf("document store is required")
	}
	s := &Service{
		store:             store,
		locker:            locker,
		trail:             trail,
		cache:             c,
		refresher:         refresher,
		authz:             authz,
		documents:         documents,
		maxAddresses:      DefaultMaxAddresses,
		mandatoryConsents: DefaultMandatoryConsents,
		logger:            slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewProfileInput is what an operator supplies to open a profile.
type NewProfileInput struct {
	UserID   string                `json:"user_id"`
	TenantID string                `json:"tenant_id"`
	Fields   domain.ProfileFields  `json:"fields"`
	Identity domain.IdentityFields `json:"identity"`
}

// CreateProfile opens the single profile of in.UserID. The caller is recorded
// as creator; the audit entry carries the system role.
func (s *Service) CreateProfile(ctx context.Context, in NewProfileInput) (*domain.Profile, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.Fields.Validate(); err != nil {
		return nil, err
	}
	if err := in.Identity.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	p, err := domain.NewProfile(in.UserID, in.TenantID, now)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	p.ApplyFields(in.Fields, now)
	p.ApplyIdentity(in.Identity)
	p.CreatedBy = caller.UserID
	p.UpdatedBy = caller.UserID

	err = s.mutate(ctx, p.ID, func(ctx context.Context, now time.Time) (change, error) {
		if err := s.store.CreateProfile(ctx, p, now); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return change{}, dErrors.New(dErrors.CodeConflict, "profile already exists for user")
			}
			return change{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create profile")
		}
		return change{
			recompute:  true,
			invalidate: []cache.Kind{cache.KindProfile},
			entries: []domain.AuditEntry{{
				ProfileID: p.ID,
				Action:    domain.AuditCreate,
				ActorID:   caller.UserID,
				ActorRole: domain.ActorSystem,
			}},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "profile created",
		"profile_id", p.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return s.loadProfile(ctx, p.ID)
}

// GetProfile is third-party access by profile ID. Access requires ownership
// or a permission grant from the authorizer, on cache hits and misses alike.
func (s *Service) GetProfile(ctx context.Context, profileID id.ProfileID) (*View, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	p, cached := s.cache.GetProfile(ctx, profileID)
	if !cached {
		if p, err = s.loadProfile(ctx, profileID); err != nil {
			return nil, err
		}
	}

	if !s.authz.CheckOwnership(ctx, caller.UserID, p.UserID) &&
		!s.authz.CheckPermission(ctx, caller.UserID, "profile", profileID.String(), "read") {
		s.logger.WarnContext(ctx, "profile access denied",
			"profile_id", profileID,
			"user_id", caller.UserID,
			"role", caller.Role,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to view this profile")
	}

	if !cached {
		s.cache.SetProfile(ctx, p)
	}
	return Mask(p, caller.Role), nil
}

// GetOwnProfile returns the caller's profile masked for the caller's role.
func (s *Service) GetOwnProfile(ctx context.Context) (*View, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.ownProfile(ctx, caller)
	if err != nil {
		return nil, err
	}
	return Mask(p, caller.Role), nil
}

// OwnProfileID resolves the caller's profile ID.
func (s *Service) OwnProfileID(ctx context.Context) (id.ProfileID, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return id.ProfileID{}, err
	}
	p, err := s.ownProfile(ctx, caller)
	if err != nil {
		return id.ProfileID{}, err
	}
	return p.ID, nil
}

// UpdateOwnProfile merges fields into the caller's profile and audits one
// entry per field whose value actually changed.
func (s *Service) UpdateOwnProfile(ctx context.Context, fields domain.ProfileFields) (*View, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	current, err := s.ownProfile(ctx, caller)
	if err != nil {
		return nil, err
	}
	profileID := current.ID
	err = s.mutate(ctx, profileID, func(ctx context.Context, now time.Time) (change, error) {
		var changes []domain.FieldChange
		_, err := s.store.Profiles.Update(ctx, profileID.String(), now, func(p *domain.Profile) error {
			changes = p.ApplyFields(fields, now)
			if len(changes) == 0 {
				return errUnchanged
			}
			// Only real changes count against the quota.
			if err := s.limiter.Check(ctx, ratelimit.ActionProfileUpdate, caller.UserID); err != nil {
				return err
			}
			p.UpdatedBy = caller.UserID
			return nil
		})
		if errors.Is(err, errUnchanged) {
			return change{}, nil
		}
		if err != nil {
			return change{}, wrapStoreErr(err, "profile")
		}

		entries := make([]domain.AuditEntry, 0, len(changes))
		for _, c := range changes {
			entries = append(entries, domain.AuditEntry{
				ProfileID: profileID,
				Action:    domain.AuditUpdate,
				ActorID:   caller.UserID,
				ActorRole: domain.ActorCustomer,
				FieldName: c.Field,
				FromValue: c.From,
				ToValue:   c.To,
			})
		}
		return change{
			recompute:  true,
			invalidate: []cache.Kind{cache.KindProfile},
			entries:    entries,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	p, err := s.loadProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return Mask(p, caller.Role), nil
}

// GetCompleteness reports the caller's completeness breakdown.
func (s *Service) GetCompleteness(ctx context.Context) (completeness.Report, error) {
	profileID, err := s.OwnProfileID(ctx)
	if err != nil {
		return completeness.Report{}, err
	}
	_, report, err := s.refresher.Report(ctx, profileID)
	return report, err
}

// GetAuditTrail pages through the caller's audit entries, newest first.
func (s *Service) GetAuditTrail(ctx context.Context, limit, offset int, action domain.AuditAction) ([]domain.AuditEntry, error) {
	profileID, err := s.OwnProfileID(ctx)
	if err != nil {
		return nil, err
	}
	return s.trail.Query(ctx, profileID, limit, offset, action)
}

// GetProfileAuditTrail pages through any profile's audit entries. Role
// checks happen at the transport boundary.
func (s *Service) GetProfileAuditTrail(ctx context.Context, profileID id.ProfileID, limit, offset int, action domain.AuditAction) ([]domain.AuditEntry, error) {
	if _, err := s.loadProfile(ctx, profileID); err != nil {
		return nil, err
	}
	return s.trail.Query(ctx, profileID, limit, offset, action)
}

// change is what a mutation committed under the profile lock.
type change struct {
	entries    []domain.AuditEntry
	invalidate []cache.Kind
	recompute  bool
}

// mutate runs fn under profileID's lock, then recomputes completeness,
// invalidates cache keys and appends audit entries before the lock is
// released. Replication runs after release.
func (s *Service) mutate(ctx context.Context, profileID id.ProfileID, fn func(ctx context.Context, now time.Time) (change, error)) error {
	var committed bool
	err := s.locker.RunInTx(ctx, profileID, func(ctx context.Context) error {
		start := time.Now()
		defer func() { s.metrics.ObserveLockHeld(time.Since(start)) }()

		now := requestcontext.Now(ctx)
		ch, err := fn(ctx, now)
		if err != nil {
			return err
		}
		if ch.recompute {
			if _, _, err := s.refresher.Refresh(ctx, profileID, now); err != nil {
				return err
			}
		}
		if len(ch.invalidate) > 0 {
			s.cache.Invalidate(ctx, profileID, ch.invalidate...)
		}
		committed = len(ch.entries) > 0 || ch.recompute
		for _, entry := range ch.entries {
			if _, err := s.trail.Append(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if committed {
		s.replicate(ctx, profileID)
	}
	return err
}

// replicate pushes the committed profile and addresses to the mirror.
func (s *Service) replicate(ctx context.Context, profileID id.ProfileID) {
	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()
	p, err := s.store.Profiles.Get(ctx, profileID.String())
	if err != nil {
		return
	}
	addresses := s.store.Addresses.ListByProfile(ctx, profileID)
	if err := s.mirror.SyncProfile(ctx, p, addresses); err != nil {
		s.metrics.IncrementMirrorFailure()
		s.logger.WarnContext(ctx, "profile mirror sync failed",
			"profile_id", profileID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (s *Service) ownProfile(ctx context.Context, caller requestcontext.Principal) (*domain.Profile, error) {
	p, err := s.store.ProfileByUser(ctx, caller.UserID)
	if err != nil {
		return nil, wrapStoreErr(err, "profile")
	}
	return p, nil
}

func (s *Service) loadProfile(ctx context.Context, profileID id.ProfileID) (*domain.Profile, error) {
	if profileID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "profile id is required")
	}
	p, err := s.store.Profiles.Get(ctx, profileID.String())
	if err != nil {
		return nil, wrapStoreErr(err, "profile")
	}
	return p, nil
}

// officerEntry builds an audit entry attributed to the calling officer.
func officerEntry(caller requestcontext.Principal, profileID id.ProfileID, action domain.AuditAction, field string, from, to any, reason string) domain.AuditEntry {
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

// customerEntry builds an audit entry attributed to the profile owner.
func customerEntry(caller requestcontext.Principal, profileID id.ProfileID, action domain.AuditAction, field string, from, to any) domain.AuditEntry {
	return domain.AuditEntry{
		ProfileID: profileID,
		Action:    action,
		ActorID:   caller.UserID,
		ActorRole: domain.ActorCustomer,
		FieldName: field,
		FromValue: from,
		ToValue:   to,
	}
}

func requireCaller(ctx context.Context) (requestcontext.Principal, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return caller, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return caller, nil
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
