package enrichment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"profile-service/internal/audit"
	"profile-service/internal/cache"
	"profile-service/internal/domain"
	"profile-service/internal/storage"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *storage.Store
	trail   *audit.Trail
	cache   *cache.Cache
	service *Service
	ctx     context.Context
	now     time.Time
	profile *domain.Profile
	data    domain.EnrichmentData
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = storage.New()
	s.trail = audit.NewTrail(audit.NewInMemoryStore())
	s.cache = cache.New(cache.NewMemoryBackend(time.Minute))
	s.service = NewService(s.store, storage.NewProfileLocker(), s.trail, s.cache)

	s.now = time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	p, err := domain.NewProfile("user-1", "t1", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateProfile(s.ctx, p, s.now))
	s.profile = p

	s.data = domain.EnrichmentData{
		RiskScore:             42.5,
		RiskGrade:             domain.RiskMedium,
		CreditGrade:           domain.CreditB,
		BackgroundCheckResult: domain.BackgroundClear,
		Notes:                 "bureau pull",
	}
}

func (s *ServiceSuite) storedProfile() *domain.Profile {
	p, err := s.store.Profiles.Get(s.ctx, s.profile.ID.String())
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) TestMakerCheckerScenario() {
	e, err := s.service.Create(s.ctx, s.profile.ID, s.data, "m1")
	s.Require().NoError(err)
	s.Equal(domain.EnrichmentPendingReview, e.Status)

	_, err = s.service.Review(s.ctx, e.ID, domain.CheckerApprove, "m1", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	unchanged, err := s.service.Get(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(domain.EnrichmentPendingReview, unchanged.Status)
	s.Empty(s.storedProfile().RiskGrade)

	approved, err := s.service.Review(s.ctx, e.ID, domain.CheckerApprove, "c1", "looks right")
	s.Require().NoError(err)
	s.Equal(domain.EnrichmentApproved, approved.Status)
	s.Equal("c1", approved.CheckerID)

	p := s.storedProfile()
	s.Equal(domain.RiskMedium, p.RiskGrade)
	s.Equal(domain.CreditB, p.CreditGrade)
	s.Equal(domain.BackgroundClear, p.BackgroundCheckStatus)
	s.Require().NotNil(p.RiskScore)
	s.Equal(42.5, *p.RiskScore)
	s.Equal("m1", p.EnrichedBy)
	s.Require().NotNil(p.EnrichedAt)
	s.Equal(s.now, *p.EnrichedAt)

	_, err = s.service.Review(s.ctx, e.ID, domain.CheckerReject, "c2", "")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal(domain.RiskMedium, s.storedProfile().RiskGrade)

	_, err = s.service.Review(s.ctx, e.ID, domain.CheckerApprove, "m1", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "self review is rejected before the state check")
}

func (s *ServiceSuite) TestRejectLeavesProfileUntouched() {
	e, err := s.service.Create(s.ctx, s.profile.ID, s.data, "m1")
	s.Require().NoError(err)
	before := s.storedProfile()

	rejected, err := s.service.Review(s.ctx, e.ID, domain.CheckerReject, "c1", "score too optimistic")
	s.Require().NoError(err)
	s.Equal(domain.EnrichmentRejected, rejected.Status)
	s.Equal(domain.CheckerReject, rejected.CheckerDecision)

	after := s.storedProfile()
	s.Equal(before.UpdatedAt, after.UpdatedAt)
	s.Nil(after.RiskScore)
	s.Empty(after.EnrichedBy)
}

func (s *ServiceSuite) TestApprovalInvalidatesProfileCache() {
	s.cache.SetProfile(s.ctx, s.profile)
	e, err := s.service.Create(s.ctx, s.profile.ID, s.data, "m1")
	s.Require().NoError(err)

	_, err = s.service.Review(s.ctx, e.ID, domain.CheckerApprove, "c1", "")
	s.Require().NoError(err)
	_, ok := s.cache.GetProfile(s.ctx, s.profile.ID)
	s.False(ok)
}

func (s *ServiceSuite) TestAuditRoles() {
	e, err := s.service.Create(s.ctx, s.profile.ID, s.data, "m1")
	s.Require().NoError(err)
	_, err = s.service.Review(s.ctx, e.ID, domain.CheckerApprove, "c1", "")
	s.Require().NoError(err)

	entries, err := s.trail.Query(s.ctx, s.profile.ID, 10, 0, domain.AuditEnrich)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(domain.ActorMaker, entries[1].ActorRole)
	s.Equal("m1", entries[1].ActorID)
	s.Equal(domain.ActorChecker, entries[0].ActorRole)
	s.Equal("c1", entries[0].ActorID)
}

func (s *ServiceSuite) TestValidation() {
	s.Run("unknown profile", func() {
		_, err := s.service.Create(s.ctx, id.NewProfileID(), s.data, "m1")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("out of range score", func() {
		bad := s.data
		bad.RiskScore = 101
		_, err := s.service.Create(s.ctx, s.profile.ID, bad, "m1")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown decision", func() {
		e, err := s.service.Create(s.ctx, s.profile.ID, s.data, "m1")
		s.Require().NoError(err)
		_, err = s.service.Review(s.ctx, e.ID, "escalate", "c1", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown enrichment", func() {
		_, err := s.service.Review(s.ctx, id.NewEnrichmentID(), domain.CheckerApprove, "c1", "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListAndOverdue() {
	first, err := s.service.Create(s.ctx, s.profile.ID, s.data, "m1")
	s.Require().NoError(err)
	second, err := s.service.Create(requestcontext.WithTime(s.ctx, s.now.Add(20*time.Hour)), s.profile.ID, s.data, "m2")
	s.Require().NoError(err)

	list, err := s.service.List(s.ctx, s.profile.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(first.ID, list[0].ID)
	s.Equal(second.ID, list[1].ID)

	overdue := s.service.Overdue(s.ctx, s.now.Add(25*time.Hour))
	s.Require().Len(overdue, 1)
	s.Equal(first.ID, overdue[0].ID)
}
