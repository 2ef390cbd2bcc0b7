package kyc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"profile-service/internal/audit"
	"profile-service/internal/cache"
	"profile-service/internal/completeness"
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
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = storage.New()
	s.trail = audit.NewTrail(audit.NewInMemoryStore())
	s.cache = cache.New(cache.NewMemoryBackend(time.Minute))
	refresher := completeness.NewRefresher(s.store, completeness.DefaultWeights)
	s.service = NewService(s.store, storage.NewProfileLocker(), s.trail, s.cache, refresher,
		WithValidity(30*24*time.Hour))

	s.now = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithCaller(s.ctx, requestcontext.Principal{UserID: "officer-1", TenantID: "t1", Role: "risk_officer"})

	p, err := domain.NewProfile("user-1", "t1", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateProfile(s.ctx, p, s.now))
	s.profile = p
}

func (s *ServiceSuite) storedProfile() *domain.Profile {
	p, err := s.store.Profiles.Get(s.ctx, s.profile.ID.String())
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) auditEntries() []domain.AuditEntry {
	entries, err := s.trail.Query(s.ctx, s.profile.ID, audit.MaxQueryLimit, 0, "")
	s.Require().NoError(err)
	return entries
}

func (s *ServiceSuite) verifyAll(kycID id.KYCID) *domain.KYCWorkflow {
	var w *domain.KYCWorkflow
	for _, c := range domain.KYCChecks {
		var err error
		w, err = s.service.UpdateCheck(s.ctx, kycID, c, true)
		s.Require().NoError(err)
	}
	return w
}

func (s *ServiceSuite) TestInitiate() {
	s.Run("creates in-progress workflow and mirrors status", func() {
		w, err := s.service.Initiate(s.ctx, s.profile.ID, domain.KYCTypeStandard)
		s.Require().NoError(err)
		s.Equal(domain.KYCStatusInProgress, w.Status)
		s.Equal([]domain.DocumentType{domain.DocumentPAN, domain.DocumentAadhar}, w.RequiredDocuments)
		s.False(w.Checks.IdentityVerified || w.Checks.AddressVerified || w.Checks.IncomeVerified || w.Checks.DocumentVerified)

		p := s.storedProfile()
		s.Equal(domain.KYCStatusInProgress, p.KYCStatus)
		s.Require().NotNil(p.KYCID)
		s.Equal(w.ID, *p.KYCID)
	})

	s.Run("second call returns existing workflow unchanged", func() {
		first, err := s.service.Status(s.ctx, s.profile.ID)
		s.Require().NoError(err)
		again, err := s.service.Initiate(s.ctx, s.profile.ID, domain.KYCTypeEnhanced)
		s.Require().NoError(err)
		s.Equal(first.ID, again.ID)
		s.Equal(domain.KYCTypeStandard, again.KYCType)
		s.Len(s.auditEntries(), 1)
	})

	s.Run("unknown profile", func() {
		_, err := s.service.Initiate(s.ctx, id.NewProfileID(), domain.KYCTypeStandard)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown kyc type", func() {
		_, err := s.service.Initiate(s.ctx, s.profile.ID, "premium")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestUpdateCheckCompletesWorkflow() {
	w, err := s.service.Initiate(s.ctx, s.profile.ID, domain.KYCTypeStandard)
	s.Require().NoError(err)

	for _, c := range domain.KYCChecks[:3] {
		w, err = s.service.UpdateCheck(s.ctx, w.ID, c, true)
		s.Require().NoError(err)
		s.Equal(domain.KYCStatusInProgress, w.Status)
		s.Nil(w.ExpiryDate)
	}
	s.NotNil(w.IdentityVerifiedAt)

	w, err = s.service.UpdateCheck(s.ctx, w.ID, domain.CheckDocument, true)
	s.Require().NoError(err)
	s.Equal(domain.KYCStatusVerified, w.Status)
	s.Require().NotNil(w.ExpiryDate)
	s.Equal(s.now.Add(30*24*time.Hour), *w.ExpiryDate)

	p := s.storedProfile()
	s.Equal(domain.KYCStatusVerified, p.KYCStatus)
	s.Require().NotNil(p.KYCVerifiedAt)
	s.Equal(s.now, *p.KYCVerifiedAt)
	s.Equal(*w.ExpiryDate, *p.KYCExpiryAt)
	s.Equal(20.0, p.CompletenessPercentage)

	_, err = s.service.UpdateCheck(s.ctx, w.ID, domain.CheckIncome, false)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "verified workflow is terminal")

	entries := s.auditEntries()
	s.Len(entries, 6, "initiate + four checks + completion")
	for _, e := range entries {
		s.Equal("officer-1", e.ActorID)
		s.Equal("risk_officer", e.ActorRole)
	}
}

func (s *ServiceSuite) TestUnverifiedCheckKeepsWorkflowOpen() {
	w, err := s.service.Initiate(s.ctx, s.profile.ID, domain.KYCTypeStandard)
	s.Require().NoError(err)

	w, err = s.service.UpdateCheck(s.ctx, w.ID, domain.CheckIdentity, true)
	s.Require().NoError(err)
	w, err = s.service.UpdateCheck(s.ctx, w.ID, domain.CheckIdentity, false)
	s.Require().NoError(err)
	s.False(w.Checks.IdentityVerified)
	s.Nil(w.IdentityVerifiedAt)

	for _, c := range []domain.KYCCheck{domain.CheckAddress, domain.CheckIncome, domain.CheckDocument} {
		w, err = s.service.UpdateCheck(s.ctx, w.ID, c, true)
		s.Require().NoError(err)
	}
	s.Equal(domain.KYCStatusInProgress, w.Status)
	s.Nil(w.ExpiryDate)
}

func (s *ServiceSuite) TestUpdateCheckUnknownWorkflow() {
	_, err := s.service.UpdateCheck(s.ctx, id.NewKYCID(), domain.CheckIdentity, true)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestStatusIsInvalidatedByUpdates() {
	w, err := s.service.Initiate(s.ctx, s.profile.ID, domain.KYCTypeStandard)
	s.Require().NoError(err)

	cached, err := s.service.Status(s.ctx, s.profile.ID)
	s.Require().NoError(err)
	s.False(cached.Checks.IdentityVerified)
	_, ok := s.cache.GetKYC(s.ctx, s.profile.ID)
	s.True(ok)

	_, err = s.service.UpdateCheck(s.ctx, w.ID, domain.CheckIdentity, true)
	s.Require().NoError(err)
	_, ok = s.cache.GetKYC(s.ctx, s.profile.ID)
	s.False(ok)

	fresh, err := s.service.Status(s.ctx, s.profile.ID)
	s.Require().NoError(err)
	s.True(fresh.Checks.IdentityVerified)
}

func (s *ServiceSuite) TestStatusNotInitiated() {
	_, err := s.service.Status(s.ctx, s.profile.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRejectAllowsReinitiation() {
	w, err := s.service.Initiate(s.ctx, s.profile.ID, domain.KYCTypeStandard)
	s.Require().NoError(err)

	_, err = s.service.Reject(s.ctx, w.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	rejected, err := s.service.Reject(s.ctx, w.ID, "document mismatch")
	s.Require().NoError(err)
	s.Equal(domain.KYCStatusRejected, rejected.Status)
	s.Equal(domain.KYCStatusRejected, s.storedProfile().KYCStatus)

	_, err = s.service.Reject(s.ctx, w.ID, "again")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	next, err := s.service.Initiate(s.ctx, s.profile.ID, domain.KYCTypeLegacy)
	s.Require().NoError(err)
	s.NotEqual(w.ID, next.ID)
	s.Equal(domain.KYCStatusInProgress, next.Status)
	s.Equal([]domain.DocumentType{domain.DocumentPAN}, next.RequiredDocuments)
}

func (s *ServiceSuite) TestExpireDue() {
	w, err := s.service.Initiate(s.ctx, s.profile.ID, domain.KYCTypeStandard)
	s.Require().NoError(err)
	w = s.verifyAll(w.ID)

	n, err := s.service.ExpireDue(context.Background(), s.now.Add(24*time.Hour))
	s.Require().NoError(err)
	s.Zero(n)

	soon := s.service.ExpiringWithin(s.ctx, s.now.Add(20*24*time.Hour), 15*24*time.Hour)
	s.Require().Len(soon, 1)
	s.Equal(w.ID, soon[0].ID)

	later := w.ExpiryDate.Add(time.Hour)
	n, err = s.service.ExpireDue(context.Background(), later)
	s.Require().NoError(err)
	s.Equal(1, n)

	p := s.storedProfile()
	s.Equal(domain.KYCStatusExpired, p.KYCStatus)
	s.Zero(p.CompletenessPercentage)

	n, err = s.service.ExpireDue(context.Background(), later)
	s.Require().NoError(err)
	s.Zero(n)

	latest := s.auditEntries()[0]
	s.Equal(domain.ActorSystem, latest.ActorID)
	s.Equal(string(domain.KYCStatusExpired), latest.ToValue)
}
