package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"profile-service/internal/domain"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

type TrailSuite struct {
	suite.Suite
	trail     *Trail
	exporter  *recordingExporter
	ctx       context.Context
	profileID id.ProfileID
	base      time.Time
}

type recordingExporter struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (r *recordingExporter) Export(_ context.Context, e domain.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

type failingStore struct{}

func (failingStore) Append(context.Context, domain.AuditEntry) (domain.AuditEntry, error) {
	return domain.AuditEntry{}, errors.New("disk full")
}

func (failingStore) ListByProfile(context.Context, id.ProfileID) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (s *TrailSuite) SetupTest() {
	s.exporter = &recordingExporter{}
	s.trail = NewTrail(NewInMemoryStore(), WithExporter(s.exporter))
	s.ctx = requestcontext.WithRequestID(context.Background(), "req-1")
	s.profileID = id.NewProfileID()
	s.base = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
}

func TestTrailSuite(t *testing.T) {
	suite.Run(t, new(TrailSuite))
}

func (s *TrailSuite) appendAt(action domain.AuditAction, field string, ts time.Time) domain.AuditEntry {
	e, err := s.trail.Append(s.ctx, domain.AuditEntry{
		ProfileID: s.profileID,
		Action:    action,
		ActorID:   "user-1",
		ActorRole: domain.ActorCustomer,
		FieldName: field,
		Timestamp: ts,
	})
	s.Require().NoError(err)
	return e
}

func (s *TrailSuite) TestAppend() {
	s.Run("fills id, correlation id and exports", func() {
		e := s.appendAt(domain.AuditUpdate, "phone", s.base)
		s.False(e.ID == id.AuditEntryID{})
		s.Equal("req-1", e.CorrelationID)
		s.NotZero(e.Sequence)
		s.Len(s.exporter.entries, 1)
	})

	s.Run("rejects entries without profile or actor", func() {
		_, err := s.trail.Append(s.ctx, domain.AuditEntry{Action: domain.AuditUpdate, ActorID: "u"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = s.trail.Append(s.ctx, domain.AuditEntry{ProfileID: s.profileID, Action: domain.AuditUpdate})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = s.trail.Append(s.ctx, domain.AuditEntry{ProfileID: s.profileID, Action: "rename", ActorID: "u"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("store failure is reported to the caller", func() {
		trail := NewTrail(failingStore{})
		_, err := trail.Append(s.ctx, domain.AuditEntry{ProfileID: s.profileID, Action: domain.AuditCreate, ActorID: "u"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *TrailSuite) TestQueryOrdering() {
	first := s.appendAt(domain.AuditUpdate, "first_name", s.base)
	tieA := s.appendAt(domain.AuditUpdate, "last_name", s.base.Add(time.Minute))
	tieB := s.appendAt(domain.AuditUpdate, "email", s.base.Add(time.Minute))
	latest := s.appendAt(domain.AuditVerify, "kyc", s.base.Add(2*time.Minute))

	entries, err := s.trail.Query(s.ctx, s.profileID, 10, 0, "")
	s.Require().NoError(err)
	s.Require().Len(entries, 4)
	s.Equal(latest.ID, entries[0].ID)
	s.Equal(tieB.ID, entries[1].ID, "on a tie the later append is newer")
	s.Equal(tieA.ID, entries[2].ID)
	s.Equal(first.ID, entries[3].ID)
}

func (s *TrailSuite) TestQueryFiltersBeforePaginating() {
	for i := range 5 {
		s.appendAt(domain.AuditUpdate, "phone", s.base.Add(time.Duration(i)*time.Minute))
	}
	verify := s.appendAt(domain.AuditVerify, "address", s.base.Add(-time.Hour))

	// The only verify entry is the oldest overall; filtering after paging
	// would lose it from the first page.
	entries, err := s.trail.Query(s.ctx, s.profileID, 2, 0, domain.AuditVerify)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(verify.ID, entries[0].ID)

	page, err := s.trail.Query(s.ctx, s.profileID, 2, 4, domain.AuditUpdate)
	s.Require().NoError(err)
	s.Len(page, 1)

	empty, err := s.trail.Query(s.ctx, s.profileID, 2, 50, "")
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *TrailSuite) TestQueryValidation() {
	_, err := s.trail.Query(s.ctx, s.profileID, MaxQueryLimit+1, 0, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.trail.Query(s.ctx, s.profileID, 10, -1, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.trail.Query(s.ctx, s.profileID, 10, 0, "rename")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
