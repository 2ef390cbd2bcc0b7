package profile

import (
	"time"

	"profile-service/internal/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

func (s *ServiceSuite) TestDecideConsent() {
	s.Run("first decision creates the record", func() {
		c, err := s.service.DecideConsent(s.customer, domain.ConsentDataUsage, domain.ConsentAccepted, "v1")
		s.Require().NoError(err)
		s.Equal(domain.ConsentAccepted, c.Status)
		s.Equal("v1", c.Version)
		s.Require().NotNil(c.AcceptedAt)
		s.Equal(s.now, *c.AcceptedAt)

		entry := s.latestEntry()
		s.Equal(domain.AuditCreate, entry.Action)
		s.Equal("consent.data_usage", entry.FieldName)
	})

	s.Run("later decision overwrites in place", func() {
		later := requestcontext.WithTime(s.customer, s.now.Add(time.Hour))
		c, err := s.service.DecideConsent(later, domain.ConsentDataUsage, domain.ConsentRejected, "v2")
		s.Require().NoError(err)
		s.Equal(domain.ConsentRejected, c.Status)
		s.Nil(c.AcceptedAt)

		consents, err := s.service.ListConsents(s.customer)
		s.Require().NoError(err)
		s.Require().Len(consents, 1)
		s.Equal(c.ID, consents[0].ID)
		s.Equal("v2", consents[0].Version)

		entry := s.latestEntry()
		s.Equal(domain.AuditUpdate, entry.Action)
		s.Equal(string(domain.ConsentAccepted), entry.FromValue)
		s.Equal(string(domain.ConsentRejected), entry.ToValue)
	})

	s.Run("repeating the current decision is not audited", func() {
		before := len(s.auditEntries(s.profile.ID))
		c, err := s.service.DecideConsent(s.customer, domain.ConsentDataUsage, domain.ConsentRejected, "v2")
		s.Require().NoError(err)
		s.Equal(domain.ConsentRejected, c.Status)
		s.Len(s.auditEntries(s.profile.ID), before)

		_, err = s.service.DecideConsent(s.customer, domain.ConsentDataUsage, domain.ConsentRejected, "v3")
		s.Require().NoError(err)
		s.Len(s.auditEntries(s.profile.ID), before+1, "a new version is a change")
	})

	s.Run("invalid input is rejected", func() {
		_, err := s.service.DecideConsent(s.customer, domain.ConsentType("telemetry"), domain.ConsentAccepted, "v1")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.DecideConsent(s.customer, domain.ConsentDataUsage, domain.ConsentPending, "v1")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.DecideConsent(s.customer, domain.ConsentDataUsage, domain.ConsentAccepted, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestMissingMandatoryConsents() {
	missing, err := s.service.MissingMandatoryConsents(s.customer)
	s.Require().NoError(err)
	s.Equal([]domain.ConsentType{domain.ConsentTermsAndConditions, domain.ConsentDataUsage}, missing)

	_, err = s.service.DecideConsent(s.customer, domain.ConsentTermsAndConditions, domain.ConsentAccepted, "2026.1")
	s.Require().NoError(err)
	_, err = s.service.DecideConsent(s.customer, domain.ConsentDataUsage, domain.ConsentRejected, "2026.1")
	s.Require().NoError(err)

	missing, err = s.service.MissingMandatoryConsents(s.customer)
	s.Require().NoError(err)
	s.Equal([]domain.ConsentType{domain.ConsentDataUsage}, missing)

	_, err = s.service.DecideConsent(s.customer, domain.ConsentDataUsage, domain.ConsentAccepted, "2026.1")
	s.Require().NoError(err)
	missing, err = s.service.MissingMandatoryConsents(s.customer)
	s.Require().NoError(err)
	s.Empty(missing)
}
