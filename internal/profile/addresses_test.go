package profile

import (
	"context"
	"time"

	"profile-service/internal/domain"
	"profile-service/internal/ratelimit"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

func addressFields(t domain.AddressType, primary bool) domain.AddressFields {
	line1, city, state, pin := "12 MG Road", "Bengaluru", "Karnataka", "560001"
	return domain.AddressFields{
		Type:         &t,
		AddressLine1: &line1,
		City:         &city,
		State:        &state,
		PostalCode:   &pin,
		IsPrimary:    &primary,
	}
}

func (s *ServiceSuite) primaryCount() int {
	n := 0
	for _, a := range s.store.Addresses.ListByProfile(s.customer, s.profile.ID) {
		if a.IsPrimary {
			n++
		}
	}
	return n
}

func (s *ServiceSuite) TestCreateAddress() {
	s.Run("new address is unverified and defaults to India", func() {
		a, err := s.service.CreateAddress(s.customer, addressFields(domain.AddressResidential, true))
		s.Require().NoError(err)
		s.Equal(domain.VerificationUnverified, a.VerificationStatus)
		s.Equal("India", a.Country)
		s.True(a.IsPrimary)

		entries := s.auditEntries(s.profile.ID)
		s.Require().Len(entries, 1)
		s.Equal(domain.AuditCreate, entries[0].Action)
		s.Equal("address", entries[0].FieldName)
		s.Equal(domain.ActorCustomer, entries[0].ActorRole)
	})

	s.Run("second primary demotes the first", func() {
		_, err := s.service.CreateAddress(s.customer, addressFields(domain.AddressOffice, true))
		s.Require().NoError(err)
		s.Equal(1, s.primaryCount())
	})

	s.Run("non-primary address leaves the primary alone", func() {
		_, err := s.service.CreateAddress(s.customer, addressFields(domain.AddressCorrespondence, false))
		s.Require().NoError(err)
		s.Equal(1, s.primaryCount())
	})

	s.Run("invalid PIN code is rejected", func() {
		f := addressFields(domain.AddressOffice, false)
		bad := "12345"
		f.PostalCode = &bad
		_, err := s.service.CreateAddress(s.customer, f)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestCreateAddress_Limit() {
	svc := s.newService(WithMaxAddresses(2))
	for range 2 {
		_, err := svc.CreateAddress(s.customer, addressFields(domain.AddressOffice, false))
		s.Require().NoError(err)
	}

	_, err := svc.CreateAddress(s.customer, addressFields(domain.AddressOffice, false))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Len(s.store.Addresses.ListByProfile(s.customer, s.profile.ID), 2)

	s.Run("deleted addresses free a slot", func() {
		first := s.store.Addresses.ListByProfile(s.customer, s.profile.ID)[0]
		s.Require().NoError(svc.DeleteAddress(s.customer, first.ID))
		_, err := svc.CreateAddress(s.customer, addressFields(domain.AddressOffice, false))
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestCreateAddress_RateLimited() {
	limiter := ratelimit.New(ratelimit.WithRules(map[ratelimit.Action]ratelimit.Rule{
		ratelimit.ActionAddressAdd: {Limit: 1, Window: time.Hour},
	}))
	svc := s.newService(WithLimiter(limiter))

	_, err := svc.CreateAddress(s.customer, addressFields(domain.AddressOffice, false))
	s.Require().NoError(err)
	_, err = svc.CreateAddress(s.customer, addressFields(domain.AddressOffice, false))
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
}

func (s *ServiceSuite) TestUpdateAddress() {
	home, err := s.service.CreateAddress(s.customer, addressFields(domain.AddressResidential, true))
	s.Require().NoError(err)
	office, err := s.service.CreateAddress(s.customer, addressFields(domain.AddressOffice, false))
	s.Require().NoError(err)

	s.Run("editing a verified address resets it to unverified", func() {
		_, err := s.service.VerifyAddress(s.officer, home.ID, domain.DecisionApproved)
		s.Require().NoError(err)
		s.InDelta(20.0, s.storedProfile().CompletenessPercentage, 0.001)

		city := "Mysuru"
		a, err := s.service.UpdateAddress(s.customer, home.ID, domain.AddressFields{City: &city})
		s.Require().NoError(err)
		s.Equal("Mysuru", a.City)
		s.Equal(domain.VerificationUnverified, a.VerificationStatus)
		s.Nil(a.VerifiedAt)
		s.InDelta(0.0, s.storedProfile().CompletenessPercentage, 0.001)
	})

	s.Run("promoting an address keeps a single primary", func() {
		primary := true
		a, err := s.service.UpdateAddress(s.customer, office.ID, domain.AddressFields{IsPrimary: &primary})
		s.Require().NoError(err)
		s.True(a.IsPrimary)
		s.Equal(1, s.primaryCount())
		stored, err := s.store.Addresses.Get(s.customer, home.ID.String())
		s.Require().NoError(err)
		s.False(stored.IsPrimary)
	})

	s.Run("another customer's address is not found", func() {
		other, err := domain.NewProfile("user-9", "t1", s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.CreateProfile(s.customer, other, s.now))
		otherCtx := requestcontext.WithCaller(s.customer, requestcontext.Principal{UserID: "user-9", Role: RoleCustomer})

		city := "Pune"
		_, err = s.service.UpdateAddress(otherCtx, home.ID, domain.AddressFields{City: &city})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown address is not found", func() {
		city := "Pune"
		_, err := s.service.UpdateAddress(s.customer, id.NewAddressID(), domain.AddressFields{City: &city})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestDeleteAddress() {
	a, err := s.service.CreateAddress(s.customer, addressFields(domain.AddressResidential, true))
	s.Require().NoError(err)

	s.Require().NoError(s.service.DeleteAddress(s.customer, a.ID))

	s.Empty(s.store.Addresses.ListByProfile(s.customer, s.profile.ID))
	s.Equal(domain.AuditDelete, s.latestEntry().Action)

	err = s.service.DeleteAddress(s.customer, a.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestVerifyAddress() {
	a, err := s.service.CreateAddress(s.customer, addressFields(domain.AddressResidential, true))
	s.Require().NoError(err)

	s.Run("approval verifies and credits the address share", func() {
		v, err := s.service.VerifyAddress(s.officer, a.ID, domain.DecisionApproved)
		s.Require().NoError(err)
		s.Equal(domain.VerificationVerified, v.VerificationStatus)
		s.Equal("officer-1", v.VerifiedBy)
		s.InDelta(20.0, s.storedProfile().CompletenessPercentage, 0.001)

		entry := s.latestEntry()
		s.Equal(domain.AuditVerify, entry.Action)
		s.Equal(RoleRiskOfficer, entry.ActorRole)
		s.Equal(string(domain.VerificationUnverified), entry.FromValue)
		s.Equal(string(domain.VerificationVerified), entry.ToValue)
	})

	s.Run("re-verifying a decided address conflicts", func() {
		_, err := s.service.VerifyAddress(s.officer, a.ID, domain.DecisionRejected)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown decision is rejected", func() {
		_, err := s.service.VerifyAddress(s.officer, a.ID, domain.VerificationDecision("maybe"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestListAddresses() {
	_, err := s.service.CreateAddress(s.customer, addressFields(domain.AddressResidential, true))
	s.Require().NoError(err)
	_, err = s.service.CreateAddress(s.customer, addressFields(domain.AddressOffice, false))
	s.Require().NoError(err)

	s.Run("lists all and caches the list", func() {
		all, err := s.service.ListAddresses(s.customer, "")
		s.Require().NoError(err)
		s.Len(all, 2)
		cached, ok := s.cache.GetAddresses(s.customer, s.profile.ID)
		s.True(ok)
		s.Len(cached, 2)
	})

	s.Run("filters by type", func() {
		offices, err := s.service.ListAddresses(s.customer, domain.AddressOffice)
		s.Require().NoError(err)
		s.Require().Len(offices, 1)
		s.Equal(domain.AddressOffice, offices[0].Type)
	})

	s.Run("mutation invalidates the cached list", func() {
		_, err := s.service.CreateAddress(s.customer, addressFields(domain.AddressCorrespondence, false))
		s.Require().NoError(err)
		_, ok := s.cache.GetAddresses(s.customer, s.profile.ID)
		s.False(ok)
	})

	s.Run("unknown type is rejected", func() {
		_, err := s.service.ListAddresses(s.customer, domain.AddressType("holiday"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestConcurrentPrimaryAddresses() {
	const n = 8
	errs := make(chan error, n)
	for range n {
		go func() {
			_, err := s.service.CreateAddress(context.WithoutCancel(s.customer), addressFields(domain.AddressResidential, true))
			errs <- err
		}()
	}
	for range n {
		s.Require().NoError(<-errs)
	}
	s.Len(s.store.Addresses.ListByProfile(s.customer, s.profile.ID), n)
	s.Equal(1, s.primaryCount())
}
