package profile

import (
	"context"
	"time"

	"profile-service/internal/cache"
	"profile-service/internal/domain"
	"profile-service/internal/ratelimit"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

var addressKinds = []cache.Kind{cache.KindAddresses, cache.KindProfile}

// ListAddresses returns the caller's live addresses, optionally filtered by
// type. The unfiltered list is served from cache when possible.
func (s *Service) ListAddresses(ctx context.Context, addrType domain.AddressType) ([]*domain.Address, error) {
	if addrType != "" && !addrType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown address type %q", addrType)
	}
	profileID, err := s.OwnProfileID(ctx)
	if err != nil {
		return nil, err
	}
	addresses, ok := s.cache.GetAddresses(ctx, profileID)
	if !ok {
		addresses = s.store.Addresses.ListByProfile(ctx, profileID)
		s.cache.SetAddresses(ctx, profileID, addresses)
	}
	if addrType == "" {
		return addresses, nil
	}
	filtered := make([]*domain.Address, 0, len(addresses))
	for _, a := range addresses {
		if a.Type == addrType {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

// CreateAddress adds an unverified address to the caller's profile. A new
// primary address demotes the previous one.
func (s *Service) CreateAddress(ctx context.Context, fields domain.AddressFields) (*domain.Address, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	owner, err := s.ownProfile(ctx, caller)
	if err != nil {
		return nil, err
	}
	profileID := owner.ID
	address, err := domain.NewAddress(profileID, fields, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Check(ctx, ratelimit.ActionAddressAdd, caller.UserID); err != nil {
		return nil, err
	}

	err = s.mutate(ctx, profileID, func(ctx context.Context, now time.Time) (change, error) {
		live := s.store.Addresses.ListByProfile(ctx, profileID)
		if len(live) >= s.maxAddresses {
			return change{}, dErrors.Newf(dErrors.CodeValidation, "a profile may hold at most %d addresses", s.maxAddresses)
		}
		var entries []domain.AuditEntry
		if address.IsPrimary {
			demoted, err := s.demotePrimary(ctx, profileID, address.ID, now)
			if err != nil {
				return change{}, err
			}
			for _, d := range demoted {
				entries = append(entries, customerEntry(caller, profileID, domain.AuditUpdate, "address.is_primary", d.String(), address.ID.String()))
			}
		}
		if err := s.store.Addresses.Create(ctx, address, now); err != nil {
			return change{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create address")
		}
		entries = append(entries, customerEntry(caller, profileID, domain.AuditCreate, "address", nil, *address))
		return change{recompute: true, invalidate: addressKinds, entries: entries}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadAddress(ctx, address.ID)
}

// UpdateAddress edits one of the caller's addresses. Editing a decided
// address sends it back to unverified.
func (s *Service) UpdateAddress(ctx context.Context, addressID id.AddressID, fields domain.AddressFields) (*domain.Address, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	owner, err := s.ownProfile(ctx, caller)
	if err != nil {
		return nil, err
	}
	profileID := owner.ID

	var updated *domain.Address
	err = s.mutate(ctx, profileID, func(ctx context.Context, now time.Time) (change, error) {
		before, err := s.ownedAddress(ctx, profileID, addressID)
		if err != nil {
			return change{}, err
		}
		updated, err = s.store.Addresses.Update(ctx, addressID.String(), now, func(a *domain.Address) error {
			return a.ApplyEdit(fields, now)
		})
		if err != nil {
			return change{}, wrapStoreErr(err, "address")
		}
		var entries []domain.AuditEntry
		if updated.IsPrimary && !before.IsPrimary {
			demoted, err := s.demotePrimary(ctx, profileID, addressID, now)
			if err != nil {
				return change{}, err
			}
			for _, d := range demoted {
				entries = append(entries, customerEntry(caller, profileID, domain.AuditUpdate, "address.is_primary", d.String(), addressID.String()))
			}
		}
		entries = append(entries, customerEntry(caller, profileID, domain.AuditUpdate, "address", *before, *updated))
		return change{recompute: true, invalidate: addressKinds, entries: entries}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteAddress soft-deletes one of the caller's addresses.
func (s *Service) DeleteAddress(ctx context.Context, addressID id.AddressID) error {
	caller, err := requireCaller(ctx)
	if err != nil {
		return err
	}
	owner, err := s.ownProfile(ctx, caller)
	if err != nil {
		return err
	}
	profileID := owner.ID

	return s.mutate(ctx, profileID, func(ctx context.Context, now time.Time) (change, error) {
		before, err := s.ownedAddress(ctx, profileID, addressID)
		if err != nil {
			return change{}, err
		}
		if err := s.store.Addresses.SoftDelete(ctx, addressID.String(), now); err != nil {
			return change{}, wrapStoreErr(err, "address")
		}
		return change{
			recompute:  true,
			invalidate: addressKinds,
			entries:    []domain.AuditEntry{customerEntry(caller, profileID, domain.AuditDelete, "address", *before, nil)},
		}, nil
	})
}

// VerifyAddress records an officer's decision on a pending address.
func (s *Service) VerifyAddress(ctx context.Context, addressID id.AddressID, decision domain.VerificationDecision) (*domain.Address, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if !decision.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "decision must be approved or rejected")
	}
	current, err := s.loadAddress(ctx, addressID)
	if err != nil {
		return nil, err
	}
	profileID := current.ProfileID

	var verified *domain.Address
	err = s.mutate(ctx, profileID, func(ctx context.Context, now time.Time) (change, error) {
		var from domain.VerificationStatus
		verified, err = s.store.Addresses.Update(ctx, addressID.String(), now, func(a *domain.Address) error {
			if err := a.CanVerify(); err != nil {
				return err
			}
			from = a.VerificationStatus
			a.ApplyVerification(decision, caller.UserID, now)
			return nil
		})
		if err != nil {
			return change{}, wrapStoreErr(err, "address")
		}
		return change{
			recompute:  true,
			invalidate: addressKinds,
			entries: []domain.AuditEntry{officerEntry(caller, profileID, domain.AuditVerify,
				"address.verification_status", string(from), string(verified.VerificationStatus), addressID.String())},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "address verification recorded",
		"profile_id", profileID,
		"address_id", addressID,
		"decision", decision,
		"request_id", requestcontext.RequestID(ctx),
	)
	return verified, nil
}

// demotePrimary clears IsPrimary on every live address of profileID other
// than keep and returns the demoted IDs. Callers hold the profile lock.
func (s *Service) demotePrimary(ctx context.Context, profileID id.ProfileID, keep id.AddressID, now time.Time) ([]id.AddressID, error) {
	var demoted []id.AddressID
	for _, a := range s.store.Addresses.ListByProfile(ctx, profileID) {
		if a.ID == keep || !a.IsPrimary {
			continue
		}
		if _, err := s.store.Addresses.Update(ctx, a.Key(), now, func(a *domain.Address) error {
			a.IsPrimary = false
			return nil
		}); err != nil {
			return nil, wrapStoreErr(err, "address")
		}
		demoted = append(demoted, a.ID)
	}
	return demoted, nil
}

// ownedAddress loads addressID and hides addresses of other profiles.
func (s *Service) ownedAddress(ctx context.Context, profileID id.ProfileID, addressID id.AddressID) (*domain.Address, error) {
	a, err := s.loadAddress(ctx, addressID)
	if err != nil {
		return nil, err
	}
	if a.ProfileID != profileID {
		return nil, dErrors.New(dErrors.CodeNotFound, "address not found")
	}
	return a, nil
}

func (s *Service) loadAddress(ctx context.Context, addressID id.AddressID) (*domain.Address, error) {
	a, err := s.store.Addresses.Get(ctx, addressID.String())
	if err != nil {
		return nil, wrapStoreErr(err, "address")
	}
	return a, nil
}
