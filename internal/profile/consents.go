package profile

import (
	"context"
	"time"

	"profile-service/internal/domain"
	"profile-service/internal/storage"
	dErrors "profile-service/pkg/domain-errors"
)

const maxConsentVersionLen = 20

// ListConsents returns the caller's consent records.
func (s *Service) ListConsents(ctx context.Context) ([]*domain.Consent, error) {
	profileID, err := s.OwnProfileID(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.Consents.ListByProfile(ctx, profileID), nil
}

// DecideConsent records the caller's decision for consentType. A later
// decision overwrites the earlier one in place; repeating the current status
// and version changes nothing and is not audited.
func (s *Service) DecideConsent(ctx context.Context, consentType domain.ConsentType, status domain.ConsentStatus, version string) (*domain.Consent, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if !consentType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unsupported consent type %q", consentType)
	}
	if !status.IsDecision() {
		return nil, dErrors.New(dErrors.CodeValidation, "consent status must be accepted or rejected")
	}
	if version == "" || len(version) > maxConsentVersionLen {
		return nil, dErrors.Newf(dErrors.CodeValidation, "consent version must be 1 to %d characters", maxConsentVersionLen)
	}
	owner, err := s.ownProfile(ctx, caller)
	if err != nil {
		return nil, err
	}
	profileID := owner.ID

	var consent *domain.Consent
	err = s.mutate(ctx, profileID, func(ctx context.Context, now time.Time) (change, error) {
		existing, err := s.store.ConsentByType(ctx, profileID, consentType)
		switch {
		case err == nil:
			if existing.Status == status && existing.Version == version {
				consent = existing
				return change{}, nil
			}
			from := existing.Status
			consent, err = s.store.Consents.Update(ctx, existing.Key(), now, func(c *domain.Consent) error {
				return c.ApplyDecision(status, version, now)
			})
			if err != nil {
				return change{}, wrapStoreErr(err, "consent")
			}
			return change{entries: []domain.AuditEntry{customerEntry(caller, profileID, domain.AuditUpdate,
				"consent."+string(consentType), string(from), string(status))}}, nil
		case storage.IsNotFound(err):
			c, err := domain.NewConsent(profileID, consentType, now)
			if err != nil {
				return change{}, err
			}
			if err := c.ApplyDecision(status, version, now); err != nil {
				return change{}, err
			}
			if err := s.store.Consents.Create(ctx, c, now); err != nil {
				return change{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record consent")
			}
			consent = c
			return change{entries: []domain.AuditEntry{customerEntry(caller, profileID, domain.AuditCreate,
				"consent."+string(consentType), string(domain.ConsentPending), string(status))}}, nil
		default:
			return change{}, wrapStoreErr(err, "consent")
		}
	})
	if err != nil {
		return nil, err
	}
	return consent, nil
}

// MissingMandatoryConsents lists the mandatory consent types the caller has
// not accepted.
func (s *Service) MissingMandatoryConsents(ctx context.Context) ([]domain.ConsentType, error) {
	profileID, err := s.OwnProfileID(ctx)
	if err != nil {
		return nil, err
	}
	accepted := make(map[domain.ConsentType]bool)
	for _, c := range s.store.Consents.ListByProfile(ctx, profileID) {
		if c.Status == domain.ConsentAccepted {
			accepted[c.ConsentType] = true
		}
	}
	missing := []domain.ConsentType{}
	for _, t := range s.mandatoryConsents {
		if !accepted[t] {
			missing = append(missing, t)
		}
	}
	return missing, nil
}
