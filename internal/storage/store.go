package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"profile-service/internal/domain"
	id "profile-service/pkg/domain"
	"profile-service/pkg/platform/sentinel"
)

type (
	ProfileCollection    = Collection[domain.Profile, *domain.Profile]
	AddressCollection    = Collection[domain.Address, *domain.Address]
	KYCCollection        = Collection[domain.KYCWorkflow, *domain.KYCWorkflow]
	DocumentCollection   = Collection[domain.Document, *domain.Document]
	ConsentCollection    = Collection[domain.Consent, *domain.Consent]
	EnrichmentCollection = Collection[domain.Enrichment, *domain.Enrichment]
)

// Store groups the per-kind collections of the profile aggregate. It is the
// system of record for the lifetime of the process.
type Store struct {
	Profiles    *ProfileCollection
	Addresses   *AddressCollection
	KYC         *KYCCollection
	Documents   *DocumentCollection
	Consents    *ConsentCollection
	Enrichments *EnrichmentCollection

	// userIndex enforces one profile per user.
	userMu    sync.Mutex
	userIndex map[string]id.ProfileID
}

func New() *Store {
	return &Store{
		Profiles:    NewCollection[domain.Profile](),
		Addresses:   NewCollection[domain.Address](),
		KYC:         NewCollection[domain.KYCWorkflow](),
		Documents:   NewCollection[domain.Document](),
		Consents:    NewCollection[domain.Consent](),
		Enrichments: NewCollection[domain.Enrichment](),
		userIndex:   make(map[string]id.ProfileID),
	}
}

// CreateProfile inserts p unless its user already owns a live profile, in
// which case it returns sentinel.ErrConflict.
func (s *Store) CreateProfile(ctx context.Context, p *domain.Profile, now time.Time) error {
	s.userMu.Lock()
	defer s.userMu.Unlock()
	if existing, ok := s.userIndex[p.UserID]; ok {
		if _, err := s.Profiles.Get(ctx, existing.String()); err == nil {
			return sentinel.ErrConflict
		}
	}
	if err := s.Profiles.Create(ctx, p, now); err != nil {
		return err
	}
	s.userIndex[p.UserID] = p.ID
	return nil
}

// ProfileByUser returns the live profile owned by userID.
func (s *Store) ProfileByUser(ctx context.Context, userID string) (*domain.Profile, error) {
	s.userMu.Lock()
	profileID, ok := s.userIndex[userID]
	s.userMu.Unlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.Profiles.Get(ctx, profileID.String())
}

// ActiveKYC returns the profile's most recent workflow that is not rejected.
func (s *Store) ActiveKYC(ctx context.Context, profileID id.ProfileID) (*domain.KYCWorkflow, error) {
	workflows := s.KYC.ListByProfile(ctx, profileID)
	for i := len(workflows) - 1; i >= 0; i-- {
		if workflows[i].IsActive() {
			return workflows[i], nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// LatestKYC returns the profile's most recent workflow regardless of status.
func (s *Store) LatestKYC(ctx context.Context, profileID id.ProfileID) (*domain.KYCWorkflow, error) {
	workflows := s.KYC.ListByProfile(ctx, profileID)
	if len(workflows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return workflows[len(workflows)-1], nil
}

// ConsentByType returns the profile's consent record for consentType.
func (s *Store) ConsentByType(ctx context.Context, profileID id.ProfileID, consentType domain.ConsentType) (*domain.Consent, error) {
	for _, c := range s.Consents.ListByProfile(ctx, profileID) {
		if c.ConsentType == consentType {
			return c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// IsNotFound reports whether err is the store's not-found fact.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
