package completeness

import (
	"context"
	"time"

	"profile-service/internal/domain"
	"profile-service/internal/storage"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
)

// Refresher recomputes a profile's stored score from committed state. Callers
// hold the profile's lock so the inputs cannot change underneath it.
type Refresher struct {
	store   *storage.Store
	weights Weights
}

func NewRefresher(store *storage.Store, weights Weights) *Refresher {
	return &Refresher{store: store, weights: weights}
}

func (r *Refresher) Weights() Weights {
	return r.weights
}

// Report computes the score for profileID without writing it back.
func (r *Refresher) Report(ctx context.Context, profileID id.ProfileID) (*domain.Profile, Report, error) {
	p, err := r.store.Profiles.Get(ctx, profileID.String())
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, Report{}, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return p, Calculate(r.weights, r.input(ctx, p)), nil
}

// Refresh recomputes and stores completeness_percentage, returning the
// updated profile.
func (r *Refresher) Refresh(ctx context.Context, profileID id.ProfileID, now time.Time) (*domain.Profile, Report, error) {
	var report Report
	updated, err := r.store.Profiles.Update(ctx, profileID.String(), now, func(p *domain.Profile) error {
		report = Calculate(r.weights, r.input(ctx, p))
		p.CompletenessPercentage = report.Overall
		return nil
	})
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, Report{}, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store completeness")
	}
	return updated, report, nil
}

func (r *Refresher) input(ctx context.Context, p *domain.Profile) Input {
	return Input{
		Profile:   p,
		Addresses: r.store.Addresses.ListByProfile(ctx, p.ID),
		Documents: r.store.Documents.ListByProfile(ctx, p.ID),
	}
}
