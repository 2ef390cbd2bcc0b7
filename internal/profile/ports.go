package profile

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Authorizer,DocumentStore,Mirror

import (
	"context"

	"profile-service/internal/clients"
	"profile-service/internal/domain"
)

// Authorizer decides third-party access to a profile. Implementations fail
// closed: any error is reported as false.
type Authorizer interface {
	CheckOwnership(ctx context.Context, userID, ownerID string) bool
	CheckPermission(ctx context.Context, userID, resourceType, resourceID, action string) bool
}

// DocumentStore holds document bytes outside this service.
type DocumentStore interface {
	Upload(ctx context.Context, u clients.Upload) (clients.Stored, error)
	DownloadURL(ctx context.Context, ref string) (string, error)
}

// Mirror replicates committed profile state to durable storage. It is best
// effort: failures are logged and counted, never surfaced.
type Mirror interface {
	SyncProfile(ctx context.Context, p *domain.Profile, addresses []*domain.Address) error
}
