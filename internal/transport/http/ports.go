package httptransport

import (
	"context"
	"time"

	"profile-service/internal/completeness"
	"profile-service/internal/domain"
	"profile-service/internal/enrichment"
	"profile-service/internal/kyc"
	"profile-service/internal/profile"
	id "profile-service/pkg/domain"
)

// ProfileService is the customer-facing surface of the profile core.
type ProfileService interface {
	CreateProfile(ctx context.Context, in profile.NewProfileInput) (*domain.Profile, error)
	GetProfile(ctx context.Context, profileID id.ProfileID) (*profile.View, error)
	GetOwnProfile(ctx context.Context) (*profile.View, error)
	OwnProfileID(ctx context.Context) (id.ProfileID, error)
	UpdateOwnProfile(ctx context.Context, fields domain.ProfileFields) (*profile.View, error)
	GetCompleteness(ctx context.Context) (completeness.Report, error)
	GetAuditTrail(ctx context.Context, limit, offset int, action domain.AuditAction) ([]domain.AuditEntry, error)
	GetProfileAuditTrail(ctx context.Context, profileID id.ProfileID, limit, offset int, action domain.AuditAction) ([]domain.AuditEntry, error)

	ListAddresses(ctx context.Context, addrType domain.AddressType) ([]*domain.Address, error)
	CreateAddress(ctx context.Context, fields domain.AddressFields) (*domain.Address, error)
	UpdateAddress(ctx context.Context, addressID id.AddressID, fields domain.AddressFields) (*domain.Address, error)
	DeleteAddress(ctx context.Context, addressID id.AddressID) error
	VerifyAddress(ctx context.Context, addressID id.AddressID, decision domain.VerificationDecision) (*domain.Address, error)

	ListConsents(ctx context.Context) ([]*domain.Consent, error)
	DecideConsent(ctx context.Context, consentType domain.ConsentType, status domain.ConsentStatus, version string) (*domain.Consent, error)
	MissingMandatoryConsents(ctx context.Context) ([]domain.ConsentType, error)

	UploadDocument(ctx context.Context, in profile.DocumentUpload) (*domain.Document, error)
	ListDocuments(ctx context.Context, filter profile.DocumentFilter) ([]profile.DocumentView, error)
	VerifyDocument(ctx context.Context, documentID id.DocumentID, decision domain.VerificationDecision, notes string) (*domain.Document, error)
}

// KYCService drives verification workflows.
type KYCService interface {
	Requirements(kycType domain.KYCType) []domain.DocumentType
	Status(ctx context.Context, profileID id.ProfileID) (*domain.KYCWorkflow, error)
	Initiate(ctx context.Context, profileID id.ProfileID, kycType domain.KYCType) (*domain.KYCWorkflow, error)
	UpdateCheck(ctx context.Context, kycID id.KYCID, check domain.KYCCheck, verified bool) (*domain.KYCWorkflow, error)
	Reject(ctx context.Context, kycID id.KYCID, reason string) (*domain.KYCWorkflow, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// EnrichmentService is the maker-checker surface.
type EnrichmentService interface {
	Create(ctx context.Context, profileID id.ProfileID, data domain.EnrichmentData, makerID string) (*domain.Enrichment, error)
	Review(ctx context.Context, enrichmentID id.EnrichmentID, decision domain.CheckerDecision, checkerID, notes string) (*domain.Enrichment, error)
	Get(ctx context.Context, enrichmentID id.EnrichmentID) (*domain.Enrichment, error)
	List(ctx context.Context, profileID id.ProfileID) ([]*domain.Enrichment, error)
}

var (
	_ ProfileService    = (*profile.Service)(nil)
	_ KYCService        = (*kyc.Service)(nil)
	_ EnrichmentService = (*enrichment.Service)(nil)
)
