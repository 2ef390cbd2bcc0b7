// Package domain holds typed identifiers shared across bounded contexts.
//
// Every entity in the profile aggregate is addressed by a distinct UUID-backed
// type so a document ID can never be passed where an address ID is expected.
// Parse* functions are the trust-boundary constructors: they reject empty,
// malformed and nil UUIDs with CodeInvalidInput.
package domain

import (
	"github.com/google/uuid"

	dErrors "profile-service/pkg/domain-errors"
)

type (
	ProfileID    uuid.UUID
	AddressID    uuid.UUID
	KYCID        uuid.UUID
	DocumentID   uuid.UUID
	ConsentID    uuid.UUID
	EnrichmentID uuid.UUID
	AuditEntryID uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return u, nil
}

func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID("profile id", s)
	return ProfileID(u), err
}

func ParseAddressID(s string) (AddressID, error) {
	u, err := parseUUID("address id", s)
	return AddressID(u), err
}

func ParseKYCID(s string) (KYCID, error) {
	u, err := parseUUID("kyc id", s)
	return KYCID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID("document id", s)
	return DocumentID(u), err
}

func ParseConsentID(s string) (ConsentID, error) {
	u, err := parseUUID("consent id", s)
	return ConsentID(u), err
}

func ParseEnrichmentID(s string) (EnrichmentID, error) {
	u, err := parseUUID("enrichment id", s)
	return EnrichmentID(u), err
}

func NewProfileID() ProfileID       { return ProfileID(uuid.New()) }
func NewAddressID() AddressID       { return AddressID(uuid.New()) }
func NewKYCID() KYCID               { return KYCID(uuid.New()) }
func NewDocumentID() DocumentID     { return DocumentID(uuid.New()) }
func NewConsentID() ConsentID       { return ConsentID(uuid.New()) }
func NewEnrichmentID() EnrichmentID { return EnrichmentID(uuid.New()) }
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

func (id ProfileID) String() string    { return uuid.UUID(id).String() }
func (id AddressID) String() string    { return uuid.UUID(id).String() }
func (id KYCID) String() string        { return uuid.UUID(id).String() }
func (id DocumentID) String() string   { return uuid.UUID(id).String() }
func (id ConsentID) String() string    { return uuid.UUID(id).String() }
func (id EnrichmentID) String() string { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string { return uuid.UUID(id).String() }

func (id ProfileID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id KYCID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// Text marshalling keeps IDs as canonical strings in JSON (cache snapshots, API).

func (id ProfileID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id AddressID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id KYCID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id DocumentID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id ConsentID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id EnrichmentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id AuditEntryID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *ProfileID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AddressID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *KYCID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DocumentID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ConsentID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EnrichmentID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AuditEntryID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
