package domain

import (
	"time"

	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
)

type AddressType string

const (
	AddressResidential    AddressType = "residential"
	AddressOffice         AddressType = "office"
	AddressCorrespondence AddressType = "correspondence"
)

var AddressTypes = []AddressType{AddressResidential, AddressOffice, AddressCorrespondence}

func (t AddressType) IsValid() bool {
	switch t {
	case AddressResidential, AddressOffice, AddressCorrespondence:
		return true
	}
	return false
}

// VerificationStatus is shared by addresses and documents.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

// IsDecided reports whether a verifier has already ruled on the item.
func (s VerificationStatus) IsDecided() bool {
	return s == VerificationVerified || s == VerificationRejected
}

// VerificationDecision is an officer's ruling on an address or document.
type VerificationDecision string

const (
	DecisionApproved VerificationDecision = "approved"
	DecisionRejected VerificationDecision = "rejected"
)

func (d VerificationDecision) IsValid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Outcome maps a decision to the resulting verification status.
func (d VerificationDecision) Outcome() VerificationStatus {
	if d == DecisionApproved {
		return VerificationVerified
	}
	return VerificationRejected
}

// Address is a postal address owned by a profile.
//
// Invariants (enforced by the profile service under the profile lock):
//   - at most one non-deleted address per profile has IsPrimary set
//   - at most MaxAddresses non-deleted addresses per profile
//   - editing a verified address resets it to unverified
type Address struct {
	ID                 id.AddressID       `json:"id"`
	ProfileID          id.ProfileID       `json:"profile_id"`
	Type               AddressType        `json:"type"`
	AddressLine1       string             `json:"address_line1"`
	AddressLine2       string             `json:"address_line2,omitempty"`
	City               string             `json:"city"`
	State              string             `json:"state"`
	PostalCode         string             `json:"postal_code"`
	Country            string             `json:"country"`
	IsPrimary          bool               `json:"is_primary"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	VerifiedBy         string             `json:"verified_by,omitempty"`
	Meta
}

func (a *Address) Key() string         { return a.ID.String() }
func (a *Address) Owner() id.ProfileID { return a.ProfileID }

// IsVerified reports whether the address counts towards completeness.
func (a *Address) IsVerified() bool {
	return !a.IsDeleted() && a.VerificationStatus == VerificationVerified
}

// AddressFields are the caller-editable postal fields. Nil means "leave unchanged".
type AddressFields struct {
	Type         *AddressType `json:"type,omitempty"`
	AddressLine1 *string      `json:"address_line1,omitempty"`
	AddressLine2 *string      `json:"address_line2,omitempty"`
	City         *string      `json:"city,omitempty"`
	State        *string      `json:"state,omitempty"`
	PostalCode   *string      `json:"postal_code,omitempty"`
	Country      *string      `json:"country,omitempty"`
	IsPrimary    *bool        `json:"is_primary,omitempty"`
}

// NewAddress builds an unverified address from a complete set of fields.
func NewAddress(profileID id.ProfileID, f AddressFields, now time.Time) (*Address, error) {
	if f.Type == nil || !f.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "address type must be residential, office or correspondence")
	}
	a := &Address{
		ID:                 id.NewAddressID(),
		ProfileID:          profileID,
		Type:               *f.Type,
		Country:            "India",
		VerificationStatus: VerificationUnverified,
		Meta:               Meta{CreatedAt: now, UpdatedAt: now},
	}
	a.apply(f)
	if a.AddressLine1 == "" || a.City == "" || a.State == "" || a.PostalCode == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "address_line1, city, state and postal_code are required")
	}
	if err := ValidatePostalCode(a.Country, a.PostalCode); err != nil {
		return nil, err
	}
	return a, nil
}

// ApplyEdit merges f into the address. Any edit of a verified (or rejected)
// address sends it back to unverified so it has to be verified again.
func (a *Address) ApplyEdit(f AddressFields, now time.Time) error {
	if f.Type != nil && !f.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "address type must be residential, office or correspondence")
	}
	before := *a
	a.apply(f)
	if a.AddressLine1 == "" || a.City == "" || a.State == "" || a.PostalCode == "" {
		*a = before
		return dErrors.New(dErrors.CodeValidation, "address_line1, city, state and postal_code must not be empty")
	}
	if err := ValidatePostalCode(a.Country, a.PostalCode); err != nil {
		*a = before
		return err
	}
	if a.VerificationStatus.IsDecided() {
		a.VerificationStatus = VerificationUnverified
		a.VerifiedAt = nil
		a.VerifiedBy = ""
	}
	a.UpdatedAt = now
	return nil
}

func (a *Address) apply(f AddressFields) {
	if f.Type != nil {
		a.Type = *f.Type
	}
	if f.AddressLine1 != nil {
		a.AddressLine1 = *f.AddressLine1
	}
	if f.AddressLine2 != nil {
		a.AddressLine2 = *f.AddressLine2
	}
	if f.City != nil {
		a.City = *f.City
	}
	if f.State != nil {
		a.State = *f.State
	}
	if f.PostalCode != nil {
		a.PostalCode = *f.PostalCode
	}
	if f.Country != nil && *f.Country != "" {
		a.Country = *f.Country
	}
	if f.IsPrimary != nil {
		a.IsPrimary = *f.IsPrimary
	}
}

// CanVerify rejects re-verification of an already decided address.
func (a *Address) CanVerify() error {
	if a.VerificationStatus.IsDecided() {
		return dErrors.Newf(dErrors.CodeConflict, "address already %s", a.VerificationStatus)
	}
	return nil
}

// ApplyVerification records an officer decision.
func (a *Address) ApplyVerification(decision VerificationDecision, verifier string, now time.Time) {
	a.VerificationStatus = decision.Outcome()
	a.VerifiedAt = &now
	a.VerifiedBy = verifier
	a.UpdatedAt = now
}
