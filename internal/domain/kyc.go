package domain

import (
	"time"

	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
)

type KYCStatus string

const (
	KYCStatusPending    KYCStatus = "pending"
	KYCStatusInProgress KYCStatus = "in_progress"
	KYCStatusVerified   KYCStatus = "verified"
	KYCStatusRejected   KYCStatus = "rejected"
	KYCStatusExpired    KYCStatus = "expired"
)

var KYCStatuses = []KYCStatus{
	KYCStatusPending, KYCStatusInProgress, KYCStatusVerified, KYCStatusRejected, KYCStatusExpired,
}

// IsTerminal reports whether checks can no longer change.
func (s KYCStatus) IsTerminal() bool {
	return s == KYCStatusVerified || s == KYCStatusRejected || s == KYCStatusExpired
}

// CanTransitionTo encodes the workflow graph:
// in_progress -> verified | rejected, verified -> expired.
func (s KYCStatus) CanTransitionTo(target KYCStatus) bool {
	switch s {
	case KYCStatusPending:
		return target == KYCStatusInProgress
	case KYCStatusInProgress:
		return target == KYCStatusVerified || target == KYCStatusRejected
	case KYCStatusVerified:
		return target == KYCStatusExpired
	}
	return false
}

type KYCType string

const (
	KYCTypeStandard KYCType = "standard"
	KYCTypeEnhanced KYCType = "enhanced"
	KYCTypeLegacy   KYCType = "legacy"
)

func (t KYCType) IsValid() bool {
	return t == KYCTypeStandard || t == KYCTypeEnhanced || t == KYCTypeLegacy
}

// KYCCheck names one of the four independent verification checks.
type KYCCheck string

const (
	CheckIdentity KYCCheck = "identity_verified"
	CheckAddress  KYCCheck = "address_verified"
	CheckIncome   KYCCheck = "income_verified"
	CheckDocument KYCCheck = "document_verified"
)

var KYCChecks = []KYCCheck{CheckIdentity, CheckAddress, CheckIncome, CheckDocument}

func ParseKYCCheck(s string) (KYCCheck, error) {
	for _, c := range KYCChecks {
		if string(c) == s {
			return c, nil
		}
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown kyc check %q", s)
}

// CompletedChecks holds the four check flags.
type CompletedChecks struct {
	IdentityVerified bool `json:"identity_verified"`
	AddressVerified  bool `json:"address_verified"`
	IncomeVerified   bool `json:"income_verified"`
	DocumentVerified bool `json:"document_verified"`
}

// All reports whether every check has passed.
func (c CompletedChecks) All() bool {
	return c.IdentityVerified && c.AddressVerified && c.IncomeVerified && c.DocumentVerified
}

// KYCWorkflow aggregates four verification checks into an overall status.
//
// Invariant: Status is verified iff all four checks are true; ExpiryDate is
// stamped exactly on that transition.
type KYCWorkflow struct {
	ID                 id.KYCID        `json:"id"`
	ProfileID          id.ProfileID    `json:"profile_id"`
	KYCType            KYCType         `json:"kyc_type"`
	Status             KYCStatus       `json:"status"`
	RequiredDocuments  []DocumentType  `json:"required_documents"`
	Checks             CompletedChecks `json:"completed_checks"`
	IdentityVerifiedAt *time.Time      `json:"identity_verification_date,omitempty"`
	AddressVerifiedAt  *time.Time      `json:"address_verification_date,omitempty"`
	IncomeVerifiedAt   *time.Time      `json:"income_verification_date,omitempty"`
	DocumentVerifiedAt *time.Time      `json:"document_verification_date,omitempty"`
	VerifiedAt         *time.Time      `json:"verified_at,omitempty"`
	ExpiryDate         *time.Time      `json:"expiry_date,omitempty"`
	RejectionReason    string          `json:"rejection_reason,omitempty"`
	Meta
}

func (w *KYCWorkflow) Key() string         { return w.ID.String() }
func (w *KYCWorkflow) Owner() id.ProfileID { return w.ProfileID }

// NewKYCWorkflow starts a workflow in_progress with all checks false.
func NewKYCWorkflow(profileID id.ProfileID, kycType KYCType, required []DocumentType, now time.Time) *KYCWorkflow {
	docs := make([]DocumentType, len(required))
	copy(docs, required)
	return &KYCWorkflow{
		ID:                id.NewKYCID(),
		ProfileID:         profileID,
		KYCType:           kycType,
		Status:            KYCStatusInProgress,
		RequiredDocuments: docs,
		Meta:              Meta{CreatedAt: now, UpdatedAt: now},
	}
}

// IsActive reports whether the workflow blocks a new initiation.
func (w *KYCWorkflow) IsActive() bool {
	return w.Status != KYCStatusRejected
}

// CanUpdateCheck rejects check updates on a decided workflow.
func (w *KYCWorkflow) CanUpdateCheck() error {
	if w.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeConflict, "kyc workflow is %s", w.Status)
	}
	return nil
}

// ApplyCheck sets one check and completes the workflow when all four pass.
// It returns true when this call moved the workflow to verified.
func (w *KYCWorkflow) ApplyCheck(check KYCCheck, verified bool, validity time.Duration, now time.Time) bool {
	flag, stamp := w.checkSlot(check)
	if verified && !*flag {
		*stamp = &now
	}
	if !verified {
		*stamp = nil
	}
	*flag = verified
	w.UpdatedAt = now

	if w.Checks.All() && w.Status.CanTransitionTo(KYCStatusVerified) {
		expiry := now.Add(validity)
		w.Status = KYCStatusVerified
		w.VerifiedAt = &now
		w.ExpiryDate = &expiry
		return true
	}
	return false
}

func (w *KYCWorkflow) checkSlot(check KYCCheck) (*bool, **time.Time) {
	switch check {
	case CheckIdentity:
		return &w.Checks.IdentityVerified, &w.IdentityVerifiedAt
	case CheckAddress:
		return &w.Checks.AddressVerified, &w.AddressVerifiedAt
	case CheckIncome:
		return &w.Checks.IncomeVerified, &w.IncomeVerifiedAt
	default:
		return &w.Checks.DocumentVerified, &w.DocumentVerifiedAt
	}
}

// CanReject allows rejection only while in progress.
func (w *KYCWorkflow) CanReject() error {
	if !w.Status.CanTransitionTo(KYCStatusRejected) {
		return dErrors.Newf(dErrors.CodeConflict, "kyc workflow is %s", w.Status)
	}
	return nil
}

func (w *KYCWorkflow) ApplyRejection(reason string, now time.Time) {
	w.Status = KYCStatusRejected
	w.RejectionReason = reason
	w.UpdatedAt = now
}

// IsExpiredAt reports whether a verified workflow has passed its expiry date.
func (w *KYCWorkflow) IsExpiredAt(now time.Time) bool {
	return w.Status == KYCStatusVerified && w.ExpiryDate != nil && !now.Before(*w.ExpiryDate)
}

func (w *KYCWorkflow) ApplyExpiry(now time.Time) {
	w.Status = KYCStatusExpired
	w.UpdatedAt = now
}

// ExpiresWithin reports whether a verified workflow expires inside window.
func (w *KYCWorkflow) ExpiresWithin(now time.Time, window time.Duration) bool {
	return w.Status == KYCStatusVerified && w.ExpiryDate != nil && w.ExpiryDate.Sub(now) <= window
}
