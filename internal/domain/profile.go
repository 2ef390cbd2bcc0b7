package domain

import (
	"time"

	"github.com/shopspring/decimal"

	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
)

type ProfileStatus string

const (
	ProfileStatusActive    ProfileStatus = "active"
	ProfileStatusInactive  ProfileStatus = "inactive"
	ProfileStatusSuspended ProfileStatus = "suspended"
	ProfileStatusDeleted   ProfileStatus = "deleted"
)

var ProfileStatuses = []ProfileStatus{
	ProfileStatusActive, ProfileStatusInactive, ProfileStatusSuspended, ProfileStatusDeleted,
}

type Gender string

const (
	GenderMale           Gender = "male"
	GenderFemale         Gender = "female"
	GenderOther          Gender = "other"
	GenderPreferNotToSay Gender = "prefer_not_to_say"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderPreferNotToSay:
		return true
	}
	return false
}

type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "single"
	MaritalMarried  MaritalStatus = "married"
	MaritalDivorced MaritalStatus = "divorced"
	MaritalWidowed  MaritalStatus = "widowed"
)

func (m MaritalStatus) IsValid() bool {
	switch m {
	case MaritalSingle, MaritalMarried, MaritalDivorced, MaritalWidowed:
		return true
	}
	return false
}

type EmploymentStatus string

const (
	EmploymentEmployed     EmploymentStatus = "employed"
	EmploymentSelfEmployed EmploymentStatus = "self_employed"
	EmploymentUnemployed   EmploymentStatus = "unemployed"
	EmploymentRetired      EmploymentStatus = "retired"
	EmploymentStudent      EmploymentStatus = "student"
)

func (e EmploymentStatus) IsValid() bool {
	switch e {
	case EmploymentEmployed, EmploymentSelfEmployed, EmploymentUnemployed, EmploymentRetired, EmploymentStudent:
		return true
	}
	return false
}

// Profile is the aggregate root for a customer.
//
// Invariants:
//   - exactly one Profile per UserID (enforced by the store)
//   - identity fields (AadhaarID, PANID, PassportID) are set at creation only
//   - KYC and enrichment fields are written only by their workflows
//   - CompletenessPercentage is derived; it is recomputed after every mutation
//     of the profile, its addresses or its documents
type Profile struct {
	ID       id.ProfileID `json:"id"`
	UserID   string       `json:"user_id"`
	TenantID string       `json:"tenant_id"`
	Status   ProfileStatus `json:"status"`

	FirstName        string           `json:"first_name,omitempty"`
	LastName         string           `json:"last_name,omitempty"`
	FullName         string           `json:"full_name,omitempty"`
	DateOfBirth      string           `json:"date_of_birth,omitempty"`
	Gender           Gender           `json:"gender,omitempty"`
	MaritalStatus    MaritalStatus    `json:"marital_status,omitempty"`
	Phone            string           `json:"phone,omitempty"`
	AlternativePhone string           `json:"alternative_phone,omitempty"`
	Email            string           `json:"email,omitempty"`
	OccupationType   string           `json:"occupation_type,omitempty"`
	EmployerName     string           `json:"employer_name,omitempty"`
	JobTitle         string           `json:"job_title,omitempty"`
	EmploymentStatus EmploymentStatus `json:"employment_status,omitempty"`
	AnnualIncome     *decimal.Decimal `json:"annual_income,omitempty"`

	PANID      string `json:"pan_id,omitempty"`
	AadhaarID  string `json:"aadhaar_id,omitempty"`
	PassportID string `json:"passport_id,omitempty"`

	SalaryAccountNumber string `json:"salary_account_number,omitempty"`
	SalaryAccountIFSC   string `json:"salary_account_ifsc,omitempty"`
	BankName            string `json:"bank_name,omitempty"`

	KYCStatus          KYCStatus  `json:"kyc_status"`
	KYCID              *id.KYCID  `json:"kyc_id,omitempty"`
	KYCVerifiedAt      *time.Time `json:"kyc_verified_at,omitempty"`
	KYCExpiryAt        *time.Time `json:"kyc_expiry_at,omitempty"`
	IdentityVerifiedAt *time.Time `json:"identity_verified_at,omitempty"`
	AddressVerifiedAt  *time.Time `json:"address_verified_at,omitempty"`
	IncomeVerifiedAt   *time.Time `json:"income_verified_at,omitempty"`
	DocumentVerifiedAt *time.Time `json:"document_verified_at,omitempty"`

	RiskScore             *float64              `json:"risk_score,omitempty"`
	RiskGrade             RiskGrade             `json:"risk_grade,omitempty"`
	CreditGrade           CreditGrade           `json:"credit_grade,omitempty"`
	BackgroundCheckStatus BackgroundCheckResult `json:"background_check_status,omitempty"`
	EnrichedAt            *time.Time            `json:"enriched_at,omitempty"`
	EnrichedBy            string                `json:"enriched_by,omitempty"`

	CompletenessPercentage float64 `json:"completeness_percentage"`

	CreatedBy string `json:"created_by,omitempty"`
	UpdatedBy string `json:"updated_by,omitempty"`
	Meta
}

// Key and Owner satisfy the store record contract.
func (p *Profile) Key() string          { return p.ID.String() }
func (p *Profile) Owner() id.ProfileID  { return p.ID }

// NewProfile constructs an active profile with KYC pending.
func NewProfile(userID, tenantID string, now time.Time) (*Profile, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user_id is required")
	}
	if tenantID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant_id is required")
	}
	return &Profile{
		ID:        id.NewProfileID(),
		UserID:    userID,
		TenantID:  tenantID,
		Status:    ProfileStatusActive,
		KYCStatus: KYCStatusPending,
		Meta:      Meta{CreatedAt: now, UpdatedAt: now},
	}, nil
}

// IsOwnedBy reports whether userID owns the profile.
func (p *Profile) IsOwnedBy(userID string) bool {
	return userID != "" && p.UserID == userID
}

// ApplyKYC mirrors workflow state onto the profile.
func (p *Profile) ApplyKYC(w *KYCWorkflow) {
	kycID := w.ID
	p.KYCID = &kycID
	p.KYCStatus = w.Status
	p.IdentityVerifiedAt = w.IdentityVerifiedAt
	p.AddressVerifiedAt = w.AddressVerifiedAt
	p.IncomeVerifiedAt = w.IncomeVerifiedAt
	p.DocumentVerifiedAt = w.DocumentVerifiedAt
	if w.Status == KYCStatusVerified {
		p.KYCVerifiedAt = w.VerifiedAt
		p.KYCExpiryAt = w.ExpiryDate
	}
}

// ApplyEnrichment copies approved risk and credit fields onto the profile.
func (p *Profile) ApplyEnrichment(e *Enrichment, now time.Time) {
	score := e.RiskScore
	p.RiskScore = &score
	p.RiskGrade = e.RiskGrade
	p.CreditGrade = e.CreditGrade
	p.BackgroundCheckStatus = e.BackgroundCheckResult
	p.EnrichedAt = &now
	p.EnrichedBy = e.MakerID
}
