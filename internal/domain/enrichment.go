package domain

import (
	"time"

	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
)

type RiskGrade string

const (
	RiskLow      RiskGrade = "low"
	RiskMedium   RiskGrade = "medium"
	RiskHigh     RiskGrade = "high"
	RiskVeryHigh RiskGrade = "very_high"
)

func (g RiskGrade) IsValid() bool {
	switch g {
	case RiskLow, RiskMedium, RiskHigh, RiskVeryHigh:
		return true
	}
	return false
}

type CreditGrade string

const (
	CreditA CreditGrade = "A"
	CreditB CreditGrade = "B"
	CreditC CreditGrade = "C"
	CreditD CreditGrade = "D"
	CreditE CreditGrade = "E"
)

func (g CreditGrade) IsValid() bool {
	switch g {
	case CreditA, CreditB, CreditC, CreditD, CreditE:
		return true
	}
	return false
}

type BackgroundCheckResult string

const (
	BackgroundClear  BackgroundCheckResult = "clear"
	BackgroundReview BackgroundCheckResult = "review"
	BackgroundFlag   BackgroundCheckResult = "flag"
)

func (r BackgroundCheckResult) IsValid() bool {
	return r == BackgroundClear || r == BackgroundReview || r == BackgroundFlag
}

type EnrichmentStatus string

const (
	EnrichmentPendingReview EnrichmentStatus = "pending_review"
	EnrichmentApproved      EnrichmentStatus = "approved"
	EnrichmentRejected      EnrichmentStatus = "rejected"
)

type CheckerDecision string

const (
	CheckerApprove CheckerDecision = "approve"
	CheckerReject  CheckerDecision = "reject"
)

func (d CheckerDecision) IsValid() bool {
	return d == CheckerApprove || d == CheckerReject
}

// EnrichmentData is the maker's submission.
type EnrichmentData struct {
	RiskScore             float64               `json:"risk_score"`
	RiskGrade             RiskGrade             `json:"risk_grade"`
	CreditGrade           CreditGrade           `json:"credit_grade"`
	BackgroundCheckResult BackgroundCheckResult `json:"background_check_result"`
	Notes                 string                `json:"verification_notes,omitempty"`
}

// Validate checks ranges and enum membership.
func (d EnrichmentData) Validate() error {
	if d.RiskScore < 0 || d.RiskScore > 100 {
		return dErrors.New(dErrors.CodeValidation, "risk_score must be between 0 and 100")
	}
	if !d.RiskGrade.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "risk_grade must be low, medium, high or very_high")
	}
	if !d.CreditGrade.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "credit_grade must be A to E")
	}
	if !d.BackgroundCheckResult.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "background_check_result must be clear, review or flag")
	}
	if len(d.Notes) > 1000 {
		return dErrors.New(dErrors.CodeValidation, "verification_notes must be at most 1000 characters")
	}
	return nil
}

// Enrichment is a maker-checker proposal of risk and credit attributes.
//
// Invariants:
//   - CheckerID never equals MakerID
//   - approved and rejected are terminal; a decided enrichment is never reviewed again
//   - approval copies the proposal onto the owning profile in the same step
type Enrichment struct {
	ID                    id.EnrichmentID       `json:"id"`
	ProfileID             id.ProfileID          `json:"profile_id"`
	RiskScore             float64               `json:"risk_score"`
	RiskGrade             RiskGrade             `json:"risk_grade"`
	CreditGrade           CreditGrade           `json:"credit_grade"`
	BackgroundCheckResult BackgroundCheckResult `json:"background_check_result"`
	MakerID               string                `json:"maker_id"`
	MakerNotes            string                `json:"maker_notes,omitempty"`
	MakerSubmittedAt      time.Time             `json:"maker_submitted_at"`
	CheckerID             string                `json:"checker_id,omitempty"`
	CheckerNotes          string                `json:"checker_notes,omitempty"`
	CheckerDecision       CheckerDecision       `json:"checker_decision,omitempty"`
	CheckerReviewedAt     *time.Time            `json:"checker_reviewed_at,omitempty"`
	Status                EnrichmentStatus      `json:"status"`
	Meta
}

func (e *Enrichment) Key() string         { return e.ID.String() }
func (e *Enrichment) Owner() id.ProfileID { return e.ProfileID }

func NewEnrichment(profileID id.ProfileID, data EnrichmentData, makerID string, now time.Time) (*Enrichment, error) {
	if makerID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "maker id is required")
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &Enrichment{
		ID:                    id.NewEnrichmentID(),
		ProfileID:             profileID,
		RiskScore:             data.RiskScore,
		RiskGrade:             data.RiskGrade,
		CreditGrade:           data.CreditGrade,
		BackgroundCheckResult: data.BackgroundCheckResult,
		MakerID:               makerID,
		MakerNotes:            data.Notes,
		MakerSubmittedAt:      now,
		Status:                EnrichmentPendingReview,
		Meta:                  Meta{CreatedAt: now, UpdatedAt: now},
	}, nil
}

// CanReview enforces segregation of duties before the state check, so a
// maker reviewing their own decided enrichment still gets a validation error.
func (e *Enrichment) CanReview(checkerID string) error {
	if checkerID == "" {
		return dErrors.New(dErrors.CodeValidation, "checker id is required")
	}
	if checkerID == e.MakerID {
		return dErrors.New(dErrors.CodeValidation, "checker cannot be the same as maker")
	}
	if e.Status != EnrichmentPendingReview {
		return dErrors.Newf(dErrors.CodeConflict, "enrichment already %s", e.Status)
	}
	return nil
}

func (e *Enrichment) ApplyReview(decision CheckerDecision, checkerID, notes string, now time.Time) {
	e.CheckerID = checkerID
	e.CheckerNotes = notes
	e.CheckerDecision = decision
	e.CheckerReviewedAt = &now
	if decision == CheckerApprove {
		e.Status = EnrichmentApproved
	} else {
		e.Status = EnrichmentRejected
	}
	e.UpdatedAt = now
}
