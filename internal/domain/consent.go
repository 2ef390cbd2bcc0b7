package domain

import (
	"time"

	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
)

type ConsentType string

const (
	ConsentTermsAndConditions     ConsentType = "terms_and_conditions"
	ConsentDataUsage              ConsentType = "data_usage"
	ConsentMarketingCommunication ConsentType = "marketing_communication"
	ConsentCIBILReportPull        ConsentType = "cibil_report_pull"
)

var ConsentTypes = []ConsentType{
	ConsentTermsAndConditions, ConsentDataUsage, ConsentMarketingCommunication, ConsentCIBILReportPull,
}

func (t ConsentType) IsValid() bool {
	for _, c := range ConsentTypes {
		if c == t {
			return true
		}
	}
	return false
}

type ConsentStatus string

const (
	ConsentPending  ConsentStatus = "pending"
	ConsentAccepted ConsentStatus = "accepted"
	ConsentRejected ConsentStatus = "rejected"
)

// IsDecision reports whether s is a status a customer may choose.
func (s ConsentStatus) IsDecision() bool {
	return s == ConsentAccepted || s == ConsentRejected
}

// Consent is the customer's decision for one consent type. There is at most
// one per (profile, type); later decisions overwrite it in place.
type Consent struct {
	ID          id.ConsentID  `json:"id"`
	ProfileID   id.ProfileID  `json:"profile_id"`
	ConsentType ConsentType   `json:"consent_type"`
	Status      ConsentStatus `json:"status"`
	Version     string        `json:"version"`
	AcceptedAt  *time.Time    `json:"accepted_at,omitempty"`
	Meta
}

func (c *Consent) Key() string         { return c.ID.String() }
func (c *Consent) Owner() id.ProfileID { return c.ProfileID }

func NewConsent(profileID id.ProfileID, consentType ConsentType, now time.Time) (*Consent, error) {
	if !consentType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unsupported consent type %q", consentType)
	}
	return &Consent{
		ID:          id.NewConsentID(),
		ProfileID:   profileID,
		ConsentType: consentType,
		Status:      ConsentPending,
		Meta:        Meta{CreatedAt: now, UpdatedAt: now},
	}, nil
}

// ApplyDecision records a customer decision; acceptance stamps AcceptedAt.
func (c *Consent) ApplyDecision(status ConsentStatus, version string, now time.Time) error {
	if !status.IsDecision() {
		return dErrors.New(dErrors.CodeValidation, "consent status must be accepted or rejected")
	}
	c.Status = status
	c.Version = version
	if status == ConsentAccepted {
		c.AcceptedAt = &now
	} else {
		c.AcceptedAt = nil
	}
	c.UpdatedAt = now
	return nil
}
