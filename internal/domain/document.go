package domain

import (
	"time"

	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
)

type DocumentType string

const (
	DocumentProfilePhoto   DocumentType = "profile_photo"
	DocumentAadhar         DocumentType = "aadhar"
	DocumentPAN            DocumentType = "pan"
	DocumentPassport       DocumentType = "passport"
	DocumentDrivingLicense DocumentType = "driving_license"
	DocumentUtilityBill    DocumentType = "utility_bill"
	DocumentBankStatement  DocumentType = "bank_statement"
	DocumentOthers         DocumentType = "others"
)

var DocumentTypes = []DocumentType{
	DocumentProfilePhoto, DocumentAadhar, DocumentPAN, DocumentPassport,
	DocumentDrivingLicense, DocumentUtilityBill, DocumentBankStatement, DocumentOthers,
}

func (t DocumentType) IsValid() bool {
	for _, d := range DocumentTypes {
		if d == t {
			return true
		}
	}
	return false
}

// Document references content held by the document collaborator. The profile
// service never stores the bytes.
type Document struct {
	ID                 id.DocumentID      `json:"id"`
	ProfileID          id.ProfileID       `json:"profile_id"`
	DocumentType       DocumentType       `json:"document_type"`
	DocumentRef        string             `json:"document_ref"`
	FileName           string             `json:"file_name,omitempty"`
	ContentType        string             `json:"content_type,omitempty"`
	SizeBytes          int64              `json:"size_bytes,omitempty"`
	Attributes         map[string]string  `json:"metadata,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerifiedBy         string             `json:"verified_by,omitempty"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	VerificationNotes  string             `json:"verification_notes,omitempty"`
	UploadedBy         string             `json:"uploaded_by,omitempty"`
	Meta
}

func (d *Document) Key() string         { return d.ID.String() }
func (d *Document) Owner() id.ProfileID { return d.ProfileID }

// NewDocument records an uploaded document awaiting verification.
func NewDocument(profileID id.ProfileID, docType DocumentType, ref string, now time.Time) (*Document, error) {
	if !docType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unsupported document type %q", docType)
	}
	if ref == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document reference is required")
	}
	return &Document{
		ID:                 id.NewDocumentID(),
		ProfileID:          profileID,
		DocumentType:       docType,
		DocumentRef:        ref,
		VerificationStatus: VerificationPending,
		Meta:               Meta{CreatedAt: now, UpdatedAt: now},
	}, nil
}

func (d *Document) CanVerify() error {
	if d.VerificationStatus.IsDecided() {
		return dErrors.Newf(dErrors.CodeConflict, "document already %s", d.VerificationStatus)
	}
	return nil
}

func (d *Document) ApplyVerification(decision VerificationDecision, verifier, notes string, now time.Time) {
	d.VerificationStatus = decision.Outcome()
	d.VerifiedBy = verifier
	d.VerifiedAt = &now
	d.VerificationNotes = notes
	d.UpdatedAt = now
}
