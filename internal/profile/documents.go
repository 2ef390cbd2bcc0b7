package profile

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"profile-service/internal/cache"
	"profile-service/internal/clients"
	"profile-service/internal/domain"
	"profile-service/internal/ratelimit"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

const (
	MaxDocumentBytes = 10 << 20
	locatorWorkers   = 4
)

// DocumentUpload is one file submitted by the customer.
type DocumentUpload struct {
	Type        domain.DocumentType
	Content     []byte
	FileName    string
	ContentType string
	Metadata    map[string]string
}

func (u DocumentUpload) validate() error {
	if !u.Type.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unsupported document type %q", u.Type)
	}
	if len(u.Content) == 0 {
		return dErrors.New(dErrors.CodeValidation, "document content is empty")
	}
	if len(u.Content) > MaxDocumentBytes {
		return dErrors.Newf(dErrors.CodeValidation, "document exceeds %d bytes", MaxDocumentBytes)
	}
	if u.FileName == "" {
		return dErrors.New(dErrors.CodeValidation, "file name is required")
	}
	return nil
}

// DocumentView is a document with a locator for its content.
type DocumentView struct {
	*domain.Document
	DownloadURL string `json:"download_url,omitempty"`
}

// DocumentFilter narrows ListDocuments. Empty fields match everything.
type DocumentFilter struct {
	Type   domain.DocumentType
	Status domain.VerificationStatus
}

// UploadDocument hands the bytes to the document store once, then records
// the returned reference as a pending document.
func (s *Service) UploadDocument(ctx context.Context, in DocumentUpload) (*domain.Document, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	owner, err := s.ownProfile(ctx, caller)
	if err != nil {
		return nil, err
	}
	profileID := owner.ID
	if err := s.limiter.Check(ctx, ratelimit.ActionDocumentUpload, caller.UserID); err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"profile_id":    profileID.String(),
		"document_type": string(in.Type),
	}
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	stored, err := s.documents.Upload(ctx, clients.Upload{
		Content:     in.Content,
		FileName:    in.FileName,
		ContentType: in.ContentType,
		Metadata:    metadata,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "document upload failed",
			"profile_id", profileID,
			"document_type", in.Type,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, collaboratorErr(err, "document service unavailable")
	}

	var doc *domain.Document
	err = s.mutate(ctx, profileID, func(ctx context.Context, now time.Time) (change, error) {
		doc, err = domain.NewDocument(profileID, in.Type, stored.DocumentRef, now)
		if err != nil {
			return change{}, err
		}
		doc.FileName = in.FileName
		doc.ContentType = in.ContentType
		doc.SizeBytes = int64(len(in.Content))
		doc.Attributes = in.Metadata
		doc.UploadedBy = caller.UserID
		if err := s.store.Documents.Create(ctx, doc, now); err != nil {
			return change{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record document")
		}
		return change{
			recompute:  true,
			invalidate: []cache.Kind{cache.KindProfile},
			entries: []domain.AuditEntry{customerEntry(caller, profileID, domain.AuditCreate,
				"document", nil, string(in.Type))},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns the caller's documents with download locators. A
// locator that cannot be resolved is left empty.
func (s *Service) ListDocuments(ctx context.Context, filter DocumentFilter) ([]DocumentView, error) {
	profileID, err := s.OwnProfileID(ctx)
	if err != nil {
		return nil, err
	}
	var docs []*domain.Document
	for _, d := range s.store.Documents.ListByProfile(ctx, profileID) {
		if filter.Type != "" && d.DocumentType != filter.Type {
			continue
		}
		if filter.Status != "" && d.VerificationStatus != filter.Status {
			continue
		}
		docs = append(docs, d)
	}

	views := make([]DocumentView, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(locatorWorkers)
	for i, d := range docs {
		views[i] = DocumentView{Document: d}
		g.Go(func() error {
			url, err := s.documents.DownloadURL(gctx, d.DocumentRef)
			if err != nil {
				s.logger.WarnContext(ctx, "document locator unavailable",
					"profile_id", profileID,
					"document_id", d.ID,
					"error", err,
				)
				return nil
			}
			views[i].DownloadURL = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// VerifyDocument records an officer's decision on a pending document.
func (s *Service) VerifyDocument(ctx context.Context, documentID id.DocumentID, decision domain.VerificationDecision, notes string) (*domain.Document, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if !decision.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "decision must be approved or rejected")
	}
	current, err := s.store.Documents.Get(ctx, documentID.String())
	if err != nil {
		return nil, wrapStoreErr(err, "document")
	}
	profileID := current.ProfileID

	var verified *domain.Document
	err = s.mutate(ctx, profileID, func(ctx context.Context, now time.Time) (change, error) {
		var from domain.VerificationStatus
		verified, err = s.store.Documents.Update(ctx, documentID.String(), now, func(d *domain.Document) error {
			if err := d.CanVerify(); err != nil {
				return err
			}
			from = d.VerificationStatus
			d.ApplyVerification(decision, caller.UserID, notes, now)
			return nil
		})
		if err != nil {
			return change{}, wrapStoreErr(err, "document")
		}
		return change{
			invalidate: []cache.Kind{cache.KindProfile},
			entries: []domain.AuditEntry{officerEntry(caller, profileID, domain.AuditVerify,
				"document.verification_status", string(from), string(verified.VerificationStatus), notes)},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return verified, nil
}

// collaboratorErr keeps coded errors from the collaborator and reports
// anything else as unavailable.
func collaboratorErr(err error, msg string) error {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
}
