package profile

import (
	"context"
	"errors"

	"go.uber.org/mock/gomock"

	"profile-service/internal/clients"
	"profile-service/internal/domain"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
)

func upload(t domain.DocumentType) DocumentUpload {
	return DocumentUpload{
		Type:        t,
		Content:     []byte("%PDF-1.7 scanned"),
		FileName:    string(t) + ".pdf",
		ContentType: "application/pdf",
		Metadata:    map[string]string{"source": "mobile"},
	}
}

func (s *ServiceSuite) expectUpload(ref string) {
	s.documents.EXPECT().Upload(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u clients.Upload) (clients.Stored, error) {
			s.Equal(s.profile.ID.String(), u.Metadata["profile_id"])
			s.Equal("mobile", u.Metadata["source"])
			return clients.Stored{DocumentRef: ref}, nil
		})
}

func (s *ServiceSuite) TestUploadDocument() {
	s.Run("stores the reference as a pending document", func() {
		s.expectUpload("doc_1")

		doc, err := s.service.UploadDocument(s.customer, upload(domain.DocumentPAN))
		s.Require().NoError(err)
		s.Equal("doc_1", doc.DocumentRef)
		s.Equal(domain.VerificationPending, doc.VerificationStatus)
		s.Equal("user-1", doc.UploadedBy)
		s.EqualValues(len("%PDF-1.7 scanned"), doc.SizeBytes)
		s.Equal(map[string]string{"source": "mobile"}, doc.Attributes)

		stored, err := s.store.Documents.Get(context.Background(), doc.ID.String())
		s.Require().NoError(err)
		s.Equal("mobile", stored.Attributes["source"])
		s.Equal(doc.CreatedAt, stored.Metadata().CreatedAt)

		entry := s.latestEntry()
		s.Equal(domain.AuditCreate, entry.Action)
		s.Equal("document", entry.FieldName)
		s.Equal(string(domain.DocumentPAN), entry.ToValue)
	})

	s.Run("third document earns the documents share", func() {
		s.expectUpload("doc_2")
		s.expectUpload("doc_3")
		_, err := s.service.UploadDocument(s.customer, upload(domain.DocumentAadhar))
		s.Require().NoError(err)
		s.InDelta(0.0, s.storedProfile().CompletenessPercentage, 0.001)

		_, err = s.service.UploadDocument(s.customer, upload(domain.DocumentUtilityBill))
		s.Require().NoError(err)
		s.InDelta(10.0, s.storedProfile().CompletenessPercentage, 0.001)
	})

	s.Run("collaborator failure records nothing", func() {
		before := len(s.store.Documents.ListByProfile(s.customer, s.profile.ID))
		s.documents.EXPECT().Upload(gomock.Any(), gomock.Any()).
			Return(clients.Stored{}, errors.New("connection refused")).Times(1)

		_, err := s.service.UploadDocument(s.customer, upload(domain.DocumentPassport))
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Len(s.store.Documents.ListByProfile(s.customer, s.profile.ID), before)
	})

	s.Run("invalid uploads never reach the collaborator", func() {
		bad := upload(domain.DocumentType("selfie"))
		_, err := s.service.UploadDocument(s.customer, bad)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		empty := upload(domain.DocumentPAN)
		empty.Content = nil
		_, err = s.service.UploadDocument(s.customer, empty)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		huge := upload(domain.DocumentPAN)
		huge.Content = make([]byte, MaxDocumentBytes+1)
		_, err = s.service.UploadDocument(s.customer, huge)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestListDocuments() {
	s.expectUpload("doc_pan")
	s.expectUpload("doc_aadhar")
	_, err := s.service.UploadDocument(s.customer, upload(domain.DocumentPAN))
	s.Require().NoError(err)
	aadhar, err := s.service.UploadDocument(s.customer, upload(domain.DocumentAadhar))
	s.Require().NoError(err)

	s.Run("attaches locators and tolerates a failing one", func() {
		s.documents.EXPECT().DownloadURL(gomock.Any(), "doc_pan").Return("https://docs/doc_pan", nil)
		s.documents.EXPECT().DownloadURL(gomock.Any(), "doc_aadhar").Return("", dErrors.New(dErrors.CodeUnavailable, "down"))

		views, err := s.service.ListDocuments(s.customer, DocumentFilter{})
		s.Require().NoError(err)
		s.Require().Len(views, 2)
		s.Equal("https://docs/doc_pan", views[0].DownloadURL)
		s.Empty(views[1].DownloadURL)
		s.Equal(aadhar.ID, views[1].ID)
	})

	s.Run("filters by type and status", func() {
		s.documents.EXPECT().DownloadURL(gomock.Any(), "doc_aadhar").Return("https://docs/doc_aadhar", nil)
		views, err := s.service.ListDocuments(s.customer, DocumentFilter{Type: domain.DocumentAadhar, Status: domain.VerificationPending})
		s.Require().NoError(err)
		s.Require().Len(views, 1)
		s.Equal(domain.DocumentAadhar, views[0].DocumentType)

		views, err = s.service.ListDocuments(s.customer, DocumentFilter{Status: domain.VerificationVerified})
		s.Require().NoError(err)
		s.Empty(views)
	})
}

func (s *ServiceSuite) TestVerifyDocument() {
	s.expectUpload("doc_pan")
	doc, err := s.service.UploadDocument(s.customer, upload(domain.DocumentPAN))
	s.Require().NoError(err)

	s.Run("officer decision is recorded with notes", func() {
		v, err := s.service.VerifyDocument(s.officer, doc.ID, domain.DecisionApproved, "matches PAN")
		s.Require().NoError(err)
		s.Equal(domain.VerificationVerified, v.VerificationStatus)
		s.Equal("officer-1", v.VerifiedBy)
		s.Equal("matches PAN", v.VerificationNotes)

		entry := s.latestEntry()
		s.Equal(domain.AuditVerify, entry.Action)
		s.Equal(string(domain.VerificationPending), entry.FromValue)
	})

	s.Run("re-verifying a decided document conflicts", func() {
		_, err := s.service.VerifyDocument(s.officer, doc.ID, domain.DecisionRejected, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown document is not found", func() {
		_, err := s.service.VerifyDocument(s.officer, id.NewDocumentID(), domain.DecisionApproved, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
