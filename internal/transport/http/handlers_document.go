package httptransport

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"profile-service/internal/domain"
	"profile-service/internal/profile"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/platform/httputil"
)

const (
	uploadFormMemory = 1 << 20
	// multipart framing and the non-file fields on top of the file itself
	uploadOverhead = 64 << 10
	metadataPrefix = "metadata."
)

func (h *Handler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, profile.MaxDocumentBytes+uploadOverhead)
	if err := r.ParseMultipartForm(uploadFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeServiceError(w, r, "document too large",
				dErrors.Newf(dErrors.CodeValidation, "document exceeds %d bytes", profile.MaxDocumentBytes))
			return
		}
		h.writeServiceError(w, r, "invalid upload form", dErrors.Wrap(err, dErrors.CodeBadRequest, "expected multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeServiceError(w, r, "missing upload file", dErrors.New(dErrors.CodeBadRequest, "file is required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, profile.MaxDocumentBytes+1))
	if err != nil {
		h.writeServiceError(w, r, "failed to read upload", dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable file"))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}

	metadata := map[string]string{}
	for key, values := range r.MultipartForm.Value {
		if name, ok := strings.CutPrefix(key, metadataPrefix); ok && name != "" && len(values) > 0 {
			metadata[name] = values[0]
		}
	}

	doc, err := h.profiles.UploadDocument(r.Context(), profile.DocumentUpload{
		Type:        domain.DocumentType(r.FormValue("type")),
		Content:     content,
		FileName:    header.Filename,
		ContentType: contentType,
		Metadata:    metadata,
	})
	if err != nil {
		h.writeServiceError(w, r, "failed to upload document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs, err := h.profiles.ListDocuments(r.Context(), profile.DocumentFilter{
		Type:   domain.DocumentType(q.Get("type")),
		Status: domain.VerificationStatus(q.Get("status")),
	})
	if err != nil {
		h.writeServiceError(w, r, "failed to list documents", err)
		return
	}
	if docs == nil {
		docs = []profile.DocumentView{}
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleVerifyDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := id.ParseDocumentID(urlParam(r, "documentID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid document id", err)
		return
	}
	var req verifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, "invalid verify document request", err)
		return
	}
	if err := req.validate(); err != nil {
		h.writeServiceError(w, r, "invalid verify document request", err)
		return
	}
	doc, err := h.profiles.VerifyDocument(r.Context(), documentID, req.Decision, req.Notes)
	if err != nil {
		h.writeServiceError(w, r, "failed to verify document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}
