package httptransport

import (
	"net/http"

	"profile-service/internal/domain"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/platform/httputil"
	"profile-service/pkg/requestcontext"
)

type reviewRequest struct {
	Decision domain.CheckerDecision `json:"decision"`
	Notes    string                 `json:"notes,omitempty"`
}

// The maker and checker are always the authenticated caller, never a body
// field.
func (h *Handler) handleCreateEnrichment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID, err := id.ParseProfileID(urlParam(r, "profileID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid profile id", err)
		return
	}
	var data domain.EnrichmentData
	if err := httputil.DecodeJSON(r, &data); err != nil {
		h.writeServiceError(w, r, "invalid enrichment request", err)
		return
	}
	e, err := h.enrichments.Create(ctx, profileID, data, requestcontext.Caller(ctx).UserID)
	if err != nil {
		h.writeServiceError(w, r, "failed to submit enrichment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleListEnrichments(w http.ResponseWriter, r *http.Request) {
	profileID, err := id.ParseProfileID(urlParam(r, "profileID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid profile id", err)
		return
	}
	list, err := h.enrichments.List(r.Context(), profileID)
	if err != nil {
		h.writeServiceError(w, r, "failed to list enrichments", err)
		return
	}
	if list == nil {
		list = []*domain.Enrichment{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetEnrichment(w http.ResponseWriter, r *http.Request) {
	enrichmentID, err := id.ParseEnrichmentID(urlParam(r, "enrichmentID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid enrichment id", err)
		return
	}
	e, err := h.enrichments.Get(r.Context(), enrichmentID)
	if err != nil {
		h.writeServiceError(w, r, "failed to load enrichment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleReviewEnrichment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	enrichmentID, err := id.ParseEnrichmentID(urlParam(r, "enrichmentID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid enrichment id", err)
		return
	}
	var req reviewRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, "invalid review request", err)
		return
	}
	if !req.Decision.IsValid() {
		h.writeServiceError(w, r, "invalid review request",
			dErrors.Newf(dErrors.CodeValidation, "decision must be %q or %q", domain.CheckerApprove, domain.CheckerReject))
		return
	}
	e, err := h.enrichments.Review(ctx, enrichmentID, req.Decision, requestcontext.Caller(ctx).UserID, req.Notes)
	if err != nil {
		h.writeServiceError(w, r, "failed to review enrichment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}
