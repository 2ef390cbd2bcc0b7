package httptransport

import (
	"net/http"

	"profile-service/internal/domain"
	"profile-service/pkg/platform/httputil"
)

type consentDecisionRequest struct {
	Status  domain.ConsentStatus `json:"status"`
	Version string               `json:"version"`
}

type missingConsentsResponse struct {
	Missing []domain.ConsentType `json:"missing"`
}

func (h *Handler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	consents, err := h.profiles.ListConsents(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to list consents", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, consents)
}

func (h *Handler) handleDecideConsent(w http.ResponseWriter, r *http.Request) {
	var req consentDecisionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, "invalid consent request", err)
		return
	}
	consentType := domain.ConsentType(urlParam(r, "consentType"))
	c, err := h.profiles.DecideConsent(r.Context(), consentType, req.Status, req.Version)
	if err != nil {
		h.writeServiceError(w, r, "failed to record consent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleMissingConsents(w http.ResponseWriter, r *http.Request) {
	missing, err := h.profiles.MissingMandatoryConsents(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to check mandatory consents", err)
		return
	}
	if missing == nil {
		missing = []domain.ConsentType{}
	}
	httputil.WriteJSON(w, http.StatusOK, missingConsentsResponse{Missing: missing})
}
