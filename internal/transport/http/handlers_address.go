package httptransport

import (
	"net/http"

	"profile-service/internal/domain"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/platform/httputil"
)

type verifyRequest struct {
	Decision domain.VerificationDecision `json:"decision"`
	Notes    string                      `json:"notes,omitempty"`
}

func (req verifyRequest) validate() error {
	if !req.Decision.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "decision must be %q or %q", domain.DecisionApproved, domain.DecisionRejected)
	}
	return nil
}

func (h *Handler) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	addrType := domain.AddressType(r.URL.Query().Get("type"))
	addresses, err := h.profiles.ListAddresses(r.Context(), addrType)
	if err != nil {
		h.writeServiceError(w, r, "failed to list addresses", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, addresses)
}

func (h *Handler) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	var fields domain.AddressFields
	if err := httputil.DecodeJSON(r, &fields); err != nil {
		h.writeServiceError(w, r, "invalid create address request", err)
		return
	}
	a, err := h.profiles.CreateAddress(r.Context(), fields)
	if err != nil {
		h.writeServiceError(w, r, "failed to create address", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	addressID, err := id.ParseAddressID(urlParam(r, "addressID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid address id", err)
		return
	}
	var fields domain.AddressFields
	if err := httputil.DecodeJSON(r, &fields); err != nil {
		h.writeServiceError(w, r, "invalid update address request", err)
		return
	}
	a, err := h.profiles.UpdateAddress(r.Context(), addressID, fields)
	if err != nil {
		h.writeServiceError(w, r, "failed to update address", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	addressID, err := id.ParseAddressID(urlParam(r, "addressID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid address id", err)
		return
	}
	if err := h.profiles.DeleteAddress(r.Context(), addressID); err != nil {
		h.writeServiceError(w, r, "failed to delete address", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerifyAddress(w http.ResponseWriter, r *http.Request) {
	addressID, err := id.ParseAddressID(urlParam(r, "addressID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid address id", err)
		return
	}
	var req verifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, "invalid verify address request", err)
		return
	}
	if err := req.validate(); err != nil {
		h.writeServiceError(w, r, "invalid verify address request", err)
		return
	}
	a, err := h.profiles.VerifyAddress(r.Context(), addressID, req.Decision)
	if err != nil {
		h.writeServiceError(w, r, "failed to verify address", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}
