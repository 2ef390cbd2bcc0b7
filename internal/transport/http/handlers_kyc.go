package httptransport

import (
	"errors"
	"io"
	"net/http"

	"profile-service/internal/domain"
	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/platform/httputil"
	"profile-service/pkg/requestcontext"
)

type initiateKYCRequest struct {
	KYCType domain.KYCType `json:"kyc_type,omitempty"`
}

type kycCheckRequest struct {
	Verified *bool `json:"verified"`
}

type rejectKYCRequest struct {
	Reason string `json:"reason"`
}

type expireKYCResponse struct {
	Expired int `json:"expired"`
}

func (h *Handler) handleOwnKYCStatus(w http.ResponseWriter, r *http.Request) {
	profileID, err := h.profiles.OwnProfileID(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to resolve own profile", err)
		return
	}
	h.writeKYCStatus(w, r, profileID)
}

func (h *Handler) handleProfileKYCStatus(w http.ResponseWriter, r *http.Request) {
	profileID, err := id.ParseProfileID(urlParam(r, "profileID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid profile id", err)
		return
	}
	h.writeKYCStatus(w, r, profileID)
}

func (h *Handler) writeKYCStatus(w http.ResponseWriter, r *http.Request, profileID id.ProfileID) {
	workflow, err := h.kyc.Status(r.Context(), profileID)
	if err != nil {
		h.writeServiceError(w, r, "failed to load kyc status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, workflow)
}

func (h *Handler) handleInitiateKYC(w http.ResponseWriter, r *http.Request) {
	var req initiateKYCRequest
	if err := httputil.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.writeServiceError(w, r, "invalid initiate kyc request", err)
		return
	}
	if req.KYCType != "" && !req.KYCType.IsValid() {
		h.writeServiceError(w, r, "invalid initiate kyc request",
			dErrors.Newf(dErrors.CodeValidation, "unsupported kyc type %q", req.KYCType))
		return
	}
	profileID, err := h.profiles.OwnProfileID(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to resolve own profile", err)
		return
	}
	workflow, err := h.kyc.Initiate(r.Context(), profileID, req.KYCType)
	if err != nil {
		h.writeServiceError(w, r, "failed to initiate kyc", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, workflow)
}

func (h *Handler) handleUpdateKYCCheck(w http.ResponseWriter, r *http.Request) {
	kycID, err := id.ParseKYCID(urlParam(r, "kycID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid kyc id", err)
		return
	}
	check, err := domain.ParseKYCCheck(urlParam(r, "check"))
	if err != nil {
		h.writeServiceError(w, r, "invalid kyc check", err)
		return
	}
	var req kycCheckRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, "invalid kyc check request", err)
		return
	}
	if req.Verified == nil {
		h.writeServiceError(w, r, "invalid kyc check request", dErrors.New(dErrors.CodeValidation, "verified is required"))
		return
	}
	workflow, err := h.kyc.UpdateCheck(r.Context(), kycID, check, *req.Verified)
	if err != nil {
		h.writeServiceError(w, r, "failed to update kyc check", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, workflow)
}

func (h *Handler) handleRejectKYC(w http.ResponseWriter, r *http.Request) {
	kycID, err := id.ParseKYCID(urlParam(r, "kycID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid kyc id", err)
		return
	}
	var req rejectKYCRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, "invalid reject kyc request", err)
		return
	}
	workflow, err := h.kyc.Reject(r.Context(), kycID, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, "failed to reject kyc", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, workflow)
}

func (h *Handler) handleExpireKYC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.kyc.ExpireDue(ctx, requestcontext.Now(ctx))
	if err != nil {
		h.writeServiceError(w, r, "failed to expire kyc workflows", err)
		return
	}
	h.logger.InfoContext(ctx, "kyc expiry sweep",
		"expired", n,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, expireKYCResponse{Expired: n})
}
