package httptransport

import (
	"net/http"

	"profile-service/internal/domain"
	"profile-service/internal/profile"
	id "profile-service/pkg/domain"
	"profile-service/pkg/platform/httputil"
	"profile-service/pkg/requestcontext"
)

func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req profile.NewProfileInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, "invalid create profile request", err)
		return
	}
	p, err := h.profiles.CreateProfile(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "failed to create profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, profile.Mask(p, requestcontext.Caller(r.Context()).Role))
}

func (h *Handler) handleGetOwnProfile(w http.ResponseWriter, r *http.Request) {
	v, err := h.profiles.GetOwnProfile(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to load own profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleUpdateOwnProfile(w http.ResponseWriter, r *http.Request) {
	var fields domain.ProfileFields
	if err := httputil.DecodeJSON(r, &fields); err != nil {
		h.writeServiceError(w, r, "invalid update profile request", err)
		return
	}
	v, err := h.profiles.UpdateOwnProfile(r.Context(), fields)
	if err != nil {
		h.writeServiceError(w, r, "failed to update profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profileID, err := id.ParseProfileID(urlParam(r, "profileID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid profile id", err)
		return
	}
	v, err := h.profiles.GetProfile(r.Context(), profileID)
	if err != nil {
		h.writeServiceError(w, r, "failed to load profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleCompleteness(w http.ResponseWriter, r *http.Request) {
	report, err := h.profiles.GetCompleteness(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to compute completeness", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

type auditResponse struct {
	Entries []domain.AuditEntry `json:"entries"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

func (h *Handler) handleOwnAudit(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		h.writeServiceError(w, r, "invalid audit query", err)
		return
	}
	action := domain.AuditAction(r.URL.Query().Get("action"))
	entries, err := h.profiles.GetAuditTrail(r.Context(), limit, offset, action)
	if err != nil {
		h.writeServiceError(w, r, "failed to load audit trail", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auditResponse{Entries: entries, Limit: limit, Offset: offset})
}

func (h *Handler) handleProfileAudit(w http.ResponseWriter, r *http.Request) {
	profileID, err := id.ParseProfileID(urlParam(r, "profileID"))
	if err != nil {
		h.writeServiceError(w, r, "invalid profile id", err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		h.writeServiceError(w, r, "invalid audit query", err)
		return
	}
	action := domain.AuditAction(r.URL.Query().Get("action"))
	entries, err := h.profiles.GetProfileAuditTrail(r.Context(), profileID, limit, offset, action)
	if err != nil {
		h.writeServiceError(w, r, "failed to load audit trail", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auditResponse{Entries: entries, Limit: limit, Offset: offset})
}
