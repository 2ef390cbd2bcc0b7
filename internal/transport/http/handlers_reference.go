package httptransport

import (
	"net/http"

	"profile-service/internal/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/platform/httputil"
)

type referenceResponse struct {
	Kind   string `json:"kind"`
	Values any    `json:"values"`
}

var referenceKinds = map[string]any{
	"profile-statuses": domain.ProfileStatuses,
	"kyc-statuses":     domain.KYCStatuses,
	"kyc-checks":       domain.KYCChecks,
	"address-types":    domain.AddressTypes,
	"document-types":   domain.DocumentTypes,
	"consent-types":    domain.ConsentTypes,
}

func (h *Handler) handleReference(w http.ResponseWriter, r *http.Request) {
	kind := urlParam(r, "kind")
	if kind == "kyc-requirements" {
		requirements := map[domain.KYCType][]domain.DocumentType{}
		for _, t := range []domain.KYCType{domain.KYCTypeStandard, domain.KYCTypeEnhanced, domain.KYCTypeLegacy} {
			requirements[t] = h.kyc.Requirements(t)
		}
		httputil.WriteJSON(w, http.StatusOK, referenceResponse{Kind: kind, Values: requirements})
		return
	}
	values, ok := referenceKinds[kind]
	if !ok {
		h.writeServiceError(w, r, "unknown reference kind", dErrors.Newf(dErrors.CodeNotFound, "unknown reference data %q", kind))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, referenceResponse{Kind: kind, Values: values})
}
