// Package httptransport exposes the profile core over JSON/HTTP.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"profile-service/internal/platform/metrics"
	"profile-service/internal/platform/middleware"
	"profile-service/internal/profile"
	"profile-service/pkg/platform/httputil"
)

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

// Deps wires the router.
type Deps struct {
	Profiles       ProfileService
	KYC            KYCService
	Enrichments    EnrichmentService
	Policy         *profile.Policy
	Tokens         middleware.TokenValidator
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	RequestTimeout time.Duration
	Health         map[string]HealthFunc
}

// NewRouter builds the chi router with the shared middleware chain.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Policy == nil {
		deps.Policy = profile.NewPolicy(nil)
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(deps.Logger, deps.Metrics))
	r.Use(chimw.Timeout(deps.RequestTimeout))

	r.Get("/health", healthHandler(deps.Health, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	h := &Handler{
		profiles:    deps.Profiles,
		kyc:         deps.KYC,
		enrichments: deps.Enrichments,
		policy:      deps.Policy,
		logger:      deps.Logger,
	}
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RequireAuth(deps.Tokens, deps.Logger))
		h.Register(api)
	})
	return r
}

// Handler serves every /api/v1 route.
type Handler struct {
	profiles    ProfileService
	kyc         KYCService
	enrichments EnrichmentService
	policy      *profile.Policy
	logger      *slog.Logger
}

// Register mounts the API routes on r. Caller authentication is expected to
// have run already.
func (h *Handler) Register(r chi.Router) {
	r.Get("/reference/{kind}", h.handleReference)

	r.With(h.require(profile.PermCreateProfile)).Post("/profiles", h.handleCreateProfile)

	r.Route("/profiles/me", func(me chi.Router) {
		me.Get("/", h.handleGetOwnProfile)
		me.Patch("/", h.handleUpdateOwnProfile)
		me.Get("/completeness", h.handleCompleteness)
		me.Get("/audit", h.handleOwnAudit)

		me.Get("/addresses", h.handleListAddresses)
		me.Post("/addresses", h.handleCreateAddress)
		me.Patch("/addresses/{addressID}", h.handleUpdateAddress)
		me.Delete("/addresses/{addressID}", h.handleDeleteAddress)

		me.Get("/documents", h.handleListDocuments)
		me.Post("/documents", h.handleUploadDocument)

		me.Get("/consents", h.handleListConsents)
		me.Get("/consents/missing", h.handleMissingConsents)
		me.Put("/consents/{consentType}", h.handleDecideConsent)

		me.Get("/kyc", h.handleOwnKYCStatus)
		me.Post("/kyc", h.handleInitiateKYC)
	})

	r.Get("/profiles/{profileID}", h.handleGetProfile)
	r.With(h.require(profile.PermReadAudit)).Get("/profiles/{profileID}/audit", h.handleProfileAudit)
	r.With(h.require(profile.PermReadKYC)).Get("/profiles/{profileID}/kyc", h.handleProfileKYCStatus)
	r.With(h.require(profile.PermCreateEnrichment)).Post("/profiles/{profileID}/enrichments", h.handleCreateEnrichment)
	r.With(h.require(profile.PermListEnrichments)).Get("/profiles/{profileID}/enrichments", h.handleListEnrichments)

	r.With(h.require(profile.PermVerifyAddress)).Post("/addresses/{addressID}/verify", h.handleVerifyAddress)
	r.With(h.require(profile.PermVerifyDocument)).Post("/documents/{documentID}/verify", h.handleVerifyDocument)

	r.With(h.require(profile.PermUpdateKYCCheck)).Patch("/kyc/{kycID}/checks/{check}", h.handleUpdateKYCCheck)
	r.With(h.require(profile.PermRejectKYC)).Post("/kyc/{kycID}/reject", h.handleRejectKYC)
	r.With(h.require(profile.PermExpireKYC)).Post("/kyc/expire", h.handleExpireKYC)

	r.With(h.require(profile.PermListEnrichments)).Get("/enrichments/{enrichmentID}", h.handleGetEnrichment)
	r.With(h.require(profile.PermReviewEnrichment)).Post("/enrichments/{enrichmentID}/review", h.handleReviewEnrichment)
}

func healthHandler(checks map[string]HealthFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "health check failed", "dependency", name, "error", err)
				report[name] = "unavailable"
				report["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		httputil.WriteJSON(w, status, report)
	}
}
