package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profile-service/internal/platform/metrics"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

var discard = slog.New(slog.DiscardHandler)

type stubValidator struct {
	caller requestcontext.Principal
	err    error
}

func (v stubValidator) ValidateToken(string) (requestcontext.Principal, error) {
	return v.caller, v.err
}

func TestRequireAuth(t *testing.T) {
	var seen requestcontext.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Caller(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	caller := requestcontext.Principal{UserID: "user-1", TenantID: "t1", Role: "customer"}

	tests := []struct {
		name      string
		header    string
		validator stubValidator
		status    int
	}{
		{"valid token", "Bearer good", stubValidator{caller: caller}, http.StatusNoContent},
		{"missing header", "", stubValidator{caller: caller}, http.StatusUnauthorized},
		{"wrong scheme", "Basic dXNlcjpwYXNz", stubValidator{caller: caller}, http.StatusUnauthorized},
		{"invalid token", "Bearer bad", stubValidator{err: dErrors.New(dErrors.CodeUnauthorized, "invalid token")}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = requestcontext.Principal{}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/profiles/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			RequireAuth(tt.validator, discard)(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, caller, seen)
			} else {
				assert.True(t, seen.IsZero())
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var requestID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = requestcontext.RequestID(r.Context())
		assert.False(t, requestcontext.Now(r.Context()).IsZero())
	})

	t.Run("propagates a well-formed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rr := httptest.NewRecorder()
		RequestID(next).ServeHTTP(rr, req)
		assert.Equal(t, "abc-123", requestID)
		assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
	})

	t.Run("replaces a malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "bad id\nwith newline")
		rr := httptest.NewRecorder()
		RequestID(next).ServeHTTP(rr, req)
		assert.NotEqual(t, "bad id\nwith newline", requestID)
		assert.Len(t, requestID, 36)
	})
}

func TestRecover(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	})
	rr := httptest.NewRecorder()
	Recover(discard)(panicking).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "boom")
}

func TestAccessLog_RecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(reg)

	r := chi.NewRouter()
	r.Use(AccessLog(discard, m))
	r.Get("/api/v1/profiles/{profileID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/profiles/123", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	count, err := testutil.GatherAndCount(reg, "profile_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
