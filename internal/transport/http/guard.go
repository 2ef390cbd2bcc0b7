package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"profile-service/internal/audit"
	"profile-service/internal/profile"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/platform/httputil"
	"profile-service/pkg/requestcontext"
)

// require gates a route on the caller's role.
func (h *Handler) require(perm profile.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			caller := requestcontext.Caller(ctx)
			if err := h.policy.Authorize(caller, perm); err != nil {
				h.logger.WarnContext(ctx, "permission denied",
					"permission", perm.String(),
					"user_id", caller.UserID,
					"role", caller.Role,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeServiceError logs failures the caller cannot fix at error level and
// everything else at warn.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	attrs := []any{
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable:
		h.logger.ErrorContext(ctx, msg, attrs...)
	default:
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

// pagination reads limit and offset. Range checks belong to the audit trail.
func pagination(r *http.Request) (limit, offset int, err error) {
	limit = audit.DefaultQueryLimit
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, dErrors.New(dErrors.CodeBadRequest, "offset must be an integer")
		}
	}
	return limit, offset, nil
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
