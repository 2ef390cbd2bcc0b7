// Package requestcontext carries per-request values (caller, correlation ID,
// clock) through context.Context so services never import net/http.
//
// Transport middleware sets them once; tests inject them directly:
//
//	ctx = requestcontext.WithCaller(ctx, requestcontext.Principal{UserID: "u1", Role: "customer"})
//	ctx = requestcontext.WithTime(ctx, fixed)
package requestcontext

import (
	"context"
	"time"
)

// Principal is the authenticated caller resolved from the bearer token.
type Principal struct {
	UserID   string
	TenantID string
	Role     string
}

// IsZero reports whether the request is anonymous.
func (p Principal) IsZero() bool { return p.UserID == "" }

type ctxKey int

const (
	callerKey ctxKey = iota
	requestIDKey
	clockKey
)

func WithCaller(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, callerKey, p)
}

// Caller returns the zero Principal for anonymous requests and background work.
func Caller(ctx context.Context) Principal {
	p, _ := ctx.Value(callerKey).(Principal)
	return p
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithTime pins the clock used by Now for the lifetime of ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, clockKey, t)
}

// Now returns the pinned request time, or the wall clock in UTC.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(clockKey).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}
