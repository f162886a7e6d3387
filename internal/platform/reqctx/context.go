// Package reqctx carries request-scoped values (request id, verified principal) through context.Context.
package reqctx

import (
	"context"

	"github.com/jfkeci/job-board-sub000/internal/identity/domain"
)

type contextKey struct{ name string }

var (
	requestIDKey = contextKey{"request_id"}
	principalKey = contextKey{"principal"}
)

// WithRequestID returns a context carrying the correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the correlation id or "" when none was set.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithPrincipal returns a context carrying the authenticated caller.
// Handlers read it via PrincipalFrom.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal and true if the bearer check ran; otherwise zero, false.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

// UserID returns the authenticated user id and true if set.
func UserID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	return p.UserID, ok && p.UserID != ""
}

// SessionID returns the authenticated session id and true if set.
func SessionID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	return p.SessionID, ok && p.SessionID != ""
}
