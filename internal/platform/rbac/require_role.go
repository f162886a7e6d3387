// Package rbac enforces the role ladder on authenticated requests.
package rbac

import (
	"context"
	"net/http"

	"github.com/jfkeci/job-board-sub000/internal/identity/domain"
	"github.com/jfkeci/job-board-sub000/internal/platform/httpx"
	"github.com/jfkeci/job-board-sub000/internal/platform/reqctx"
	userdomain "github.com/jfkeci/job-board-sub000/internal/user/domain"
)

// RequirePrincipal ensures the bearer check ran for ctx.
// Returns the principal on success; domain.ErrUnauthenticated otherwise.
func RequirePrincipal(ctx context.Context) (domain.Principal, error) {
	p, ok := reqctx.PrincipalFrom(ctx)
	if !ok || p.UserID == "" || p.SessionID == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	return p, nil
}

// RequireRole ensures the caller is authenticated and holds required or a higher role.
// Returns domain.ErrUnauthenticated or domain.ErrForbidden on failure.
func RequireRole(ctx context.Context, required userdomain.Role) (domain.Principal, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return domain.Principal{}, err
	}
	if !p.Role.Satisfies(required) {
		return domain.Principal{}, domain.ErrForbidden
	}
	return p, nil
}

// Middleware rejects requests whose principal does not satisfy required.
// It must run after the bearer middleware.
func Middleware(required userdomain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := RequireRole(r.Context(), required); err != nil {
				httpx.WriteError(w, r, "require_role", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
