package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jfkeci/job-board-sub000/internal/identity/domain"
	"github.com/jfkeci/job-board-sub000/internal/platform/httpx"
	"github.com/jfkeci/job-board-sub000/internal/platform/reqctx"
	"github.com/jfkeci/job-board-sub000/internal/security"
	sessiondomain "github.com/jfkeci/job-board-sub000/internal/session/domain"
	userdomain "github.com/jfkeci/job-board-sub000/internal/user/domain"
)

const bearerPrefix = "bearer "

var errAccessTokenExpired = &domain.Error{Kind: domain.KindUnauthenticated, Message: "access token expired"}

// TokenVerifier checks an access token's signature, issuer, audience and expiry.
type TokenVerifier interface {
	Verify(token string) (*security.AccessClaims, error)
}

// SessionChecker re-reads the session an access token points at.
type SessionChecker interface {
	Validate(ctx context.Context, id string) (*sessiondomain.Session, error)
	Touch(ctx context.Context, id string)
}

// Authenticate validates the Bearer access token, re-checks the referenced session in
// storage and stores the principal in the request context. A deleted session rejects the
// token before its natural expiry.
func Authenticate(tokens TokenVerifier, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := authenticate(r, tokens, sessions)
			if err != nil {
				httpx.WriteError(w, r, "authenticate", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(reqctx.WithPrincipal(r.Context(), p)))
		})
	}
}

func authenticate(r *http.Request, tokens TokenVerifier, sessions SessionChecker) (domain.Principal, error) {
	token := extractBearer(r.Header.Get("Authorization"))
	if token == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	claims, err := tokens.Verify(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return domain.Principal{}, errAccessTokenExpired
		}
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	role, ok := userdomain.ParseRole(claims.Role)
	if !ok || claims.Subject == "" || claims.SessionID == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	ctx := r.Context()
	sess, err := sessions.Validate(ctx, claims.SessionID)
	switch {
	case errors.Is(err, sessiondomain.ErrNotFound):
		return domain.Principal{}, domain.ErrSessionRevoked
	case errors.Is(err, sessiondomain.ErrExpired):
		return domain.Principal{}, domain.ErrSessionExpired
	case err != nil:
		return domain.Principal{}, domain.Internal(err)
	}
	if sess.UserID != claims.Subject {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	sessions.Touch(ctx, sess.ID)

	return domain.Principal{
		UserID:         claims.Subject,
		Email:          claims.Email,
		Role:           role,
		TenantID:       claims.TenantID,
		SessionID:      claims.SessionID,
		ImpersonatedBy: claims.ImpersonatedBy,
	}, nil
}

// extractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
