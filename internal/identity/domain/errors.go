// Package domain holds the authentication error taxonomy and the authenticated principal.
package domain

import (
	"errors"
	"net/http"
)

// Kind is the stable, client-visible error code.
type Kind string

const (
	KindInvalidCredentials  Kind = "INVALID_CREDENTIALS"
	KindAlreadyExists       Kind = "ALREADY_EXISTS"
	KindRefreshTokenInvalid Kind = "REFRESH_TOKEN_INVALID"
	KindRefreshTokenExpired Kind = "REFRESH_TOKEN_EXPIRED"
	KindSessionExpired      Kind = "SESSION_EXPIRED"
	KindSessionRevoked      Kind = "SESSION_REVOKED"
	KindUnauthenticated     Kind = "UNAUTHENTICATED"
	KindForbidden           Kind = "FORBIDDEN"
	KindUserNotFound        Kind = "USER_NOT_FOUND"
	KindSessionNotFound     Kind = "SESSION_NOT_FOUND"
	KindValidationFailed    Kind = "VALIDATION_FAILED"
	KindInternal            Kind = "INTERNAL_ERROR"
)

// HTTPStatus maps the kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidCredentials, KindRefreshTokenInvalid, KindRefreshTokenExpired,
		KindSessionExpired, KindSessionRevoked, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAlreadyExists:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUserNotFound, KindSessionNotFound:
		return http.StatusNotFound
	case KindValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a tagged authentication failure. Two errors match under errors.Is when their kinds match.
type Error struct {
	Kind    Kind
	Message string
	// Fields carries per-field detail for KindValidationFailed, keyed by JSON field name.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	// ErrInvalidCredentials is the single error for unknown email, missing hash and wrong password.
	ErrInvalidCredentials  = &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
	ErrAlreadyExists       = &Error{Kind: KindAlreadyExists, Message: "an account with this email already exists"}
	ErrRefreshTokenInvalid = &Error{Kind: KindRefreshTokenInvalid, Message: "refresh token is invalid"}
	ErrRefreshTokenExpired = &Error{Kind: KindRefreshTokenExpired, Message: "refresh token has expired"}
	ErrSessionExpired      = &Error{Kind: KindSessionExpired, Message: "session has expired"}
	ErrSessionRevoked      = &Error{Kind: KindSessionRevoked, Message: "session has been revoked"}
	ErrUnauthenticated     = &Error{Kind: KindUnauthenticated, Message: "missing or invalid authorization"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "insufficient role"}
	ErrUserNotFound        = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrSessionNotFound     = &Error{Kind: KindSessionNotFound, Message: "session not found"}
)

// Validation returns a VALIDATION_FAILED error with the given field messages.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidationFailed, Message: "request validation failed", Fields: fields}
}

// Internal wraps an unexpected failure. The cause is kept for logs and never shown to clients.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError returns err's *Error, wrapping anything untagged as KindInternal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
