package domain

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Rotate when no row matches (session, old hash).
	ErrNotFound = errors.New("refresh token not found")
	// ErrSessionHasToken is returned by Create when the session already owns a live token.
	ErrSessionHasToken = errors.New("session already has a refresh token")
)

// RefreshToken is the persisted side of a refresh token. The raw value is never stored.
type RefreshToken struct {
	ID        string
	SessionID string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the token is past its expiry at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Kind tags the outcome of a refresh-token operation.
type Kind int

const (
	// KindInvalid means the token is unknown or was already rotated.
	KindInvalid Kind = iota
	// KindExpired means the token was found past its expiry and has been deleted.
	KindExpired
	// KindValid means the token is live; SessionID is set.
	KindValid
	// KindIssued means a fresh token was minted; RawToken and ExpiresAt are set.
	KindIssued
	// KindRotated means the old token was consumed and RawToken replaces it.
	KindRotated
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindExpired:
		return "expired"
	case KindValid:
		return "valid"
	case KindIssued:
		return "issued"
	case KindRotated:
		return "rotated"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of Issue, Validate and Rotate.
type Result struct {
	Kind      Kind
	SessionID string
	// RawToken is only set for KindIssued and KindRotated; it is the single moment the raw
	// value exists outside the client.
	RawToken  string
	ExpiresAt time.Time
}
