package domain

import "errors"

var (
	// ErrNotFound means the session does not exist: logged out, revoked or never created.
	ErrNotFound = errors.New("session not found")
	// ErrExpired means the session exists but is past ExpiresAt.
	ErrExpired = errors.New("session expired")
)
