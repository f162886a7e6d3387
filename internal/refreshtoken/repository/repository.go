package repository

import (
	"context"

	"github.com/jfkeci/job-board-sub000/internal/refreshtoken/domain"
)

// Repository defines persistence for refresh-token hashes, one per session.
type Repository interface {
	// Create inserts t. Returns domain.ErrSessionHasToken if the session already has one.
	Create(ctx context.Context, t *domain.RefreshToken) error
	// GetByHash returns (nil, nil) when no token has this hash.
	GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// Delete removes t. Deleting a missing token returns nil.
	Delete(ctx context.Context, t *domain.RefreshToken) error
	// Rotate deletes the token of sessionID whose hash is oldHash and inserts next as one
	// atomic unit. When no such token exists it inserts nothing and returns domain.ErrNotFound;
	// of two concurrent calls with the same oldHash at most one succeeds.
	Rotate(ctx context.Context, sessionID, oldHash string, next *domain.RefreshToken) error
	// DeleteBySession removes the session's token, if any.
	DeleteBySession(ctx context.Context, sessionID string) error
}
