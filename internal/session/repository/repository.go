package repository

import (
	"context"
	"time"

	"github.com/jfkeci/job-board-sub000/internal/session/domain"
)

// Repository defines persistence for sessions. Deleting a session must also remove its
// refresh token (foreign-key cascade in Postgres, explicit in other stores).
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns (nil, nil) when the session does not exist.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
	// Delete is idempotent; deleting a missing session returns nil.
	Delete(ctx context.Context, id string) error
	// DeleteAllByUser removes every session of userID and returns the deleted ids.
	DeleteAllByUser(ctx context.Context, userID string) ([]string, error)
	// ListByUser returns the user's sessions, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
}
