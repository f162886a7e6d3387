package repository

import (
	"context"

	"github.com/jfkeci/job-board-sub000/internal/audit/domain"
)

// Repository defines persistence for audit events.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	// ListByUser returns the user's events newest first, paginated by limit and offset.
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.Event, error)
}
