package repository

import (
	"context"

	"github.com/jfkeci/job-board-sub000/internal/user/domain"
)

// Repository defines persistence for users and their profiles.
// Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmailAndTenant matches email exactly; callers normalise it first.
	GetByEmailAndTenant(ctx context.Context, email, tenantID string) (*domain.User, error)
	// Create inserts the user and profile atomically. Returns domain.ErrEmailTaken on a
	// duplicate (tenant, email) and domain.ErrUnknownTenant when the tenant is missing.
	Create(ctx context.Context, u *domain.User, p *domain.Profile) error
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	UpdateRole(ctx context.Context, userID string, role domain.Role) error
}
