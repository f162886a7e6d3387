package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jfkeci/job-board-sub000/internal/db"
	"github.com/jfkeci/job-board-sub000/internal/user/domain"
)

const userColumns = `id, tenant_id, email, password_hash, role, email_verified, language, organization_id, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !db.IsUUID(id) {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmailAndTenant returns the user with email in tenantID, or nil if not found.
func (r *PostgresRepository) GetByEmailAndTenant(ctx context.Context, email, tenantID string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND email = $2`, tenantID, email)
	return scanUser(row)
}

// Create persists the user and its profile in one transaction. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User, p *domain.Profile) error {
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			u.ID, u.TenantID, u.Email, db.NullString(u.PasswordHash), string(u.Role), u.EmailVerified,
			u.Language, db.NullString(u.OrganizationID), u.CreatedAt, u.UpdatedAt,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (user_id, first_name, last_name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
			p.UserID, p.FirstName, p.LastName, p.CreatedAt, p.UpdatedAt,
		)
		return err
	})
	switch code, _ := db.PgErrorCode(err); code {
	case db.CodeUniqueViolation:
		return domain.ErrEmailTaken
	case db.CodeForeignKeyViolation:
		return domain.ErrUnknownTenant
	}
	return err
}

// GetProfile returns the profile for userID, or nil if not found.
func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if !db.IsUUID(userID) {
		return nil, nil
	}
	var p domain.Profile
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, first_name, last_name, created_at, updated_at FROM profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.FirstName, &p.LastName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UpdatePasswordHash replaces the stored hash. A missing user is not an error.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	if !db.IsUUID(userID) {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, userID, hash, time.Now().UTC())
	return err
}

// UpdateRole sets the user's role. Takes effect for new access tokens only.
func (r *PostgresRepository) UpdateRole(ctx context.Context, userID string, role domain.Role) error {
	if !db.IsUUID(userID) {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`, userID, string(role), time.Now().UTC())
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u     domain.User
		hash  sql.NullString
		role  string
		orgID sql.NullString
	)
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &hash, &role, &u.EmailVerified, &u.Language, &orgID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.PasswordHash = db.StringPtr(hash)
	u.Role = domain.Role(role)
	u.OrganizationID = db.StringPtr(orgID)
	return &u, nil
}
