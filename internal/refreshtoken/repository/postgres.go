package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jfkeci/job-board-sub000/internal/db"
	"github.com/jfkeci/job-board-sub000/internal/refreshtoken/domain"
)

const insertToken = `INSERT INTO refresh_tokens (id, session_id, token_hash, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`

// PostgresRepository stores refresh tokens in refresh_tokens. Session deletion cascades here
// through the foreign key.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a refresh-token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists t.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, insertToken, t.ID, t.SessionID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	if code, constraint := db.PgErrorCode(err); code == db.CodeUniqueViolation && constraint == "refresh_tokens_session_id_key" {
		return domain.ErrSessionHasToken
	}
	return err
}

// GetByHash returns the token with hash, or nil if not found.
func (r *PostgresRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.QueryRowContext(ctx,
		`SELECT id, session_id, token_hash, expires_at, created_at FROM refresh_tokens WHERE token_hash = $1`, hash,
	).Scan(&t.ID, &t.SessionID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Delete removes t by id.
func (r *PostgresRepository) Delete(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, t.ID)
	return err
}

// Rotate runs DELETE ... RETURNING and the insert in one transaction. A concurrent rotation of
// the same token blocks on the row lock and then deletes zero rows.
func (r *PostgresRepository) Rotate(ctx context.Context, sessionID, oldHash string, next *domain.RefreshToken) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var deleted string
		err := tx.QueryRowContext(ctx,
			`DELETE FROM refresh_tokens WHERE session_id = $1 AND token_hash = $2 RETURNING id`, sessionID, oldHash,
		).Scan(&deleted)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, insertToken, next.ID, next.SessionID, next.TokenHash, next.ExpiresAt, next.CreatedAt)
		return err
	})
}

// DeleteBySession removes the session's token, if any.
func (r *PostgresRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE session_id = $1`, sessionID)
	return err
}
