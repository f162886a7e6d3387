package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jfkeci/job-board-sub000/internal/db"
	devicedomain "github.com/jfkeci/job-board-sub000/internal/device/domain"
	"github.com/jfkeci/job-board-sub000/internal/session/domain"
)

const sessionColumns = `id, user_id, user_agent, ip_address, device_type, impersonated_by, last_activity_at, expires_at, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, db.NullString(s.UserAgent), db.NullString(s.IPAddress), deviceTypeToNull(s.DeviceType),
		db.NullString(s.ImpersonatedBy), s.LastActivityAt, s.ExpiresAt, s.CreatedAt,
	)
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	if !db.IsUUID(id) {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// UpdateLastActivity sets last_activity_at. expires_at is never moved.
func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	if !db.IsUUID(id) {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_activity_at = $2 WHERE id = $1`, id, at)
	return err
}

// Delete removes the session; refresh_tokens rows go with it via ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if !db.IsUUID(id) {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteAllByUser removes every session for userID and returns their ids.
func (r *PostgresRepository) DeleteAllByUser(ctx context.Context, userID string) ([]string, error) {
	if !db.IsUUID(userID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `DELETE FROM sessions WHERE user_id = $1 RETURNING id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByUser returns all sessions for userID, newest first. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	if !db.IsUUID(userID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*domain.Session, error) {
	var (
		s              domain.Session
		ua, ip, dt, by sql.NullString
	)
	if err := sc.Scan(&s.ID, &s.UserID, &ua, &ip, &dt, &by, &s.LastActivityAt, &s.ExpiresAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.UserAgent = db.StringPtr(ua)
	s.IPAddress = db.StringPtr(ip)
	s.ImpersonatedBy = db.StringPtr(by)
	if dt.Valid {
		t := devicedomain.Type(dt.String)
		s.DeviceType = &t
	}
	return &s, nil
}

func deviceTypeToNull(t *devicedomain.Type) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*t), Valid: true}
}
