package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jfkeci/job-board-sub000/internal/audit/domain"
	"github.com/jfkeci/job-board-sub000/internal/db"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the event. Empty tenant, user and session ids are stored as NULL.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		metadata = b
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, tenant_id, user_id, session_id, action, outcome, ip, request_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, nullIfEmpty(e.TenantID), nullIfEmpty(e.UserID), nullIfEmpty(e.SessionID),
		string(e.Action), string(e.Outcome), nullIfEmpty(e.IP), nullIfEmpty(e.RequestID), metadata, e.CreatedAt,
	)
	return err
}

// ListByUser returns audit events for the user, newest first. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.Event, error) {
	if !db.IsUUID(userID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, user_id, session_id, action, outcome, ip, request_id, metadata, created_at
		 FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Event
	for rows.Next() {
		var (
			e                                       domain.Event
			tenantID, uid, sessionID, ip, requestID sql.NullString
			action, outcome                         string
			metadata                                []byte
		)
		if err := rows.Scan(&e.ID, &tenantID, &uid, &sessionID, &action, &outcome, &ip, &requestID, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TenantID = tenantID.String
		e.UserID = uid.String
		e.SessionID = sessionID.String
		e.IP = ip.String
		e.RequestID = requestID.String
		e.Action = domain.Action(action)
		e.Outcome = domain.Outcome(outcome)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return db.NullString(&s)
}
