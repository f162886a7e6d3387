// Package service manages session records: creation, lookup, activity tracking and revocation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	devicedomain "github.com/jfkeci/job-board-sub000/internal/device/domain"
	"github.com/jfkeci/job-board-sub000/internal/session/domain"
	"github.com/jfkeci/job-board-sub000/internal/session/repository"
)

const defaultTouchTimeout = 2 * time.Second

// TokenPurger removes a session's refresh token. Set it only when refresh tokens live in a
// store that does not cascade from sessions (Redis).
type TokenPurger interface {
	RevokeSession(ctx context.Context, sessionID string) error
}

// CreateParams describes a new session.
type CreateParams struct {
	UserID string
	Device devicedomain.Info
	// ImpersonatedBy is the acting admin's id for impersonation sessions.
	ImpersonatedBy *string
	// TTL overrides the manager's default lifetime when positive.
	TTL time.Duration
}

// Manager implements the session lifecycle on top of a Repository.
type Manager struct {
	repo         repository.Repository
	purger       TokenPurger
	ttl          time.Duration
	touchTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger

	touches sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithTokenPurger makes Delete and DeleteAllForUser remove refresh tokens explicitly.
func WithTokenPurger(p TokenPurger) Option {
	return func(m *Manager) { m.purger = p }
}

// WithLogger sets the logger for best-effort failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager creating sessions that live for ttl.
func NewManager(repo repository.Repository, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		repo:         repo,
		ttl:          ttl,
		touchTimeout: defaultTouchTimeout,
		now:          time.Now,
		logger:       slog.Default().With("module", "session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create inserts a session with LastActivityAt = now and an absolute ExpiresAt.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*domain.Session, error) {
	ttl := m.ttl
	if p.TTL > 0 {
		ttl = p.TTL
	}
	now := m.now().UTC()
	s := &domain.Session{
		ID:             uuid.NewString(),
		UserID:         p.UserID,
		UserAgent:      p.Device.UserAgent,
		IPAddress:      p.Device.IPAddress,
		DeviceType:     p.Device.DeviceType,
		ImpersonatedBy: p.ImpersonatedBy,
		LastActivityAt: now,
		ExpiresAt:      now.Add(ttl),
		CreatedAt:      now,
	}
	if err := m.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// Get returns the session or nil when it does not exist.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Session, error) {
	return m.repo.GetByID(ctx, id)
}

// Validate returns the session when it exists and has not expired. Missing sessions yield
// domain.ErrNotFound, expired ones domain.ErrExpired.
func (m *Manager) Validate(ctx context.Context, id string) (*domain.Session, error) {
	s, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if s == nil {
		return nil, domain.ErrNotFound
	}
	if s.IsExpired(m.now()) {
		return nil, domain.ErrExpired
	}
	return s, nil
}

// Touch records activity on the session without blocking the caller. The write is
// detached from ctx cancellation, bounded by its own timeout, and failures are only logged.
// ExpiresAt is never extended.
func (m *Manager) Touch(ctx context.Context, id string) {
	at := m.now().UTC()
	bg := context.WithoutCancel(ctx)
	m.touches.Add(1)
	go func() {
		defer m.touches.Done()
		tctx, cancel := context.WithTimeout(bg, m.touchTimeout)
		defer cancel()
		if err := m.repo.UpdateLastActivity(tctx, id, at); err != nil {
			m.logger.WarnContext(tctx, "session touch failed", "session_id", id, "error", err)
		}
	}()
}

// Wait blocks until in-flight touches finish. Used at shutdown.
func (m *Manager) Wait() {
	m.touches.Wait()
}

// Delete removes the session and, through the store's cascade or the purger, its refresh
// token. Deleting a missing session is not an error.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if m.purger != nil {
		if err := m.purger.RevokeSession(ctx, id); err != nil {
			return fmt.Errorf("purge refresh token: %w", err)
		}
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every session of userID and returns the removed ids.
func (m *Manager) DeleteAllForUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := m.repo.DeleteAllByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("delete sessions: %w", err)
	}
	if m.purger != nil {
		for _, id := range ids {
			if err := m.purger.RevokeSession(ctx, id); err != nil {
				return ids, fmt.Errorf("purge refresh token: %w", err)
			}
		}
	}
	return ids, nil
}

// ListForUser returns the user's sessions, newest first.
func (m *Manager) ListForUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	return m.repo.ListByUser(ctx, userID)
}
