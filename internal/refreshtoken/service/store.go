// Package service issues, validates and rotates refresh tokens on top of a hash-only repository.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jfkeci/job-board-sub000/internal/refreshtoken/domain"
	"github.com/jfkeci/job-board-sub000/internal/refreshtoken/repository"
	"github.com/jfkeci/job-board-sub000/internal/security"
)

// Store is the refresh-token lifecycle. Only SHA-256 hashes reach the repository.
type Store struct {
	repo repository.Repository
	now  func() time.Time
}

// NewStore returns a Store over repo.
func NewStore(repo repository.Repository) *Store {
	return &Store{repo: repo, now: time.Now}
}

// Issue mints a token for sessionID valid for ttl. The result is KindIssued with RawToken set.
func (s *Store) Issue(ctx context.Context, sessionID string, ttl time.Duration) (domain.Result, error) {
	raw, next, err := s.mint(sessionID, ttl)
	if err != nil {
		return domain.Result{}, err
	}
	if err := s.repo.Create(ctx, next); err != nil {
		return domain.Result{}, fmt.Errorf("store refresh token: %w", err)
	}
	return domain.Result{Kind: domain.KindIssued, SessionID: sessionID, RawToken: raw, ExpiresAt: next.ExpiresAt}, nil
}

// Validate resolves raw to its session. An expired token is deleted and reported as
// KindExpired; an unknown one as KindInvalid. Storage failures are returned as errors.
func (s *Store) Validate(ctx context.Context, raw string) (domain.Result, error) {
	if raw == "" {
		return domain.Result{Kind: domain.KindInvalid}, nil
	}
	tok, err := s.repo.GetByHash(ctx, security.HashRefreshToken(raw))
	if err != nil {
		return domain.Result{}, fmt.Errorf("lookup refresh token: %w", err)
	}
	if tok == nil {
		return domain.Result{Kind: domain.KindInvalid}, nil
	}
	if tok.IsExpired(s.now()) {
		if err := s.repo.Delete(ctx, tok); err != nil {
			return domain.Result{}, fmt.Errorf("delete expired refresh token: %w", err)
		}
		return domain.Result{Kind: domain.KindExpired, SessionID: tok.SessionID, ExpiresAt: tok.ExpiresAt}, nil
	}
	return domain.Result{Kind: domain.KindValid, SessionID: tok.SessionID, ExpiresAt: tok.ExpiresAt}, nil
}

// Rotate consumes oldRaw and issues its replacement for the same session in one atomic
// repository call. A token that was already rotated or never existed yields KindInvalid.
func (s *Store) Rotate(ctx context.Context, sessionID, oldRaw string, ttl time.Duration) (domain.Result, error) {
	raw, next, err := s.mint(sessionID, ttl)
	if err != nil {
		return domain.Result{}, err
	}
	err = s.repo.Rotate(ctx, sessionID, security.HashRefreshToken(oldRaw), next)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Result{Kind: domain.KindInvalid, SessionID: sessionID}, nil
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	return domain.Result{Kind: domain.KindRotated, SessionID: sessionID, RawToken: raw, ExpiresAt: next.ExpiresAt}, nil
}

// RevokeSession deletes the session's token. Only needed for repositories that do not share
// the session store's cascade.
func (s *Store) RevokeSession(ctx context.Context, sessionID string) error {
	return s.repo.DeleteBySession(ctx, sessionID)
}

func (s *Store) mint(sessionID string, ttl time.Duration) (string, *domain.RefreshToken, error) {
	if ttl <= 0 {
		return "", nil, errors.New("refresh token ttl must be positive")
	}
	raw, err := security.GenerateRefreshToken()
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now().UTC()
	return raw, &domain.RefreshToken{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		TokenHash: security.HashRefreshToken(raw),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}
