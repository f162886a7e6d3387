// Package memstore keeps users, sessions and refresh tokens in process memory. It reproduces the
// Postgres constraints the services rely on: unique (tenant, email), one refresh token per
// session, unique token hashes, and deletion of a session's refresh token with the session.
// Intended for local development and tests; the server refuses it in production.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	rtdomain "github.com/jfkeci/job-board-sub000/internal/refreshtoken/domain"
	sessiondomain "github.com/jfkeci/job-board-sub000/internal/session/domain"
	userdomain "github.com/jfkeci/job-board-sub000/internal/user/domain"
)

// DevTenantID is registered by the server when it runs on the memory backend.
const DevTenantID = "00000000-0000-0000-0000-000000000001"

var errUnknownSession = errors.New("memstore: refresh token references unknown session")

// Store is the shared state behind the three repository views. One mutex guards everything
// so the session to refresh-token cascade is atomic.
type Store struct {
	mu             sync.Mutex
	tenants        map[string]struct{}
	users          map[string]userdomain.User
	profiles       map[string]userdomain.Profile
	sessions       map[string]sessiondomain.Session
	tokens         map[string]rtdomain.RefreshToken // by hash
	tokenBySession map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tenants:        make(map[string]struct{}),
		users:          make(map[string]userdomain.User),
		profiles:       make(map[string]userdomain.Profile),
		sessions:       make(map[string]sessiondomain.Session),
		tokens:         make(map[string]rtdomain.RefreshToken),
		tokenBySession: make(map[string]string),
	}
}

// AddTenant registers a tenant id users may be created under.
func (s *Store) AddTenant(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[id] = struct{}{}
}

// DeleteUser removes a user and profile without touching their sessions, matching an
// account removed out-of-band while sessions are still live.
func (s *Store) DeleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	delete(s.profiles, id)
}

// Users returns the user repository view.
func (s *Store) Users() *Users { return &Users{s: s} }

// Sessions returns the session repository view.
func (s *Store) Sessions() *Sessions { return &Sessions{s: s} }

// RefreshTokens returns the refresh-token repository view.
func (s *Store) RefreshTokens() *RefreshTokens { return &RefreshTokens{s: s} }

// deleteSessionLocked removes a session and its refresh token. Caller holds s.mu.
func (s *Store) deleteSessionLocked(id string) {
	delete(s.sessions, id)
	if hash, ok := s.tokenBySession[id]; ok {
		delete(s.tokens, hash)
		delete(s.tokenBySession, id)
	}
}

// Users implements the user repository.
type Users struct{ s *Store }

func (u *Users) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	usr, ok := u.s.users[id]
	if !ok {
		return nil, nil
	}
	return &usr, nil
}

func (u *Users) GetByEmailAndTenant(_ context.Context, email, tenantID string) (*userdomain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, usr := range u.s.users {
		if usr.TenantID == tenantID && usr.Email == email {
			out := usr
			return &out, nil
		}
	}
	return nil, nil
}

func (u *Users) Create(_ context.Context, usr *userdomain.User, p *userdomain.Profile) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.tenants[usr.TenantID]; !ok {
		return userdomain.ErrUnknownTenant
	}
	for _, existing := range u.s.users {
		if existing.TenantID == usr.TenantID && existing.Email == usr.Email {
			return userdomain.ErrEmailTaken
		}
	}
	u.s.users[usr.ID] = *usr
	u.s.profiles[usr.ID] = *p
	return nil
}

func (u *Users) GetProfile(_ context.Context, userID string) (*userdomain.Profile, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	p, ok := u.s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (u *Users) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	usr, ok := u.s.users[userID]
	if !ok {
		return nil
	}
	usr.PasswordHash = &hash
	usr.UpdatedAt = time.Now().UTC()
	u.s.users[userID] = usr
	return nil
}

func (u *Users) UpdateRole(_ context.Context, userID string, role userdomain.Role) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	usr, ok := u.s.users[userID]
	if !ok {
		return nil
	}
	usr.Role = role
	usr.UpdatedAt = time.Now().UTC()
	u.s.users[userID] = usr
	return nil
}

// Sessions implements the session repository.
type Sessions struct{ s *Store }

func (r *Sessions) Create(_ context.Context, sess *sessiondomain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[sess.ID]; ok {
		return errors.New("memstore: duplicate session id")
	}
	r.s.sessions[sess.ID] = *sess
	return nil
}

func (r *Sessions) GetByID(_ context.Context, id string) (*sessiondomain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (r *Sessions) UpdateLastActivity(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[id]; ok {
		sess.LastActivityAt = at
		r.s.sessions[id] = sess
	}
	return nil
}

func (r *Sessions) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deleteSessionLocked(id)
	return nil
}

func (r *Sessions) DeleteAllByUser(_ context.Context, userID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		r.s.deleteSessionLocked(id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Sessions) ListByUser(_ context.Context, userID string) ([]*sessiondomain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*sessiondomain.Session
	for _, sess := range r.s.sessions {
		if sess.UserID == userID {
			cp := sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// RefreshTokens implements the refresh-token repository.
type RefreshTokens struct{ s *Store }

func (r *RefreshTokens) Create(_ context.Context, t *rtdomain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.insertLocked(t)
}

func (r *RefreshTokens) insertLocked(t *rtdomain.RefreshToken) error {
	if _, ok := r.s.sessions[t.SessionID]; !ok {
		return errUnknownSession
	}
	if _, ok := r.s.tokenBySession[t.SessionID]; ok {
		return rtdomain.ErrSessionHasToken
	}
	if _, ok := r.s.tokens[t.TokenHash]; ok {
		return errors.New("memstore: duplicate refresh token hash")
	}
	r.s.tokens[t.TokenHash] = *t
	r.s.tokenBySession[t.SessionID] = t.TokenHash
	return nil
}

func (r *RefreshTokens) GetByHash(_ context.Context, hash string) (*rtdomain.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[hash]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *RefreshTokens) Delete(_ context.Context, t *rtdomain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cur, ok := r.s.tokens[t.TokenHash]; ok {
		delete(r.s.tokens, t.TokenHash)
		if r.s.tokenBySession[cur.SessionID] == t.TokenHash {
			delete(r.s.tokenBySession, cur.SessionID)
		}
	}
	return nil
}

func (r *RefreshTokens) Rotate(_ context.Context, sessionID, oldHash string, next *rtdomain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.tokens[oldHash]
	if !ok || cur.SessionID != sessionID {
		return rtdomain.ErrNotFound
	}
	delete(r.s.tokens, oldHash)
	delete(r.s.tokenBySession, sessionID)
	if err := r.insertLocked(next); err != nil {
		r.s.tokens[oldHash] = cur
		r.s.tokenBySession[sessionID] = oldHash
		return err
	}
	return nil
}

func (r *RefreshTokens) DeleteBySession(_ context.Context, sessionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if hash, ok := r.s.tokenBySession[sessionID]; ok {
		delete(r.s.tokens, hash)
		delete(r.s.tokenBySession, sessionID)
	}
	return nil
}
