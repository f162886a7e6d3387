package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	rtdomain "github.com/jfkeci/job-board-sub000/internal/refreshtoken/domain"
	rtrepo "github.com/jfkeci/job-board-sub000/internal/refreshtoken/repository"
	sessiondomain "github.com/jfkeci/job-board-sub000/internal/session/domain"
	sessionrepo "github.com/jfkeci/job-board-sub000/internal/session/repository"
	userdomain "github.com/jfkeci/job-board-sub000/internal/user/domain"
	userrepo "github.com/jfkeci/job-board-sub000/internal/user/repository"
)

var (
	_ userrepo.Repository    = (*Users)(nil)
	_ sessionrepo.Repository = (*Sessions)(nil)
	_ rtrepo.Repository      = (*RefreshTokens)(nil)
)

func TestUsers_TenantScopedUniqueness(t *testing.T) {
	s := New()
	s.AddTenant("t1")
	s.AddTenant("t2")
	ctx := context.Background()
	users := s.Users()

	create := func(id, tenant string) error {
		return users.Create(ctx, &userdomain.User{ID: id, TenantID: tenant, Email: "a@x.com", Role: userdomain.RoleUser},
			&userdomain.Profile{UserID: id})
	}
	if err := create("u1", "t1"); err != nil {
		t.Fatalf("Create t1: %v", err)
	}
	if err := create("u2", "t2"); err != nil {
		t.Fatalf("Create t2: %v", err)
	}
	if err := create("u3", "t1"); !errors.Is(err, userdomain.ErrEmailTaken) {
		t.Errorf("duplicate in t1: want ErrEmailTaken, got %v", err)
	}
	if err := create("u4", "t9"); !errors.Is(err, userdomain.ErrUnknownTenant) {
		t.Errorf("unknown tenant: want ErrUnknownTenant, got %v", err)
	}
	got, _ := users.GetByEmailAndTenant(ctx, "a@x.com", "t2")
	if got == nil || got.ID != "u2" {
		t.Errorf("GetByEmailAndTenant(t2) = %+v", got)
	}
}

func TestSessions_DeleteCascadesRefreshToken(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	sessions, tokens := s.Sessions(), s.RefreshTokens()

	if err := sessions.Create(ctx, &sessiondomain.Session{ID: "s1", UserID: "u1", ExpiresAt: now.Add(time.Hour), CreatedAt: now}); err != nil {
		t.Fatalf("Create session: %v", err)
	}
	if err := tokens.Create(ctx, &rtdomain.RefreshToken{ID: "r1", SessionID: "s1", TokenHash: "h1", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("Create token: %v", err)
	}
	if err := tokens.Create(ctx, &rtdomain.RefreshToken{ID: "r2", SessionID: "s1", TokenHash: "h2", ExpiresAt: now.Add(time.Hour)}); !errors.Is(err, rtdomain.ErrSessionHasToken) {
		t.Errorf("second token for session: want ErrSessionHasToken, got %v", err)
	}
	if err := tokens.Create(ctx, &rtdomain.RefreshToken{ID: "r3", SessionID: "nope", TokenHash: "h3"}); err == nil {
		t.Error("token for unknown session accepted")
	}

	if err := sessions.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if tok, _ := tokens.GetByHash(ctx, "h1"); tok != nil {
		t.Error("refresh token survived session deletion")
	}
	if err := sessions.Delete(ctx, "s1"); err != nil {
		t.Errorf("Delete is not idempotent: %v", err)
	}
}

func TestRefreshTokens_RotateRejectsOtherSession(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"s1", "s2"} {
		if err := s.Sessions().Create(ctx, &sessiondomain.Session{ID: id, UserID: "u1", CreatedAt: now}); err != nil {
			t.Fatalf("Create session: %v", err)
		}
	}
	tokens := s.RefreshTokens()
	if err := tokens.Create(ctx, &rtdomain.RefreshToken{ID: "r1", SessionID: "s1", TokenHash: "h1"}); err != nil {
		t.Fatalf("Create token: %v", err)
	}
	err := tokens.Rotate(ctx, "s2", "h1", &rtdomain.RefreshToken{ID: "r2", SessionID: "s2", TokenHash: "h2"})
	if !errors.Is(err, rtdomain.ErrNotFound) {
		t.Errorf("Rotate under other session: want ErrNotFound, got %v", err)
	}
	if tok, _ := tokens.GetByHash(ctx, "h1"); tok == nil {
		t.Error("failed rotation removed the original token")
	}
}

func TestSessions_DeleteAllByUserAndList(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		user := "u1"
		if id == "c" {
			user = "u2"
		}
		if err := s.Sessions().Create(ctx, &sessiondomain.Session{ID: id, UserID: user, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	list, _ := s.Sessions().ListByUser(ctx, "u1")
	if len(list) != 2 || list[0].ID != "b" {
		t.Fatalf("ListByUser = %v, want newest first", list)
	}
	ids, err := s.Sessions().DeleteAllByUser(ctx, "u1")
	if err != nil || len(ids) != 2 {
		t.Fatalf("DeleteAllByUser = %v, %v", ids, err)
	}
	if rest, _ := s.Sessions().ListByUser(ctx, "u2"); len(rest) != 1 {
		t.Errorf("other user's sessions touched: %v", rest)
	}
}
