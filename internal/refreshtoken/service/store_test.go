package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jfkeci/job-board-sub000/internal/memstore"
	"github.com/jfkeci/job-board-sub000/internal/refreshtoken/domain"
	sessiondomain "github.com/jfkeci/job-board-sub000/internal/session/domain"
)

func newTestStore(t *testing.T, sessionIDs ...string) (*Store, *memstore.Store) {
	t.Helper()
	mem := memstore.New()
	now := time.Now()
	for _, id := range sessionIDs {
		if err := mem.Sessions().Create(context.Background(), &sessiondomain.Session{
			ID: id, UserID: "u1", LastActivityAt: now, ExpiresAt: now.Add(time.Hour), CreatedAt: now,
		}); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	return NewStore(mem.RefreshTokens()), mem
}

func TestStore_IssueAndValidate(t *testing.T) {
	s, _ := newTestStore(t, "s1")
	ctx := context.Background()

	issued, err := s.Issue(ctx, "s1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Kind != domain.KindIssued || issued.RawToken == "" {
		t.Fatalf("Issue = %+v", issued)
	}
	got, err := s.Validate(ctx, issued.RawToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.Kind != domain.KindValid || got.SessionID != "s1" {
		t.Errorf("Validate = %+v, want valid s1", got)
	}
	if got.RawToken != "" {
		t.Error("Validate leaked a raw token")
	}

	for _, raw := range []string{"", "not-a-token", issued.RawToken + "x"} {
		res, err := s.Validate(ctx, raw)
		if err != nil || res.Kind != domain.KindInvalid {
			t.Errorf("Validate(%q) = %+v, %v; want invalid", raw, res, err)
		}
	}
}

func TestStore_ValidateExpiredDeletesRow(t *testing.T) {
	s, mem := newTestStore(t, "s1")
	ctx := context.Background()

	issued, err := s.Issue(ctx, "s1", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	res, err := s.Validate(ctx, issued.RawToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Kind != domain.KindExpired {
		t.Fatalf("Validate = %v, want expired", res.Kind)
	}
	res, _ = s.Validate(ctx, issued.RawToken)
	if res.Kind != domain.KindInvalid {
		t.Errorf("second Validate = %v, want invalid after lazy delete", res.Kind)
	}
	if _, err := NewStore(mem.RefreshTokens()).Issue(ctx, "s1", time.Hour); err != nil {
		t.Errorf("session could not get a new token after cleanup: %v", err)
	}
}

func TestStore_RotateSingleUse(t *testing.T) {
	s, _ := newTestStore(t, "s1")
	ctx := context.Background()

	t0, err := s.Issue(ctx, "s1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	t1, err := s.Rotate(ctx, "s1", t0.RawToken, time.Hour)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if t1.Kind != domain.KindRotated || t1.RawToken == "" || t1.RawToken == t0.RawToken {
		t.Fatalf("Rotate = %+v", t1)
	}

	if res, _ := s.Validate(ctx, t0.RawToken); res.Kind != domain.KindInvalid {
		t.Errorf("Validate(t0) = %v, want invalid", res.Kind)
	}
	if res, _ := s.Validate(ctx, t1.RawToken); res.Kind != domain.KindValid || res.SessionID != "s1" {
		t.Errorf("Validate(t1) = %+v, want valid s1", res)
	}
	again, err := s.Rotate(ctx, "s1", t0.RawToken, time.Hour)
	if err != nil {
		t.Fatalf("Rotate replay: %v", err)
	}
	if again.Kind != domain.KindInvalid {
		t.Errorf("replayed Rotate = %v, want invalid", again.Kind)
	}
}

func TestStore_ConcurrentRotateExactlyOneWins(t *testing.T) {
	s, _ := newTestStore(t, "s1")
	ctx := context.Background()
	t0, err := s.Issue(ctx, "s1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const racers = 16
	results := make([]domain.Result, racers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := s.Rotate(ctx, "s1", t0.RawToken, time.Hour)
			if err != nil {
				t.Errorf("Rotate: %v", err)
			}
			results[i] = res
		}(i)
	}
	close(start)
	wg.Wait()

	var winner string
	wins := 0
	for _, r := range results {
		switch r.Kind {
		case domain.KindRotated:
			wins++
			winner = r.RawToken
		case domain.KindInvalid:
		default:
			t.Errorf("unexpected kind %v", r.Kind)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want 1", wins)
	}
	if res, _ := s.Validate(ctx, winner); res.Kind != domain.KindValid {
		t.Errorf("winning token not valid: %v", res.Kind)
	}
}

func TestStore_RevokeSession(t *testing.T) {
	s, _ := newTestStore(t, "s1")
	ctx := context.Background()
	issued, err := s.Issue(ctx, "s1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := s.RevokeSession(ctx, "s1"); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if res, _ := s.Validate(ctx, issued.RawToken); res.Kind != domain.KindInvalid {
		t.Errorf("Validate after revoke = %v, want invalid", res.Kind)
	}
}

func TestStore_RejectsNonPositiveTTL(t *testing.T) {
	s, _ := newTestStore(t, "s1")
	if _, err := s.Issue(context.Background(), "s1", 0); err == nil {
		t.Error("Issue with zero ttl should fail")
	}
}
