package loki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func captureServer(t *testing.T, status int) (*httptest.Server, *PushRequest) {
	t.Helper()
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestEntryFromAuditJSON(t *testing.T) {
	raw := []byte(`{"id":"a1","tenantId":"t1","userId":"u1","action":"auth.login.failure","outcome":"failure","createdAt":"2026-03-01T12:00:00Z"}`)
	e := EntryFromAuditJSON(raw)

	want := map[string]string{"tenant_id": "t1", "action": "auth.login.failure", "outcome": "failure"}
	for k, v := range want {
		if e.Labels[k] != v {
			t.Errorf("label %q = %q, want %q", k, e.Labels[k], v)
		}
	}
	if _, ok := e.Labels["user_id"]; ok {
		t.Error("user_id must not become a label")
	}
	if !e.Time.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("time = %v", e.Time)
	}
	if e.Line != string(raw) {
		t.Errorf("line = %q", e.Line)
	}

	junk := EntryFromAuditJSON([]byte("not json"))
	if junk.Line != "not json" || len(junk.Labels) != 0 {
		t.Errorf("unparseable entry = %+v", junk)
	}
}

func TestClient_PushGroupsStreams(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	c, err := NewClient(srv.URL+"/", nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err = c.Push(context.Background(),
		Entry{Time: ts, Line: "a", Labels: map[string]string{"action": "auth.logout"}},
		Entry{Time: ts, Line: "b", Labels: map[string]string{"action": "auth.login.success"}},
		Entry{Time: ts.Add(time.Second), Line: "c", Labels: map[string]string{"action": "auth.logout"}},
	)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(got.Streams) != 2 {
		t.Fatalf("streams = %d, want 2", len(got.Streams))
	}
	first := got.Streams[0]
	if first.Stream["job"] != JobLabel || first.Stream["action"] != "auth.logout" {
		t.Errorf("first stream labels = %v", first.Stream)
	}
	if len(first.Values) != 2 || first.Values[0][0] != strconv.FormatInt(ts.UnixNano(), 10) || first.Values[1][1] != "c" {
		t.Errorf("first stream values = %v", first.Values)
	}
}

func TestClient_SanitizesLabels(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	c, _ := NewClient(srv.URL, nil)
	if err := c.Push(context.Background(), Entry{Time: time.Now(), Line: "x", Labels: map[string]string{"tenant_id": "a b/c", "empty": "  "}}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	labels := got.Streams[0].Stream
	if labels["tenant_id"] != "a_b_c" {
		t.Errorf("tenant_id = %q", labels["tenant_id"])
	}
	if _, ok := labels["empty"]; ok {
		t.Error("blank label should be dropped")
	}
}

func TestClient_Errors(t *testing.T) {
	if _, err := NewClient(" ", nil); !errors.Is(err, ErrNoBaseURL) {
		t.Errorf("NewClient(blank) err = %v", err)
	}
	srv, _ := captureServer(t, http.StatusBadRequest)
	c, _ := NewClient(srv.URL, nil)
	if err := c.Push(context.Background(), Entry{Time: time.Now(), Line: "x"}); err == nil {
		t.Error("non-2xx response should fail")
	}
	if err := c.Push(context.Background()); err != nil {
		t.Errorf("empty push should be a no-op, got %v", err)
	}
}
