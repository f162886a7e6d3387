package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	adminhandler "github.com/jfkeci/job-board-sub000/internal/admin/handler"
	auditdomain "github.com/jfkeci/job-board-sub000/internal/audit/domain"
	"github.com/jfkeci/job-board-sub000/internal/health"
	healthhandler "github.com/jfkeci/job-board-sub000/internal/health/handler"
	identityhandler "github.com/jfkeci/job-board-sub000/internal/identity/handler"
	"github.com/jfkeci/job-board-sub000/internal/identity/service"
	"github.com/jfkeci/job-board-sub000/internal/memstore"
	rtservice "github.com/jfkeci/job-board-sub000/internal/refreshtoken/service"
	"github.com/jfkeci/job-board-sub000/internal/security"
	sessionservice "github.com/jfkeci/job-board-sub000/internal/session/service"
	userdomain "github.com/jfkeci/job-board-sub000/internal/user/domain"
)

const testTenant = "11111111-1111-1111-1111-111111111111"

// mockAuditLister implements adminhandler.AuditLister for tests.
type mockAuditLister struct {
	events    []*auditdomain.Event
	gotUser   string
	gotLimit  int32
	gotOffset int32
}

func (m *mockAuditLister) ListByUser(_ context.Context, userID string, limit, offset int32) ([]*auditdomain.Event, error) {
	m.gotUser, m.gotLimit, m.gotOffset = userID, limit, offset
	return m.events, nil
}

type envelope struct {
	Status  string            `json:"status"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
	Data    json.RawMessage   `json:"data"`
}

type testAPI struct {
	t      *testing.T
	h      http.Handler
	mem    *memstore.Store
	hasher *security.Hasher
	audit  *mockAuditLister
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	mem := memstore.New()
	mem.AddTenant(testTenant)
	sessions := sessionservice.NewManager(mem.Sessions(), 7*24*time.Hour)
	t.Cleanup(sessions.Wait)
	refresh := rtservice.NewStore(mem.RefreshTokens())
	tokens := security.NewTestTokenIssuer()
	hasher := security.NewTestHasher()
	auth := service.NewAuthService(mem.Users(), sessions, refresh, tokens, hasher, 7*24*time.Hour)
	imp := service.NewImpersonationService(mem.Users(), sessions, refresh, tokens, time.Hour,
		service.RedirectTargets{ClientDashboard: "/dashboard", PublicSite: "/"})
	lister := &mockAuditLister{}

	h := NewRouter(HTTPDeps{
		APIPrefix: "/api/v1/",
		Tokens:    tokens,
		Sessions:  sessions,
		Auth:      identityhandler.NewHandler(auth),
		Admin:     adminhandler.NewHandler(imp, auth, lister),
		Health:    healthhandler.NewHandler(health.NewChecker()),
	})
	return &testAPI{t: t, h: h, mem: mem, hasher: hasher, audit: lister}
}

func (a *testAPI) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0)")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

type tokensData struct {
	AccessToken    string         `json:"accessToken"`
	RefreshToken   string         `json:"refreshToken"`
	TokenType      string         `json:"tokenType"`
	ExpiresIn      int64          `json:"expiresIn"`
	SessionID      string         `json:"sessionId"`
	User           map[string]any `json:"user"`
	RedirectURL    string         `json:"redirectUrl"`
	ImpersonatedBy string         `json:"impersonatedBy"`
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return out
}

func (a *testAPI) register(email string) tokensData {
	a.t.Helper()
	rec, env := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "Abcdefg1", "firstName": "Ana", "lastName": "Horvat", "tenantId": testTenant,
	})
	if rec.Code != http.StatusCreated {
		a.t.Fatalf("register %s = %d %+v", email, rec.Code, env)
	}
	return decodeData[tokensData](a.t, env)
}

func (a *testAPI) seedAndLogin(id, email string, role userdomain.Role) tokensData {
	a.t.Helper()
	hash, err := a.hasher.Hash(context.Background(), "Abcdefg1")
	if err != nil {
		a.t.Fatalf("hash: %v", err)
	}
	if err := a.mem.Users().Create(context.Background(), &userdomain.User{
		ID: id, TenantID: testTenant, Email: email, PasswordHash: &hash, Role: role, Language: "en",
	}, &userdomain.Profile{UserID: id, FirstName: "Seed", LastName: "User"}); err != nil {
		a.t.Fatalf("seed: %v", err)
	}
	rec, env := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "Abcdefg1", "tenantId": testTenant,
	})
	if rec.Code != http.StatusOK {
		a.t.Fatalf("login %s = %d %+v", email, rec.Code, env)
	}
	return decodeData[tokensData](a.t, env)
}

func TestRouter_RegisterLoginRefreshLogout(t *testing.T) {
	api := newTestAPI(t)

	reg := api.register("a@x.com")
	if reg.TokenType != "Bearer" || reg.ExpiresIn != 900 || reg.SessionID == "" {
		t.Errorf("register tokens = %+v", reg)
	}
	if reg.User["email"] != "a@x.com" || reg.User["role"] != "USER" || reg.User["firstName"] != "Ana" {
		t.Errorf("register user = %v", reg.User)
	}
	for _, leaked := range []string{"passwordHash", "password_hash", "password"} {
		if _, ok := reg.User[leaked]; ok {
			t.Errorf("user exposes %s", leaked)
		}
	}

	rec, env := api.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": reg.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh = %d %+v", rec.Code, env)
	}
	var raw map[string]any
	_ = json.Unmarshal(env.Data, &raw)
	if _, ok := raw["user"]; ok {
		t.Error("refresh response must not include user")
	}
	refreshed := decodeData[tokensData](t, env)

	rec, env = api.do(http.MethodGet, "/api/v1/auth/me", refreshed.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me = %d %+v", rec.Code, env)
	}
	me := decodeData[map[string]any](t, env)
	if me["email"] != "a@x.com" || me["lastName"] != "Horvat" {
		t.Errorf("me = %v", me)
	}

	rec, env = api.do(http.MethodPost, "/api/v1/auth/logout", refreshed.AccessToken, nil)
	if rec.Code != http.StatusOK || env.Message == "" {
		t.Fatalf("logout = %d %+v", rec.Code, env)
	}
	rec, env = api.do(http.MethodGet, "/api/v1/auth/me", refreshed.AccessToken, nil)
	if rec.Code != http.StatusUnauthorized || env.Code != "SESSION_REVOKED" {
		t.Errorf("me after logout = %d %s", rec.Code, env.Code)
	}
	rec, env = api.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": refreshed.RefreshToken})
	if rec.Code != http.StatusUnauthorized || env.Code != "REFRESH_TOKEN_INVALID" {
		t.Errorf("refresh after logout = %d %s", rec.Code, env.Code)
	}
}

func TestRouter_LoginFailuresAreIndistinguishable(t *testing.T) {
	api := newTestAPI(t)
	api.register("a@x.com")

	recUnknown, _ := api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "nobody@x.com", "password": "Abcdefg1", "tenantId": testTenant,
	})
	recWrong, _ := api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "a@x.com", "password": "Wrong1234", "tenantId": testTenant,
	})
	if recUnknown.Code != http.StatusUnauthorized || recWrong.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d", recUnknown.Code, recWrong.Code)
	}
	if recUnknown.Body.String() != recWrong.Body.String() {
		t.Errorf("bodies differ:\n%s\n%s", recUnknown.Body.String(), recWrong.Body.String())
	}
}

func TestRouter_RegisterErrors(t *testing.T) {
	api := newTestAPI(t)
	api.register("a@x.com")

	rec, env := api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "a@x.com", "password": "Abcdefg1", "firstName": "A", "lastName": "B", "tenantId": testTenant,
	})
	if rec.Code != http.StatusConflict || env.Code != "ALREADY_EXISTS" {
		t.Errorf("duplicate = %d %s", rec.Code, env.Code)
	}

	rec, env = api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "b@x.com", "password": "weak", "firstName": "A", "lastName": "B", "tenantId": "not-a-uuid",
	})
	if rec.Code != http.StatusBadRequest || env.Code != "VALIDATION_FAILED" {
		t.Fatalf("weak = %d %s", rec.Code, env.Code)
	}
	if env.Fields["password"] == "" || env.Fields["tenantId"] == "" {
		t.Errorf("fields = %v", env.Fields)
	}

	rec, env = api.do(http.MethodPost, "/api/v1/auth/register", "", `{"email":"c@x.com","role":"ADMIN"}`)
	if rec.Code != http.StatusBadRequest || env.Fields["body"] == "" {
		t.Errorf("unknown field = %d %+v", rec.Code, env)
	}
}

func TestRouter_SessionSelfService(t *testing.T) {
	api := newTestAPI(t)
	first := api.register("a@x.com")
	other := api.register("b@x.com")
	_, env := api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "a@x.com", "password": "Abcdefg1", "tenantId": testTenant,
	})
	second := decodeData[tokensData](t, env)

	rec, env := api.do(http.MethodGet, "/api/v1/auth/sessions", second.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	list := decodeData[struct {
		Sessions []struct {
			ID         string  `json:"id"`
			Current    bool    `json:"current"`
			DeviceType *string `json:"deviceType"`
		} `json:"sessions"`
	}](t, env)
	if len(list.Sessions) != 2 {
		t.Fatalf("sessions = %+v", list.Sessions)
	}
	for _, s := range list.Sessions {
		if s.Current != (s.ID == second.SessionID) {
			t.Errorf("current flag wrong for %s", s.ID)
		}
		if s.DeviceType == nil || *s.DeviceType != "desktop" {
			t.Errorf("device type = %v", s.DeviceType)
		}
	}

	rec, env = api.do(http.MethodDelete, "/api/v1/auth/sessions/"+other.SessionID, second.AccessToken, nil)
	if rec.Code != http.StatusNotFound || env.Code != "SESSION_NOT_FOUND" {
		t.Errorf("delete other's session = %d %s", rec.Code, env.Code)
	}
	rec, env = api.do(http.MethodDelete, "/api/v1/auth/sessions/abc", second.AccessToken, nil)
	if rec.Code != http.StatusNotFound || env.Code != "SESSION_NOT_FOUND" {
		t.Errorf("delete non-uuid session = %d %s", rec.Code, env.Code)
	}
	rec, _ = api.do(http.MethodDelete, "/api/v1/auth/sessions/"+first.SessionID, second.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete own session = %d", rec.Code)
	}
	rec, env = api.do(http.MethodGet, "/api/v1/auth/me", first.AccessToken, nil)
	if rec.Code != http.StatusUnauthorized || env.Code != "SESSION_REVOKED" {
		t.Errorf("revoked token = %d %s", rec.Code, env.Code)
	}

	rec, env = api.do(http.MethodDelete, "/api/v1/auth/sessions", second.AccessToken, nil)
	if rec.Code != http.StatusOK || decodeData[map[string]int](t, env)["revoked"] != 1 {
		t.Errorf("revoke all = %d %s", rec.Code, env.Data)
	}
}

func TestRouter_AdminImpersonation(t *testing.T) {
	api := newTestAPI(t)
	admin := api.seedAndLogin("admin-1", "admin@x.com", userdomain.RoleAdmin)
	client := api.seedAndLogin("client-1", "client@x.com", userdomain.RoleClientAdmin)

	rec, env := api.do(http.MethodPost, "/api/v1/admin/users/admin-1/impersonate", client.AccessToken, nil)
	if rec.Code != http.StatusForbidden || env.Code != "FORBIDDEN" {
		t.Errorf("CLIENT_ADMIN impersonating = %d %s", rec.Code, env.Code)
	}
	rec, env = api.do(http.MethodPost, "/api/v1/admin/users/ghost/impersonate", admin.AccessToken, nil)
	if rec.Code != http.StatusNotFound || env.Code != "USER_NOT_FOUND" {
		t.Errorf("missing target = %d %s", rec.Code, env.Code)
	}

	rec, env = api.do(http.MethodPost, "/api/v1/admin/users/client-1/impersonate", admin.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("impersonate = %d %+v", rec.Code, env)
	}
	imp := decodeData[tokensData](t, env)
	if imp.RedirectURL != "/dashboard" || imp.ImpersonatedBy != "admin-1" || imp.User["id"] != "client-1" {
		t.Errorf("impersonation = %+v", imp)
	}

	rec, env = api.do(http.MethodGet, "/api/v1/auth/me", imp.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me as impersonated = %d", rec.Code)
	}
	if me := decodeData[map[string]any](t, env); me["impersonatedBy"] != "admin-1" || me["id"] != "client-1" {
		t.Errorf("me = %v", me)
	}

	rec, env = api.do(http.MethodPost, "/api/v1/admin/users/admin-1/impersonate", imp.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("impersonated session reaching admin routes = %d %s", rec.Code, env.Code)
	}
}

func TestRouter_AdminSessionsAndAudit(t *testing.T) {
	api := newTestAPI(t)
	admin := api.seedAndLogin("admin-1", "admin@x.com", userdomain.RoleAdmin)
	user := api.register("u@x.com")
	userID, _ := user.User["id"].(string)
	api.audit.events = []*auditdomain.Event{{ID: "e1", UserID: userID, Action: auditdomain.ActionRegister}}

	rec, env := api.do(http.MethodGet, "/api/v1/admin/users/"+userID+"/sessions", admin.AccessToken, nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), user.SessionID) {
		t.Errorf("admin list sessions = %d %s", rec.Code, env.Data)
	}
	rec, env = api.do(http.MethodGet, "/api/v1/admin/users/ghost/sessions", admin.AccessToken, nil)
	if rec.Code != http.StatusNotFound || env.Code != "USER_NOT_FOUND" {
		t.Errorf("admin list sessions of ghost = %d %s", rec.Code, env.Code)
	}

	rec, env = api.do(http.MethodDelete, "/api/v1/admin/users/abc/sessions", admin.AccessToken, nil)
	if rec.Code != http.StatusNotFound || env.Code != "USER_NOT_FOUND" {
		t.Errorf("admin revoke sessions of non-uuid user = %d %s", rec.Code, env.Code)
	}

	rec, env = api.do(http.MethodGet, "/api/v1/admin/users/"+userID+"/audit?limit=10&offset=5", admin.AccessToken, nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), "auth.register") {
		t.Errorf("audit = %d %s", rec.Code, env.Data)
	}
	if api.audit.gotUser != userID || api.audit.gotLimit != 10 || api.audit.gotOffset != 5 {
		t.Errorf("lister called with %s %d %d", api.audit.gotUser, api.audit.gotLimit, api.audit.gotOffset)
	}
	rec, _ = api.do(http.MethodGet, "/api/v1/admin/users/"+userID+"/audit?limit=1000", admin.AccessToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized limit = %d", rec.Code)
	}

	rec, env = api.do(http.MethodDelete, "/api/v1/admin/users/"+userID+"/sessions", admin.AccessToken, nil)
	if rec.Code != http.StatusOK || decodeData[map[string]int](t, env)["revoked"] != 1 {
		t.Errorf("admin revoke = %d %s", rec.Code, env.Data)
	}
	rec, _ = api.do(http.MethodGet, "/api/v1/auth/me", user.AccessToken, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("user token after admin revoke = %d", rec.Code)
	}
}

func TestRouter_EnvelopeForUnknownRoutesAndHealth(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(http.MethodGet, "/api/v1/nope", "", nil)
	if rec.Code != http.StatusNotFound || env.Status != "error" || env.Code != "NOT_FOUND" {
		t.Errorf("unknown route = %d %+v", rec.Code, env)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id not echoed")
	}
	rec, env = api.do(http.MethodGet, "/api/v1/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized || env.Code != "UNAUTHENTICATED" {
		t.Errorf("me without token = %d %s", rec.Code, env.Code)
	}
	rec, _ = api.do(http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	rec, _ = api.do(http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}
}

func TestNormalizePrefix(t *testing.T) {
	for in, want := range map[string]string{"/api/v1/": "/api/v1", "api/v1": "/api/v1", " /api/v1 ": "/api/v1"} {
		if got := normalizePrefix(in); got != want {
			t.Errorf("normalizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
