package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	adminhandler "github.com/jfkeci/job-board-sub000/internal/admin/handler"
	healthhandler "github.com/jfkeci/job-board-sub000/internal/health/handler"
	identityhandler "github.com/jfkeci/job-board-sub000/internal/identity/handler"
	"github.com/jfkeci/job-board-sub000/internal/platform/httpx"
	"github.com/jfkeci/job-board-sub000/internal/server/middleware"
)

// HTTPDeps holds the handlers and bearer-check collaborators for the REST router.
type HTTPDeps struct {
	// APIPrefix is the versioned API root, e.g. "/api/v1". Health probes are mounted outside it.
	APIPrefix string
	Tokens    middleware.TokenVerifier
	Sessions  middleware.SessionChecker
	Auth      *identityhandler.Handler
	// Admin is optional; when nil the /admin routes are not mounted.
	Admin  *adminhandler.Handler
	Health *healthhandler.Handler
}

// NewRouter builds the REST router and wraps it with OpenTelemetry HTTP instrumentation.
//
// Route → handler mapping:
//   - /healthz, /readyz        → internal/health/handler
//   - {prefix}/auth/...        → internal/identity/handler
//   - {prefix}/admin/users/... → internal/admin/handler
func NewRouter(deps HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover)
	r.Use(middleware.Logging)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteCode(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteCode(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	if deps.Health != nil {
		deps.Health.Mount(r)
	}
	authn := middleware.Authenticate(deps.Tokens, deps.Sessions)
	r.Route(normalizePrefix(deps.APIPrefix), func(r chi.Router) {
		deps.Auth.Mount(r, authn)
		if deps.Admin != nil {
			deps.Admin.Mount(r, authn)
		}
	})

	return otelhttp.NewHandler(r, "jobboard-auth",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/readyz"
		}),
	)
}

// NewHTTPServer returns an http.Server with conservative timeouts.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func normalizePrefix(p string) string {
	return "/" + strings.Trim(strings.TrimSpace(p), "/")
}
