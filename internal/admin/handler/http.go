// Package handler exposes the ADMIN-only user operations: impersonation, session management
// and the per-user audit trail.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	auditdomain "github.com/jfkeci/job-board-sub000/internal/audit/domain"
	"github.com/jfkeci/job-board-sub000/internal/device"
	"github.com/jfkeci/job-board-sub000/internal/identity/domain"
	identityhandler "github.com/jfkeci/job-board-sub000/internal/identity/handler"
	"github.com/jfkeci/job-board-sub000/internal/identity/service"
	"github.com/jfkeci/job-board-sub000/internal/platform/httpx"
	"github.com/jfkeci/job-board-sub000/internal/platform/rbac"
	userdomain "github.com/jfkeci/job-board-sub000/internal/user/domain"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditLister reads a user's audit events, newest first.
type AuditLister interface {
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*auditdomain.Event, error)
}

// Handler serves the /admin routes.
type Handler struct {
	impersonation *service.ImpersonationService
	auth          *service.AuthService
	audit         AuditLister
}

// NewHandler returns an admin Handler. audit may be nil, in which case the audit route returns an empty list.
func NewHandler(impersonation *service.ImpersonationService, auth *service.AuthService, audit AuditLister) *Handler {
	return &Handler{impersonation: impersonation, auth: auth, audit: audit}
}

type impersonateResponse struct {
	identityhandler.TokenPairResponse
	User           identityhandler.UserResponse `json:"user"`
	ImpersonatedBy string                       `json:"impersonatedBy"`
	RedirectURL    string                       `json:"redirectUrl"`
}

// Mount registers the /admin routes on r behind authn and the ADMIN role check.
func (h *Handler) Mount(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authn)
		r.Use(rbac.Middleware(userdomain.RoleAdmin))
		r.Post("/users/{user_id}/impersonate", h.impersonate)
		r.Get("/users/{user_id}/sessions", h.listSessions)
		r.Delete("/users/{user_id}/sessions", h.revokeSessions)
		r.Get("/users/{user_id}/audit", h.listAudit)
	})
}

func (h *Handler) impersonate(w http.ResponseWriter, r *http.Request) {
	admin, err := rbac.RequireRole(r.Context(), userdomain.RoleAdmin)
	if err != nil {
		httpx.WriteError(w, r, "impersonate", err)
		return
	}
	res, err := h.impersonation.Impersonate(r.Context(), admin, chi.URLParam(r, "user_id"), device.Extract(r))
	if err != nil {
		httpx.WriteError(w, r, "impersonate", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, impersonateResponse{
		TokenPairResponse: identityhandler.NewTokenPairResponse(res.Tokens),
		User:              identityhandler.NewUserResponse(res.User, nil),
		ImpersonatedBy:    res.ImpersonatedBy,
		RedirectURL:       res.RedirectURL,
	})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if _, err := h.auth.GetCurrentUser(r.Context(), userID); err != nil {
		httpx.WriteError(w, r, "admin_list_sessions", err)
		return
	}
	list, err := h.auth.ListSessions(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, r, "admin_list_sessions", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, map[string]any{"sessions": identityhandler.NewSessionResponses(list, "")})
}

func (h *Handler) revokeSessions(w http.ResponseWriter, r *http.Request) {
	admin, err := rbac.RequireRole(r.Context(), userdomain.RoleAdmin)
	if err != nil {
		httpx.WriteError(w, r, "admin_revoke_sessions", err)
		return
	}
	n, err := h.auth.RevokeAllSessions(r.Context(), admin, chi.URLParam(r, "user_id"))
	if err != nil {
		httpx.WriteError(w, r, "admin_revoke_sessions", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, map[string]int{"revoked": n})
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit := httpx.ParseIntDefault(r.URL.Query().Get("limit"), defaultAuditLimit)
	offset := httpx.ParseIntDefault(r.URL.Query().Get("offset"), 0)
	if limit < 1 || limit > maxAuditLimit || offset < 0 {
		httpx.WriteError(w, r, "admin_list_audit", domain.Validation(map[string]string{
			"limit": "limit must be between 1 and 200 and offset must not be negative",
		}))
		return
	}
	events := []*auditdomain.Event{}
	if h.audit != nil {
		list, err := h.audit.ListByUser(r.Context(), chi.URLParam(r, "user_id"), int32(limit), int32(offset))
		if err != nil {
			httpx.WriteError(w, r, "admin_list_audit", domain.Internal(err))
			return
		}
		if list != nil {
			events = list
		}
	}
	httpx.WriteSuccess(w, http.StatusOK, map[string]any{"events": events, "limit": limit, "offset": offset})
}
