// Package handler exposes registration, login, refresh, logout and session self-service over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jfkeci/job-board-sub000/internal/device"
	"github.com/jfkeci/job-board-sub000/internal/identity/service"
	"github.com/jfkeci/job-board-sub000/internal/platform/httpx"
	"github.com/jfkeci/job-board-sub000/internal/platform/rbac"
)

// Handler serves the /auth routes.
type Handler struct {
	auth *service.AuthService
}

// NewHandler returns an auth Handler.
func NewHandler(auth *service.AuthService) *Handler {
	return &Handler{auth: auth}
}

// Mount registers the /auth routes on r. authn is the bearer middleware for protected routes.
func (h *Handler) Mount(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Post("/logout", h.logout)
			r.Get("/me", h.me)
			r.Get("/sessions", h.listSessions)
			r.Delete("/sessions", h.revokeAllSessions)
			r.Delete("/sessions/{session_id}", h.revokeSession)
		})
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeBody(w, r, &req); err != nil {
		httpx.WriteError(w, r, "register", httpx.BadBody(err))
		return
	}
	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		TenantID:  req.TenantID,
	}, device.Extract(r))
	if err != nil {
		httpx.WriteError(w, r, "register", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusCreated, authResponse{
		TokenPairResponse: NewTokenPairResponse(res.Tokens),
		User:              NewUserResponse(res.User, res.Profile),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeBody(w, r, &req); err != nil {
		httpx.WriteError(w, r, "login", httpx.BadBody(err))
		return
	}
	res, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		TenantID: req.TenantID,
	}, device.Extract(r))
	if err != nil {
		httpx.WriteError(w, r, "login", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, authResponse{
		TokenPairResponse: NewTokenPairResponse(res.Tokens),
		User:              NewUserResponse(res.User, res.Profile),
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeBody(w, r, &req); err != nil {
		httpx.WriteError(w, r, "refresh", httpx.BadBody(err))
		return
	}
	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.WriteError(w, r, "refresh", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, NewTokenPairResponse(*pair))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequirePrincipal(r.Context())
	if err != nil {
		httpx.WriteError(w, r, "logout", err)
		return
	}
	if err := h.auth.Logout(r.Context(), p); err != nil {
		httpx.WriteError(w, r, "logout", err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequirePrincipal(r.Context())
	if err != nil {
		httpx.WriteError(w, r, "me", err)
		return
	}
	cu, err := h.auth.GetCurrentUser(r.Context(), p.UserID)
	if err != nil {
		httpx.WriteError(w, r, "me", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, meResponse{
		UserResponse:   NewUserResponse(cu.User, cu.Profile),
		ImpersonatedBy: p.ImpersonatedBy,
	})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequirePrincipal(r.Context())
	if err != nil {
		httpx.WriteError(w, r, "list_sessions", err)
		return
	}
	list, err := h.auth.ListSessions(r.Context(), p.UserID)
	if err != nil {
		httpx.WriteError(w, r, "list_sessions", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, map[string]any{"sessions": NewSessionResponses(list, p.SessionID)})
}

func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequirePrincipal(r.Context())
	if err != nil {
		httpx.WriteError(w, r, "revoke_session", err)
		return
	}
	if err := h.auth.RevokeSession(r.Context(), p, chi.URLParam(r, "session_id")); err != nil {
		httpx.WriteError(w, r, "revoke_session", err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "Session revoked successfully")
}

func (h *Handler) revokeAllSessions(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequirePrincipal(r.Context())
	if err != nil {
		httpx.WriteError(w, r, "revoke_all_sessions", err)
		return
	}
	n, err := h.auth.RevokeAllSessions(r.Context(), p, p.UserID)
	if err != nil {
		httpx.WriteError(w, r, "revoke_all_sessions", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, map[string]int{"revoked": n})
}
