// Package handler exposes health over HTTP probes and the standard gRPC health service.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jfkeci/job-board-sub000/internal/health"
	"github.com/jfkeci/job-board-sub000/internal/platform/httpx"
)

// Handler serves /healthz and /readyz.
type Handler struct {
	checker *health.Checker
}

// NewHandler returns a health Handler backed by checker.
func NewHandler(checker *health.Checker) *Handler {
	return &Handler{checker: checker}
}

// Mount registers the probe routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	res := h.checker.Check(r.Context())
	status := http.StatusOK
	if !res.Ready {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteSuccess(w, status, res)
}
