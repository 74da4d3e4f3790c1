// Package server wires the relay's HTTP surface on a chi router.
package server

import (
	"context"
	"net/http"

	"summary-relay/middleware/ratelimit"
	"summary-relay/middleware/ratelimit/infra"
	"summary-relay/summary"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Deps are the collaborators the router needs.
type Deps struct {
	// Summary serves /api/get-summary.
	Summary http.Handler

	// Monthly is the outer gate, Minute the inner one.
	Monthly *ratelimit.Limiter
	Minute  *ratelimit.Limiter

	// Stats is exposed on /admin/rate-limit/stats when set.
	Stats StatsSource

	// AdminToken enables the /admin routes. Empty disables them.
	AdminToken string

	Logger *zap.Logger
}

// StatsSource is the read side of a stats store.
type StatsSource interface {
	Snapshot(ctx context.Context) (infra.StatsSnapshot, error)
}

// New builds the router. Both limiters are required.
func New(deps Deps) *chi.Mux {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	log := deps.Logger.Named("http")

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(log))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		summary.WriteJSON(w, http.StatusNotFound, summary.ErrorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		summary.WriteJSON(w, http.StatusMethodNotAllowed, summary.ErrorBody{Error: "method not allowed"})
	})

	r.Get("/healthz", healthHandler)

	r.With(deps.Monthly.Handler, deps.Minute.Handler).
		Method(http.MethodGet, "/api/get-summary", deps.Summary)

	q := &quotaHandler{limiters: []*ratelimit.Limiter{deps.Monthly, deps.Minute}, log: log}
	r.Get("/api/quota", q.ServeHTTP)

	registerAdmin(r, deps, log)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	summary.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
