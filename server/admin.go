package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"summary-relay/middleware/ratelimit"
	"summary-relay/summary"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// registerAdmin mounts /admin only when a token is configured.
func registerAdmin(r chi.Router, deps Deps, log *zap.Logger) {
	if deps.AdminToken == "" {
		log.Debug("admin endpoints disabled (no ADMIN_TOKEN set)")
		return
	}

	a := &adminHandler{
		limiters: []*ratelimit.Limiter{deps.Monthly, deps.Minute},
		stats:    deps.Stats,
		log:      log.Named("admin"),
	}

	r.Route("/admin/rate-limit", func(r chi.Router) {
		r.Use(requireBearer(deps.AdminToken))
		r.Post("/reset", a.reset)
		if deps.Stats != nil {
			r.Get("/stats", a.statsSnapshot)
		}
	})

	log.Info("admin endpoints enabled", zap.String("path", "/admin/rate-limit"))
}

func requireBearer(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				summary.WriteJSON(w, http.StatusUnauthorized, summary.ErrorBody{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type adminHandler struct {
	limiters []*ratelimit.Limiter
	stats    StatsSource
	log      *zap.Logger
}

type resetResponse struct {
	Identifier string   `json:"identifier"`
	Windows    []string `json:"windows"`
}

func (a *adminHandler) reset(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("identifier"))
	if id == "" {
		summary.WriteJSON(w, http.StatusBadRequest, summary.ErrorBody{Error: "identifier is required"})
		return
	}

	resp := resetResponse{Identifier: id}
	for _, l := range a.limiters {
		if err := l.Reset(r.Context(), id); err != nil {
			a.log.Error("rate limit reset failed",
				zap.String("identifier", id),
				zap.String("window", l.Window().Name),
				zap.Error(err))
			summary.WriteJSON(w, http.StatusInternalServerError, summary.ErrorBody{Error: "reset failed"})
			return
		}
		resp.Windows = append(resp.Windows, l.Window().Name)
	}

	a.log.Info("rate limit reset", zap.String("identifier", id))
	summary.WriteJSON(w, http.StatusOK, resp)
}

func (a *adminHandler) statsSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := a.stats.Snapshot(r.Context())
	if err != nil {
		a.log.Error("rate limit stats read failed", zap.Error(err))
		summary.WriteJSON(w, http.StatusServiceUnavailable, summary.ErrorBody{Error: "stats unavailable"})
		return
	}
	summary.WriteJSON(w, http.StatusOK, snap)
}
