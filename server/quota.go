package server

import (
	"net/http"
	"time"

	"summary-relay/middleware/ratelimit"
	"summary-relay/summary"

	"go.uber.org/zap"
)

type windowQuota struct {
	Window    string    `json:"window"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

type quotaResponse struct {
	Identifier string        `json:"identifier"`
	Windows    []windowQuota `json:"windows"`
}

// quotaHandler reports the caller's quota in every window without
// consuming any of it.
type quotaHandler struct {
	limiters []*ratelimit.Limiter
	log      *zap.Logger
}

func (h *quotaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := quotaResponse{Windows: make([]windowQuota, 0, len(h.limiters))}

	for _, l := range h.limiters {
		id := l.Identifier(r)
		resp.Identifier = id

		dec, err := l.Peek(r.Context(), id)
		if err != nil {
			h.log.Warn("quota lookup failed",
				zap.String("window", l.Window().Name),
				zap.Error(err))
			summary.WriteJSON(w, http.StatusServiceUnavailable, summary.ErrorBody{Error: "rate limit store unavailable"})
			return
		}
		resp.Windows = append(resp.Windows, windowQuota{
			Window:    l.Window().Name,
			Limit:     dec.Limit,
			Remaining: dec.Remaining,
			ResetAt:   dec.ResetAt.UTC(),
		})
	}

	summary.WriteJSON(w, http.StatusOK, resp)
}
