package summary

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Summarizer is the upstream seen by the handler.
type Summarizer interface {
	Summarize(ctx context.Context, articleURL string) (json.RawMessage, error)
}

// Handler serves GET /api/get-summary?articleUrl=<url>.
type Handler struct {
	upstream Summarizer
	log      *zap.Logger
}

func NewHandler(upstream Summarizer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{upstream: upstream, log: logger.Named("summary")}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	articleURL := r.URL.Query().Get("articleUrl")
	if articleURL == "" {
		h.writeError(w, ErrArticleURLRequired)
		return
	}

	body, err := h.upstream.Summarize(r.Context(), articleURL)
	if err != nil {
		h.log.Info("summary request failed",
			zap.String("article_url", articleURL),
			zap.Error(err))
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, body := StatusAndBody(err)
	WriteJSON(w, status, body)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
