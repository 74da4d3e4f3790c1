// Command stub-upstream imitates the summarization API for local runs of
// the relay (UPSTREAM_URL=http://localhost:8081).
package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"summary-relay/logging"
	"summary-relay/summary"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type message struct {
	Message string `json:"message"`
}

func summarize(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-RapidAPI-Key") == "" {
			summary.WriteJSON(w, http.StatusUnauthorized, message{Message: "Invalid API key"})
			return
		}
		articleURL := r.URL.Query().Get("url")
		if articleURL == "" {
			summary.WriteJSON(w, http.StatusBadRequest, message{Message: "url is required"})
			return
		}

		log.Info("summarize", zap.String("url", articleURL), zap.String("length", r.URL.Query().Get("length")))
		summary.WriteJSON(w, http.StatusOK, map[string]string{
			"summary": fmt.Sprintf("Stub summary of %s.", articleURL),
		})
	}
}

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	flag.Parse()

	logger, err := logging.New("info", "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	r := chi.NewRouter()
	r.Get("/summarize", summarize(logger))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("stub upstream listening", zap.String("addr", *addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
