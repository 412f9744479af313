package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/carelink-health/carelink/internal/assistant"
	"github.com/carelink-health/carelink/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	AssistantHandler *assistant.Handler
	SessionHandler   http.Handler
	MetricsHandler   http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		cfg.AssistantHandler.RegisterRoutes(v1)
		if cfg.SessionHandler != nil {
			v1.Mount("/session", cfg.SessionHandler)
		}
	})

	return r
}
