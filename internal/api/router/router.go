// Package router wires the embed server's HTTP surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/innovar-labs/wavebox-widget/internal/embed"
	httpmiddleware "github.com/innovar-labs/wavebox-widget/internal/http/middleware"
	"github.com/innovar-labs/wavebox-widget/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	EmbedHandler       *embed.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/widget.js", cfg.EmbedHandler.HandleWidgetJS)
	r.Get("/embed", cfg.EmbedHandler.HandleEmbedPage)
	r.Get("/healthz", cfg.EmbedHandler.HandleHealth)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
