package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/apptreply/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/apptreply/internal/http/middleware"
	"github.com/wolfman30/apptreply/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	DialogueHandler *handlers.DialogueHandler
	MetricsHandler  http.Handler
	// MessageLimiter throttles messages per appointment. Nil disables throttling.
	MessageLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.DialogueHandler == nil {
		panic("router: dialogue handler cannot be nil")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/appointments/{appointmentID}", func(appt chi.Router) {
		messages := appt.With()
		if cfg.MessageLimiter != nil {
			messages = appt.With(httpmiddleware.RateLimit(cfg.MessageLimiter, appointmentKey))
		}
		messages.Post("/messages", cfg.DialogueHandler.HandleMessage)
		appt.Post("/unlock", cfg.DialogueHandler.Unlock)
	})

	return r
}

func appointmentKey(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "appointmentID"))
}
