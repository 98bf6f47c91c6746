package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pratik-mahalle/skuprice/internal/api/handlers"
	"github.com/pratik-mahalle/skuprice/internal/api/middleware"
	"github.com/pratik-mahalle/skuprice/internal/config"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
	"github.com/pratik-mahalle/skuprice/internal/pkg/metrics"
)

type Handlers struct {
	Health  *handlers.HealthHandler
	Run     *handlers.RunHandler
	Pricing *handlers.PricingHandler
	Schema  *handlers.SchemaHandler
}

func New(cfg *config.Config, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(metrics.Middleware)

	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.Run.List)
			r.Post("/", h.Run.Trigger)
			r.Get("/{id}", h.Run.Get)
		})

		r.Route("/pricing", func(r chi.Router) {
			r.Get("/", h.Pricing.List)
			r.Get("/history", h.Pricing.History)
		})

		r.Get("/schemas", h.Schema.List)
	})

	return r
}
