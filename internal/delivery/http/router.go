package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmuslimabdulj/goat-dm/internal/middleware"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 16 * 1024

// NewRouter creates and configures the HTTP router.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(h.logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)
	r.With(middleware.NoCache).Get("/", h.HandleStatus)

	// WebSocket route with rate limiting
	r.With(middleware.RateLimitMiddleware(h.wsLimit)).Get("/ws", h.HandleWebSocket)

	r.Route("/messages", func(r chi.Router) {
		r.Use(middleware.RateLimitMiddleware(h.apiLimit))
		r.Use(middleware.NoCache)
		r.Use(chimw.RequestSize(maxBodySize))
		r.Use(h.auth.RequireAuth)

		r.Get("/users", h.GetUsers)
		r.Get("/{id}", h.GetHistory)
		r.Post("/send/{id}", h.SendMessage)
	})

	return r
}
