package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chessmate/internal/auth"
	"chessmate/internal/config"
	"chessmate/internal/status"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies groups what the router needs from the composition root.
type Dependencies struct {
	Auth    *auth.Service
	Status  *status.Service
	Store   Pinger
	Metrics http.Handler
	Logger  *slog.Logger
}

// Router is the application handler plus the background resources it owns.
type Router struct {
	http.Handler
	limiter *loginRateLimiter
}

// Close stops background goroutines started by the router.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Stop()
	}
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, deps Dependencies) *Router {
	logger := deps.Logger
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.ExchangeHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(newSlogMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Store.Ping(ctx); err != nil {
				logger.Warn("health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status":      "unavailable",
					"environment": cfg.Environment,
					"store":       cfg.DataStore,
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
			"store":       cfg.DataStore,
		})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	authHandler := NewAuthHandler(deps.Auth, cfg.Environment, logger)
	statusHandler := NewStatusHandler(deps.Status, logger)

	var limiter *loginRateLimiter
	if cfg.LoginRatePerMinute > 0 {
		limiter = newLoginRateLimiter(cfg.LoginRatePerMinute, logger)
	}

	logger.Warn("GET /api/users is unauthenticated and lists every user")

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
		})
		r.Get("/users", authHandler.ListUsers)
		r.Get("/users/export", authHandler.ExportUsers)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if limiter != nil {
					r.Use(limiter.Middleware)
				}
				r.Post("/session", authHandler.CreateSession)
			})
			r.Get("/verify", authHandler.Verify)
			r.Put("/profile", authHandler.UpdateProfile)
			r.Post("/logout", authHandler.Logout)
		})

		r.Route("/status", func(r chi.Router) {
			r.Get("/", statusHandler.List)
			r.Post("/", statusHandler.Create)
		})
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return &Router{Handler: r, limiter: limiter}
}
