// Package api provides the HTTP API server and handlers for Tagbox.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tagboxapp/tagbox-server/internal/config"
	"github.com/tagboxapp/tagbox-server/internal/http/response"
	"github.com/tagboxapp/tagbox-server/internal/ratelimit"
	"github.com/tagboxapp/tagbox-server/internal/store"
)

const apiPrefix = "/api/v1"

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           *store.Store
	services        *Services
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
	authRateLimiter *RateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st *store.Store, services *Services, cfg *config.Config, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		store:           st,
		services:        services,
		router:          router,
		logger:          logger,
		authRateLimiter: ratelimit.PerMinute(cfg.RateLimit.AuthRequestsPerMinute, cfg.RateLimit.AuthBurst),
	}

	s.setupMiddleware(cfg.Server.AllowedOrigins)
	s.api = humachi.New(router, newHumaConfig())
	RegisterErrorHandler()
	s.registerRoutes()

	return s
}

func newHumaConfig() huma.Config {
	humaConfig := huma.DefaultConfig("Tagbox API", "1.0.0")
	humaConfig.Info.Description = "Personal item tagging"
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	return humaConfig
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Shutdown releases background resources held by the server.
func (s *Server) Shutdown(_ context.Context) error {
	s.authRateLimiter.Stop()
	return nil
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(allowedOrigins []string) {
	s.router.Use(requestID)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(s.recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{"Location", requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, s.logger)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.MethodNotAllowed(w, s.logger)
	})
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerUserRoutes()
	s.registerAuthRoutes()
	s.registerSecurityRoutes()
	s.registerItemRoutes()
	s.registerTagRoutes()
}
