// Package api exposes the catalog operations over HTTP with huma on a chi
// router. Handlers are thin: they decode input, call one service method and
// wrap the result in the response envelope.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quillpress/quill-server/internal/metrics"
	"github.com/quillpress/quill-server/internal/ratelimit"
)

// Config tunes the HTTP surface.
type Config struct {
	Title          string
	Version        string
	AllowedOrigins []string
	// WriteRPS and WriteBurst limit mutating requests per client IP.
	// A zero WriteRPS disables the limit.
	WriteRPS   float64
	WriteBurst int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	probes   Probes
	router   chi.Router
	api      huma.API
	limiter  *ratelimit.KeyedRateLimiter
	logger   *slog.Logger
}

// NewServer creates the HTTP server with every route registered.
func NewServer(cfg Config, services *Services, probes Probes, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Title == "" {
		cfg.Title = "Quill API"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}

	s := &Server{
		services: services,
		probes:   probes,
		router:   chi.NewRouter(),
		logger:   logger,
	}
	if cfg.WriteRPS > 0 {
		s.limiter = ratelimit.New(cfg.WriteRPS, max(cfg.WriteBurst, 1))
	}

	s.setupMiddleware(cfg)

	humaConfig := huma.DefaultConfig(cfg.Title, cfg.Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.router.Handle("/metrics", metrics.Handler())
	s.registerHealthRoutes()
	s.registerBookRoutes()
	s.registerVolumeRoutes()
	s.registerChapterRoutes()
	s.registerReferenceRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) setupMiddleware(cfg Config) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{staleHeader},
		MaxAge:         int((12 * time.Hour).Seconds()),
	}))
	if s.limiter != nil {
		s.router.Use(RateLimitWrites(s.limiter, s.logger))
	}
}
