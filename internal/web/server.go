// Package web serves the JSON API over the detector, the emotion state and
// the playback controller.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/justestif/go-emotion-music/internal/clustering"
	"github.com/justestif/go-emotion-music/internal/logging"
)

const (
	// DefaultAddr is the default server address.
	DefaultAddr = "127.0.0.1:8080"

	// DefaultMaxImageBytes bounds the detection request body.
	DefaultMaxImageBytes = 10 << 20
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	DetectRate      int // per minute per client IP; 0 disables limiting
	MaxImageBytes   int64
	Trend           clustering.TrendConfig
}

// Server is the HTTP server for the API.
type Server struct {
	cfg      ServerConfig
	router   chi.Router
	server   *http.Server
	handlers *Handlers
}

// NewServer creates a new server over deps.
func NewServer(cfg ServerConfig, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	router := chi.NewRouter()
	s := &Server{
		cfg:      cfg,
		router:   router,
		handlers: NewHandlers(deps, cfg.MaxImageBytes, cfg.Trend),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logging.RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.Get("/healthz", h.Health)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/vibes", h.ListVibes)
		r.Get("/vibes/{emotion}", h.GetVibe)

		r.Route("/emotion", func(r chi.Router) {
			r.Get("/", h.GetEmotion)
			r.Delete("/", h.ClearEmotion)
			r.Delete("/history", h.ClearHistory)
			r.Post("/reset", h.ResetEmotion)
			r.Get("/trend", h.Trend)

			r.Group(func(r chi.Router) {
				if s.cfg.DetectRate > 0 {
					r.Use(httprate.LimitByIP(s.cfg.DetectRate, time.Minute))
				}
				r.Post("/detect", h.Detect)
			})
		})

		r.Get("/detector", h.DetectorStatus)
		r.Get("/recommendation", h.Recommendation)

		r.Route("/playback", func(r chi.Router) {
			r.Get("/", h.PlaybackState)
			r.Post("/authorize", h.Authorize)
			r.Post("/unauthorize", h.Unauthorize)
			r.Get("/search", h.Search)
			r.Post("/play", h.Play)
			r.Post("/play-random", h.PlayRandom)
			r.Post("/emotion/{emotion}/play", h.PlayForEmotion)
			r.Post("/toggle", h.Toggle)
			r.Post("/next", h.Next)
			r.Post("/previous", h.Previous)
			r.Put("/volume", h.Volume)
		})
	})
}

// Serve runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.handlers.setBaseContext(ctx)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logging.Info().Msg("Shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logging.Info().Msg("HTTP server stopped")
	return ctx.Err()
}

// String names the server for the supervisor.
func (s *Server) String() string {
	return "http-server"
}
