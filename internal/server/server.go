// Package server exposes agent chat sessions over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/bedrock-agent-chat/internal/auth"
	"github.com/tjfontaine/bedrock-agent-chat/internal/session"
	"github.com/tjfontaine/bedrock-agent-chat/internal/upload"
)

// Info is what /api/info reports to chat front-ends.
type Info struct {
	Title string `json:"title"`
	Icon  string `json:"icon,omitempty"`
}

// Config configures the server.
type Config struct {
	Port           int
	RequestTimeout time.Duration
	UploadLimit    int64
	Info           Info

	// Authenticator guards /api when it has keys configured.
	Authenticator *auth.Authenticator
}

type Server struct {
	Router *chi.Mux
	Port   int

	sessions  *session.Manager
	extractor *upload.Extractor
	info      Info
	auth      *auth.Authenticator
	logger    *slog.Logger

	httpServer *http.Server
}

// New builds the router for sessions.
func New(cfg Config, sessions *session.Manager, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(cfg.RequestTimeout))
	r.Use(middleware.Recoverer)

	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "bedrock-agent-chat")
	})

	s := &Server{
		Router:    r,
		Port:      cfg.Port,
		sessions:  sessions,
		extractor: upload.NewExtractor(cfg.UploadLimit),
		info:      cfg.Info,
		auth:      cfg.Authenticator,
		logger:    logger,
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.Router.Get("/healthz", s.handleHealth)

	s.Router.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(s.auth))

		r.Get("/info", s.handleInfo)
		r.Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/reset", s.handleResetSession)
			r.Post("/turns", s.handleTurn)
			r.Put("/attachment", s.handleAttach)
			r.Delete("/attachment", s.handleDetach)
			r.Get("/trace", s.handleTrace)
			r.Get("/citations", s.handleCitations)
		})
	})
}

// Start listens on the configured port until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight turns.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
