// Package server exposes the chat pipeline over HTTP and API Gateway.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aitsambajwa-iss/Checkoutly/internal/orchestrator"
	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
)

const (
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 64 << 10
)

// ChatHandler runs one chat turn. *orchestrator.Orchestrator implements it.
type ChatHandler interface {
	HandleTurn(ctx context.Context, turn orchestrator.Turn) (*orchestrator.Reply, error)
}

// Server holds the dependencies of the HTTP surface.
type Server struct {
	router      *chi.Mux
	chat        ChatHandler
	limiter     *RateLimiter
	corsOrigins []string
	version     string
	startTime   time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithCORSOrigins sets allowed CORS origins (["*"] for any).
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithRateLimiter enables per-client rate limiting on POST /chat.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithVersion sets the version reported by GET /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer builds a Server around chat.
func NewServer(chat ChatHandler, opts ...Option) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		chat:        chat,
		corsOrigins: []string{"*"},
		version:     "dev",
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(checkoutlyotel.MiddlewareWithStatus())
	r.Use(CORSMiddleware(s.corsOrigins))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.limiter))
		r.Use(middleware.Timeout(defaultTimeout))
		r.Post("/chat", s.handleChat)
	})

	return r
}
