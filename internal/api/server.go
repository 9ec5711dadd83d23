// Package api exposes the question-answering service over HTTP with a small
// JSON surface: a health probe, a readiness probe, and a query endpoint.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/manualqa/manualqa/internal/app"
	"github.com/manualqa/manualqa/internal/config"
	"github.com/manualqa/manualqa/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Config      *config.Config   // Required
	Initializer *app.Initializer // Required
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
// ctx is the server lifetime context; the one-time chain initialization runs
// under it rather than under any single request.
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Initializer == nil {
		return nil, errors.New("initializer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	timeout := time.Duration(cfg.Config.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxConcurrent := cfg.Config.MaxConcurrentQueries
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	qh := &queryHandler{
		init:    cfg.Initializer,
		baseCtx: ctx,
		timeout: timeout,
		sem:     make(chan struct{}, maxConcurrent),
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", qh.answer)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.Config.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.Config.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.Config.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to separate health probes from the middleware
	// stack: probes must answer even when the limiter is saturated.
	hh := &healthHandler{cfg: cfg.Config, init: cfg.Initializer, baseCtx: ctx, logger: logger}
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", hh.health)
	topMux.HandleFunc("GET /ready", hh.ready)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
