package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hchen2020/parley/internal/conversation"
	"github.com/hchen2020/parley/internal/gateway"
	"github.com/hchen2020/parley/internal/log"
	"github.com/hchen2020/parley/internal/prompt"
	"github.com/hchen2020/parley/internal/thread"
	"github.com/hchen2020/parley/internal/turn"
)

// welcomeWordDelay spaces out welcome message words for a typing effect.
const welcomeWordDelay = 30 * time.Millisecond

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Executor    *turn.Executor      // Required
	Gateway     *gateway.Gateway    // Required: feeds the health endpoints
	Store       *conversation.Store // Required
	Threads     *thread.Registry    // Required
	Prompts     *prompt.Registry    // Required
	Version     string              // Reported by GET /status
	CORSOrigins []string            // Allowed origins for CORS
	TrustProxy  bool                // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int                 // Rate limiter burst size per IP (0 = default 60)
}

// Server is the Parley HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Executor == nil {
		return nil, errors.New("turn executor is required")
	}
	if cfg.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if cfg.Store == nil || cfg.Threads == nil || cfg.Prompts == nil {
		return nil, errors.New("store, thread registry, and prompt registry are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{exec: cfg.Executor, logger: logger}
	th := &threadHandler{threads: cfg.Threads, store: cfg.Store, logger: logger}
	st := &statusHandler{gateway: cfg.Gateway, threads: cfg.Threads, version: cfg.Version}
	ph := &promptsHandler{prompts: cfg.Prompts}
	wh := &welcomeHandler{wordDelay: welcomeWordDelay}

	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /chat", ch.send)
	mux.HandleFunc("POST /chat/stream", ch.stream)

	// Threads
	mux.HandleFunc("POST /chat/thread/new", th.create)
	mux.HandleFunc("GET /chat/thread/{id}/history", th.history)
	mux.HandleFunc("DELETE /chat/thread/{id}", th.clear)

	// Service
	mux.HandleFunc("GET /health/detailed", st.detailed)
	mux.HandleFunc("GET /status", st.status)
	mux.HandleFunc("GET /chat/prompts", ph.list)
	mux.HandleFunc("GET /chat/welcome", wh.welcome)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request IDs appear in log output.
	// CORS must be before RateLimit so preflight OPTIONS gets proper headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to separate health probes from the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
