// Package httpapi exposes the chat backend's HTTP surface: the chat
// endpoint, conversation management, and health checks, wrapped in the
// service middleware stack.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shillcollin/parley/internal/chat"
	"github.com/shillcollin/parley/internal/config"
	"github.com/shillcollin/parley/internal/conversation"
	"github.com/shillcollin/parley/internal/ratelimit"
)

// Version reported by the banner and health endpoints.
const Version = "1.0.0"

// HealthProber verifies connectivity to the upstream model provider.
type HealthProber interface {
	TestConnection(ctx context.Context) error
}

// Server holds handler dependencies. Construct with NewServer and mount
// via Handler.
type Server struct {
	cfg     *config.Config
	store   *conversation.Store
	chat    *chat.Service
	prober  HealthProber
	limiter *ratelimit.Limiter
	log     *slog.Logger
	started time.Time
}

// NewServer wires the HTTP surface. prober may be nil; the detailed
// health check then skips the upstream probe.
func NewServer(cfg *config.Config, store *conversation.Store, chatService *chat.Service, prober HealthProber, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		store:   store,
		chat:    chatService,
		prober:  prober,
		limiter: ratelimit.New(cfg.RateLimitMaxRequests, cfg.RateLimitWindow),
		log:     logger,
		started: time.Now(),
	}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/conversations/{sessionId}", s.handleGetHistory)
	mux.HandleFunc("DELETE /api/conversations/{sessionId}", s.handleDeleteConversation)
	mux.HandleFunc("POST /api/conversations/{sessionId}/clear", s.handleClearHistory)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/health/detailed", s.handleHealthDetailed)
	mux.HandleFunc("/", s.handleRoot)

	var handler http.Handler = mux
	handler = s.rateLimit(handler)
	handler = securityHeaders(handler)
	handler = s.cors(handler)
	handler = s.requestLogger(handler)
	return handler
}
