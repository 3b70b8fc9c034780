package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rmacdonaldsmith/eventstore-go/pkg/eventstore"
)

// defaultSecretKey signs tokens when no secret is configured; only suitable for development
const defaultSecretKey = "eventstore-dev-secret-key-change-in-production"

// Server represents the HTTP API server
type Server struct {
	store      eventstore.EventStore
	jwtAuth    *JWTAuth
	handlers   *Handlers
	middleware *Middleware
	logger     *slog.Logger
	server     *http.Server
	config     Config
}

// Config holds server configuration
type Config struct {
	Address      string
	SecretKey    string
	NoAuth       bool
	TokenTTL     time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MetricsHandler, when set, is mounted at MetricsPath without authentication
	MetricsHandler http.Handler
	MetricsPath    string

	Logger *slog.Logger
}

// SetDefaults fills zero values
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8081"
	}
	if c.SecretKey == "" {
		c.SecretKey = defaultSecretKey
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// NewServer creates a new HTTP API server
func NewServer(store eventstore.EventStore, config Config) *Server {
	config.SetDefaults()

	logger := config.Logger.With("component", "httpapi")
	jwtAuth := NewJWTAuth(config.SecretKey, config.TokenTTL)

	server := &Server{
		store:      store,
		jwtAuth:    jwtAuth,
		handlers:   NewHandlers(store, jwtAuth, logger),
		middleware: NewMiddleware(jwtAuth, config.NoAuth, logger),
		logger:     logger,
		config:     config,
	}

	server.server = &http.Server{
		Addr:           config.Address,
		Handler:        server.setupRoutes(),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return server
}

// Handler returns the routed handler, for embedding or httptest
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured address and serves until Stop
func (s *Server) Start() error {
	s.logger.Info("http api listening", "address", s.config.Address, "auth_disabled", s.config.NoAuth)
	return s.server.ListenAndServe()
}

// Serve accepts connections on an existing listener until Stop
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("http api listening", "address", l.Addr().String(), "auth_disabled", s.config.NoAuth)
	return s.server.Serve(l)
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()
	m := s.middleware

	withMiddleware := m.Chain

	// Authentication endpoints (no auth required)
	mux.Handle("POST /api/v1/auth/login", withMiddleware(s.handlers.Login))

	// Event endpoints (auth required)
	mux.Handle("POST /api/v1/events", withMiddleware(m.AuthRequired(s.handlers.InsertEvent)))
	mux.Handle("POST /api/v1/events/batch", withMiddleware(m.AuthRequired(s.handlers.InsertEvents)))

	// Type endpoints (auth required)
	mux.Handle("GET /api/v1/types", withMiddleware(m.AuthRequired(s.handlers.ListTypes)))
	mux.Handle("DELETE /api/v1/types/{type}", withMiddleware(m.AuthRequired(s.handlers.RemoveType)))
	mux.Handle("GET /api/v1/types/{type}/events", withMiddleware(m.AuthRequired(s.handlers.QueryEvents)))
	mux.Handle("DELETE /api/v1/types/{type}/events", withMiddleware(m.AuthRequired(s.handlers.PruneEvents)))

	// Admin endpoints (admin auth required)
	mux.Handle("GET /api/v1/admin/stats", withMiddleware(m.AdminRequired(s.handlers.AdminGetStats)))

	// Health endpoint (no auth required)
	mux.Handle("GET /api/v1/health", withMiddleware(s.handlers.Health))

	if s.config.MetricsHandler != nil {
		mux.Handle("GET "+s.config.MetricsPath, m.Recovery(s.config.MetricsHandler.ServeHTTP))
	}

	mux.Handle("GET /{$}", withMiddleware(s.handleRoot))

	// CORS wraps the mux so preflight requests are answered for every path
	return m.CORS(mux.ServeHTTP)
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"service":     "EventStore HTTP API",
		"version":     "1.0.0",
		"description": "HTTP API for a type-partitioned, time-ordered in-memory event store",
		"endpoints": map[string]interface{}{
			"auth": map[string]string{
				"login": "POST /api/v1/auth/login",
			},
			"events": map[string]string{
				"insert": "POST /api/v1/events",
				"batch":  "POST /api/v1/events/batch",
			},
			"types": map[string]string{
				"list":      "GET /api/v1/types",
				"query":     "GET /api/v1/types/{type}/events?start={start}&end={end}&limit={limit}",
				"prune":     "DELETE /api/v1/types/{type}/events?start={start}&end={end}",
				"removeAll": "DELETE /api/v1/types/{type}",
			},
			"admin": map[string]string{
				"stats": "GET /api/v1/admin/stats",
			},
			"health": "GET /api/v1/health",
		},
		"authentication": "Bearer JWT token required for most endpoints",
	}

	writeJSON(w, info, http.StatusOK)
}
