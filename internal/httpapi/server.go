// Package httpapi serves the hub over a JSON REST API with JWT bearer
// authentication and Server-Sent Events streaming.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/rmacdonaldsmith/pubsub-go/internal/hub"
	"github.com/rmacdonaldsmith/pubsub-go/internal/telemetry"
)

// DefaultKeepalive is the idle interval between SSE keepalive comments
const DefaultKeepalive = 30 * time.Second

// DefaultSecretKey signs tokens when no secret is configured
const DefaultSecretKey = "pubsub-dev-secret-key-change-in-production"

// Server represents the HTTP API server
type Server struct {
	hub        *hub.Hub
	jwtAuth    *JWTAuth
	handlers   *Handlers
	middleware *Middleware
	server     *http.Server
	logger     zerolog.Logger
}

// Config holds server configuration
type Config struct {
	Addr      string
	SecretKey string
	TokenTTL  time.Duration

	// NoAuth bypasses authentication on every non-admin endpoint
	NoAuth bool

	// Keepalive is the SSE keepalive interval
	Keepalive time.Duration

	// StreamBuffer sizes each stream's delivery queue
	StreamBuffer int

	// Metrics serves telemetry.Handler at /metrics
	Metrics bool

	Logger zerolog.Logger
}

// NewServer creates a new HTTP API server
func NewServer(h *hub.Hub, config Config) *Server {
	secretKey := config.SecretKey
	if secretKey == "" {
		secretKey = DefaultSecretKey
	}

	logger := config.Logger.With().Str("component", "httpapi").Logger()
	jwtAuth := NewJWTAuth(secretKey, config.TokenTTL)

	server := &Server{
		hub:        h,
		jwtAuth:    jwtAuth,
		handlers:   NewHandlers(h, jwtAuth, config.Keepalive, config.StreamBuffer, logger),
		middleware: NewMiddleware(jwtAuth, config.NoAuth, logger),
		logger:     logger,
	}

	// no write timeout: SSE responses stay open indefinitely
	server.server = &http.Server{
		Addr:              config.Addr,
		Handler:           server.setupRoutes(config.Metrics),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	return server
}

// Handler returns the server's root handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured address and serves until Stop
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves HTTP on ln until Stop
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("address", ln.Addr().String()).Msg("HTTP server started")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop ends open event streams, then gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.handlers.close()
	return s.server.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(metrics bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.middleware.Recovery)
	r.Use(s.middleware.Logging)
	r.Use(s.middleware.CORS)

	if metrics {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			telemetry.Handler().ServeHTTP(w, r)
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.middleware.ContentType)

		// Authentication and health (no auth required)
		r.Post("/auth/login", s.handlers.Login)
		r.Get("/health", s.handlers.Health)

		r.Group(func(r chi.Router) {
			r.Use(s.middleware.AuthRequired)

			r.Post("/events", s.handlers.PublishEvent)
			r.Get("/events/stream", s.handlers.StreamEvents)

			r.Get("/subscriptions", s.handlers.ListSubscriptions)
			r.Post("/subscriptions", s.handlers.CreateSubscription)
			r.Delete("/subscriptions", s.handlers.DeleteSubscription)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.middleware.AdminRequired)

			r.Get("/clients", s.handlers.AdminListClients)
			r.Get("/channels", s.handlers.AdminListChannels)
			r.Get("/stats", s.handlers.AdminGetStats)
		})
	})

	r.Get("/", s.handleRoot)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	return r
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"service":     "PubSub HTTP API",
		"version":     "1.0.0",
		"description": "Publish/subscribe over literal and wildcard channels",
		"nodeId":      s.hub.NodeID(),
		"endpoints": map[string]any{
			"auth": map[string]string{
				"login": "POST /api/v1/auth/login",
			},
			"events": map[string]string{
				"publish": "POST /api/v1/events",
				"stream":  "GET /api/v1/events/stream?channel={channel}",
			},
			"subscriptions": map[string]string{
				"list":   "GET /api/v1/subscriptions",
				"create": "POST /api/v1/subscriptions",
				"delete": "DELETE /api/v1/subscriptions?channel={channel}",
			},
			"admin": map[string]string{
				"clients":  "GET /api/v1/admin/clients",
				"channels": "GET /api/v1/admin/channels",
				"stats":    "GET /api/v1/admin/stats",
			},
			"health":  "GET /api/v1/health",
			"metrics": "GET /metrics",
		},
		"authentication": "Bearer JWT token required for most endpoints",
	}

	writeJSON(w, info, http.StatusOK)
}
