// Package api exposes the HTTP surface of the navigator: REST endpoints
// for sessions, bus introspection and health, plus the WebSocket
// navigation stream.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentic-navigator/navigator/pkg/bus"
	"github.com/agentic-navigator/navigator/pkg/config"
	"github.com/agentic-navigator/navigator/pkg/identity"
	"github.com/agentic-navigator/navigator/pkg/store"
	"github.com/agentic-navigator/navigator/pkg/stream"
	"github.com/agentic-navigator/navigator/pkg/workflow"
)

// Server is the HTTP server. All dependencies are injected; optional
// ones (verifier, audit) may be nil.
type Server struct {
	cfg      *config.Config
	store    store.SessionStore
	bus      *bus.Bus
	hub      *stream.Hub
	executor *workflow.Executor
	audit    *identity.AuditLog
	verifier *identity.IDTokenVerifier

	echo *echo.Echo
	http *http.Server
}

// NewServer wires the routes and middleware.
func NewServer(cfg *config.Config, st store.SessionStore, b *bus.Bus, hub *stream.Hub, exec *workflow.Executor, audit *identity.AuditLog) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		bus:      b,
		hub:      hub,
		executor: exec,
		audit:    audit,
	}

	e := echo.New()
	e.Use(requestLogger())
	e.Use(securityHeaders())

	e.GET("/api/v1/health", s.healthHandler)

	metricsHandler := promhttp.Handler()
	e.GET("/metrics", func(c *echo.Context) error {
		metricsHandler.ServeHTTP(c.Response(), c.Request())
		return nil
	})

	v1 := e.Group("/api/v1", s.requireIDToken())
	v1.GET("/sessions", s.listSessionsHandler)
	v1.GET("/sessions/:id", s.getSessionHandler)
	v1.DELETE("/sessions/:id", s.deleteSessionHandler)
	v1.GET("/sessions/:id/history", s.sessionHistoryHandler)
	v1.GET("/bus/stats", s.busStatsHandler)
	v1.GET("/bus/audit", s.busAuditHandler)

	e.GET("/ws/navigate", s.navigateWSHandler)

	s.echo = e
	return s
}

// SetIDTokenVerifier enables bearer-token authentication on the REST
// group. Without a verifier every request is accepted.
func (s *Server) SetIDTokenVerifier(v *identity.IDTokenVerifier) {
	s.verifier = v
}

// Start serves on addr and blocks until Shutdown or failure.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// StartWithListener serves on an existing listener, used by tests that
// need the ephemeral port before the server runs.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.http = &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.Serve(ln)
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// ServeHTTP lets the server be mounted directly in httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
