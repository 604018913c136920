package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/agentic-navigator/navigator/pkg/identity"
	"github.com/agentic-navigator/navigator/pkg/version"
)

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Store   string `json:"store"`
	Version string `json:"version"`
	Error   string `json:"error,omitempty"`
}

// healthHandler handles GET /api/v1/health. Unauthenticated so probes
// and load balancers can reach it.
func (s *Server) healthHandler(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:  "unhealthy",
			Store:   string(s.cfg.StoreBackend),
			Version: version.Full(),
			Error:   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Store:   string(s.cfg.StoreBackend),
		Version: version.Full(),
	})
}

// busStatsHandler handles GET /api/v1/bus/stats.
func (s *Server) busStatsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.bus.Stats())
}

// BusAuditResponse is returned by GET /api/v1/bus/audit.
type BusAuditResponse struct {
	Records []identity.AuditRecord `json:"records"`
}

// busAuditHandler handles GET /api/v1/bus/audit. Records carry routing
// metadata only, never payloads, so exposing them is safe.
func (s *Server) busAuditHandler(c *echo.Context) error {
	records := s.audit.Records()
	if records == nil {
		records = []identity.AuditRecord{}
	}
	return c.JSON(http.StatusOK, BusAuditResponse{Records: records})
}
