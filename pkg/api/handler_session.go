package api

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/agentic-navigator/navigator/pkg/bus"
	"github.com/agentic-navigator/navigator/pkg/models"
)

const defaultListLimit = 25

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	SessionID       string                `json:"session_id"`
	ContentType     models.ContentType    `json:"content_type"`
	WorkflowStatus  models.WorkflowStatus `json:"workflow_status"`
	CompletedAgents []string              `json:"completed_agents"`
	ErrorCount      int                   `json:"error_count"`
	StartedAt       time.Time             `json:"started_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// SessionListResponse is returned by GET /api/v1/sessions.
type SessionListResponse struct {
	Sessions   []SessionSummary `json:"sessions"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// listSessionsHandler handles GET /api/v1/sessions.
//
// Query parameters: ?limit=N (1..100, default 25) and ?cursor=<opaque>.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	limit := defaultListLimit
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	ids, next, err := s.store.ListContexts(c.Request().Context(), limit, c.QueryParam("cursor"))
	if err != nil {
		return mapStoreError(err)
	}

	response := SessionListResponse{
		Sessions:   []SessionSummary{},
		NextCursor: next,
	}
	for _, id := range ids {
		sc, err := s.store.LoadContext(c.Request().Context(), id)
		if err != nil {
			// The snapshot can vanish between list and load.
			continue
		}
		response.Sessions = append(response.Sessions, SessionSummary{
			SessionID:       sc.SessionID,
			ContentType:     sc.ContentType,
			WorkflowStatus:  sc.WorkflowStatus,
			CompletedAgents: sc.CompletedAgents,
			ErrorCount:      len(sc.Errors),
			StartedAt:       sc.StartedAt,
			UpdatedAt:       sc.UpdatedAt,
		})
	}
	return c.JSON(http.StatusOK, response)
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	sc, err := s.store.LoadContext(c.Request().Context(), sessionID)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

// deleteSessionHandler handles DELETE /api/v1/sessions/:id.
func (s *Server) deleteSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	if err := s.store.DeleteContext(c.Request().Context(), sessionID); err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// SessionHistoryResponse is returned by GET /api/v1/sessions/:id/history.
type SessionHistoryResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []*bus.A2AMessage `json:"messages"`
}

// sessionHistoryHandler handles GET /api/v1/sessions/:id/history.
//
// Query parameters: ?agent=X filters on sender or recipient, ?type=X on
// message type, ?since=<unix seconds> on timestamp, ?limit=N caps the
// result.
func (s *Server) sessionHistoryHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	// The snapshot lookup doubles as the existence check.
	if _, err := s.store.LoadContext(c.Request().Context(), sessionID); err != nil {
		return mapStoreError(err)
	}

	filter := bus.HistoryFilter{
		Agent: c.QueryParam("agent"),
		Type:  bus.MessageType(c.QueryParam("type")),
	}
	if v := c.QueryParam("since"); v != "" {
		since, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be a unix timestamp")
		}
		filter.Since = since
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := s.store.ReadHistory(c.Request().Context(), sessionID, filter, limit)
	if err != nil {
		return mapStoreError(err)
	}
	if messages == nil {
		messages = []*bus.A2AMessage{}
	}
	return c.JSON(http.StatusOK, SessionHistoryResponse{
		SessionID: sessionID,
		Messages:  messages,
	})
}
