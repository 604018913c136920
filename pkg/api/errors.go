package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/agentic-navigator/navigator/pkg/store"
	"github.com/agentic-navigator/navigator/pkg/workflow"
)

// mapStoreError maps store and workflow errors to HTTP error responses.
func mapStoreError(err error) *echo.HTTPError {
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if errors.Is(err, store.ErrUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
	}
	if errors.Is(err, workflow.ErrBusy) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "workflow capacity exhausted")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
