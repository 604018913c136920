package api

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
)

// requireIDToken returns middleware enforcing a trusted bearer JWT when
// a verifier is configured. With no verifier the check is a no-op, which
// is the development default.
func (s *Server) requireIDToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			if s.verifier == nil {
				return next(c)
			}

			header := c.Request().Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "bearer token required")
			}

			caller, err := s.verifier.VerifyIDToken(c.Request().Context(), token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
			}
			c.Set("caller", caller)
			return next(c)
		}
	}
}
