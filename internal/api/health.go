// internal/api/health.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// ready requires a loaded knowledge base.
func (s *Server) ready(c echo.Context) error {
	if s.deps.Knowledge == nil || s.deps.Knowledge.Len() == 0 {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"reason": "knowledge base not loaded",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"documents": s.deps.Knowledge.Len(),
	})
}
