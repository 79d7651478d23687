package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

// handleReadiness has no external dependencies to check; it reports the
// registry's current shape so operators can see the relay is doing work.
func (s *Server) handleReadiness(c echo.Context) error {
	consumers, producers := s.registry.Counts()
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ready",
		"consumers":   consumers,
		"producers":   producers,
		"lampadaires": s.store.Len(),
		"connections": s.limiter.Current(),
	})
}
