package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// HTTP ingest: devices without a websocket stack POST here; the payload
	// joins the same router path as websocket traffic.
	ingestLimit := newRateLimiter(s.config.IngestRate, s.config.IngestBurst)
	s.echo.POST("/api/lampadaire/update", s.handleLampUpdate, ingestLimit)
	s.echo.POST("/api/alert", s.handleAlert, ingestLimit)

	// Last-known state snapshot for viewers
	s.echo.GET("/api/lampadaires", s.handleLampList)

	// Relay endpoint for devices and viewer apps
	s.echo.GET("/ws/lampadaires", s.handleWebSocket)
}
