// Package server is the HTTP and websocket front door: it upgrades relay
// connections, translates HTTP ingest requests into the router, and serves
// health and metrics endpoints.
package server

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/serveur-am2025/localisation-server/internal/config"
	"github.com/serveur-am2025/localisation-server/internal/relay"
	"github.com/serveur-am2025/localisation-server/internal/state"
)

type Server struct {
	echo     *echo.Echo
	config   *config.Config
	registry *relay.Registry
	router   *relay.Router
	store    *state.Store
	clock    clockwork.Clock
	limiter  *ConnectionLimiter

	startTime time.Time
}

func New(cfg *config.Config, registry *relay.Registry, router *relay.Router, store *state.Store, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		config:    cfg,
		registry:  registry,
		router:    router,
		store:     store,
		clock:     clock,
		limiter:   NewConnectionLimiter(cfg.MaxClients),
		startTime: clock.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	return s.echo.Start(":" + s.config.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the echo instance as an http.Handler for tests.
func (s *Server) Handler() *echo.Echo {
	return s.echo
}
