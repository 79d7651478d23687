package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/serveur-am2025/localisation-server/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // devices and viewer apps connect from anywhere; TLS terminates at the proxy
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	if !s.limiter.Acquire() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "limite de connexions atteinte",
		})
	}
	defer s.limiter.Release()

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	peer := relay.NewPeer(conn, s.clock, s.config.SendBufferSize)

	// Blocks until the connection closes; the session removes itself from
	// the registry on the way out.
	relay.NewSession(s.router, s.registry, peer).Run()
	return nil
}
