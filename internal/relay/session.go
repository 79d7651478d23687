package relay

import (
	"log/slog"
	"sync"

	"github.com/serveur-am2025/localisation-server/internal/logging"
	"github.com/serveur-am2025/localisation-server/internal/metrics"
	"github.com/serveur-am2025/localisation-server/internal/protocol"
)

// Session runs one connection's read loop and owns its role state machine.
// The role starts unknown and is resolved at most once by the router.
type Session struct {
	router   *Router
	registry *Registry
	link     Link

	role       Role
	producerID string

	cleanupOnce sync.Once
	log         *slog.Logger
}

func NewSession(router *Router, registry *Registry, link Link) *Session {
	return &Session{
		router:   router,
		registry: registry,
		link:     link,
		log:      logging.WithConn(link.ID().String()),
	}
}

// Role returns the session's current resolved role.
func (s *Session) Role() Role {
	return s.role
}

// Run reads frames until the transport fails or closes, handing each one to
// the router. It removes the connection from the registry exactly once on
// the way out.
func (s *Session) Run() {
	defer s.cleanup()

	s.log.Info("Client connected", "remote_addr", s.link.RemoteAddr())
	if greeting := protocol.Encode(protocol.Status("Connecté au serveur de lampadaires")); greeting != nil {
		_ = s.link.Send(greeting)
	}

	for {
		frame, err := s.link.Receive()
		if err != nil {
			s.log.Debug("Read loop terminated", "error", err)
			return
		}
		s.handleFrame(frame)
	}
}

// handleFrame contains a panic from one message so a single bad frame cannot
// take down an otherwise-healthy connection, let alone the process.
func (s *Session) handleFrame(frame []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RelayHandlerPanics.Inc()
			s.log.Error("Panic while handling message", "panic", rec)
		}
	}()
	s.router.Handle(s, frame)
}

func (s *Session) cleanup() {
	s.cleanupOnce.Do(func() {
		s.registry.Remove(s.link)
		s.link.Close()
		s.log.Info("Client disconnected", "role", s.role.String(), "lampadaire_id", s.producerID)
	})
}
