// Package relay implements the connection registry, message router, and
// liveness monitor that move lampadaire traffic between field devices and
// viewer clients.
package relay

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrLinkClosed is returned when sending or probing a closed connection.
	ErrLinkClosed = errors.New("link closed")
	// ErrSendBufferFull is returned when a peer's outbound buffer is saturated.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrCircuitOpen is returned when a peer's circuit breaker rejects a send.
	ErrCircuitOpen = errors.New("peer circuit open")
)

// Link is one duplex connection to a peer. The registry, router, and monitor
// only ever see this interface; the websocket specifics live in Peer.
type Link interface {
	// ID identifies the connection for the registry's indexes and logs.
	ID() uuid.UUID
	// RemoteAddr reports the peer's network address for logging.
	RemoteAddr() string
	// Send enqueues one outbound frame. It never blocks on the network:
	// a saturated buffer or open circuit fails fast instead.
	Send(data []byte) error
	// Receive blocks until the next inbound frame or a transport error.
	Receive() ([]byte, error)
	// Ping issues a liveness probe and waits for its acknowledgment until
	// ctx expires.
	Ping(ctx context.Context) error
	// Alive reports whether the underlying transport is still usable.
	Alive() bool
	// Close tears the connection down. Safe to call more than once.
	Close()
}
