package relay

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/serveur-am2025/localisation-server/internal/metrics"
)

const (
	writeDeadline = 5 * time.Second
	readDeadline  = 90 * time.Second
	maxFrameSize  = 64 * 1024

	// breakerFailureRate: 60% failure rate over min 5 sends in a 10s window
	// opens the circuit; one success in half-open closes it again.
	breakerFailureRate   = 0.6
	breakerMinExecutions = 5
	breakerWindow        = 10 * time.Second
	breakerOpenDelay     = 30 * time.Second
)

type outboundFrame struct {
	messageType int
	data        []byte
}

// Peer is the websocket implementation of Link. A single writer goroutine
// owns all writes to the socket; Send and Ping enqueue frames to it.
type Peer struct {
	id      uuid.UUID
	conn    *websocket.Conn
	clock   clockwork.Clock
	breaker circuitbreaker.CircuitBreaker[any]

	sendCh chan outboundFrame
	done   chan struct{}
	closed atomic.Bool

	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup

	pingSeq     atomic.Uint64
	pongMu      sync.Mutex
	pongWaiters map[string]chan struct{}
}

var _ Link = (*Peer)(nil)

// NewPeer wraps an upgraded websocket connection and starts its writer
// goroutine. sendBuffer bounds the outbound queue; a peer that cannot drain
// it fails sends instead of blocking the relay.
func NewPeer(conn *websocket.Conn, clock clockwork.Clock, sendBuffer int) *Peer {
	p := &Peer{
		id:          uuid.New(),
		conn:        conn,
		clock:       clock,
		sendCh:      make(chan outboundFrame, sendBuffer),
		done:        make(chan struct{}),
		pongWaiters: make(map[string]chan struct{}),
	}

	p.breaker = circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(breakerFailureRate, breakerMinExecutions, breakerWindow).
		WithDelay(breakerOpenDelay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Peer circuit breaker state changed",
				"conn_id", p.id.String(),
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.CircuitBreakerStateChanges.WithLabelValues(e.NewState.String()).Inc()
		}).
		Build()

	conn.SetReadLimit(maxFrameSize)
	p.updateReadDeadline()
	conn.SetPongHandler(func(appData string) error {
		p.updateReadDeadline()
		p.pongMu.Lock()
		if ch, ok := p.pongWaiters[appData]; ok {
			close(ch)
			delete(p.pongWaiters, appData)
		}
		p.pongMu.Unlock()
		return nil
	})

	p.wg.Add(1)
	go p.writeLoop()
	return p
}

func (p *Peer) ID() uuid.UUID {
	return p.id
}

func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// Send enqueues one text frame, guarded by the peer's circuit breaker so a
// persistently failing consumer is skipped during fan-out instead of burning
// a buffer slot every tick.
func (p *Peer) Send(data []byte) error {
	if p.closed.Load() {
		return ErrLinkClosed
	}
	if !p.breaker.TryAcquirePermit() {
		return ErrCircuitOpen
	}
	select {
	case p.sendCh <- outboundFrame{websocket.TextMessage, data}:
		p.breaker.RecordSuccess()
		return nil
	default:
		p.breaker.RecordError(ErrSendBufferFull)
		metrics.PeerSendBufferFull.Inc()
		return ErrSendBufferFull
	}
}

// Receive blocks for the next inbound text frame. Any read error closes the
// transport; the caller's read loop terminates on the returned error.
func (p *Peer) Receive() ([]byte, error) {
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		p.signalStop()
		_ = p.conn.Close()
		return nil, err
	}
	p.updateReadDeadline()
	return data, nil
}

// Ping sends a websocket ping carrying a sequence number and waits for the
// matching pong until ctx expires. The pong arrives on the peer's read loop,
// so a connection nobody is reading from will time out here — which is the
// point.
func (p *Peer) Ping(ctx context.Context) error {
	if p.closed.Load() {
		return ErrLinkClosed
	}

	seq := strconv.FormatUint(p.pingSeq.Add(1), 10)
	ack := make(chan struct{})
	p.pongMu.Lock()
	p.pongWaiters[seq] = ack
	p.pongMu.Unlock()
	defer func() {
		p.pongMu.Lock()
		delete(p.pongWaiters, seq)
		p.pongMu.Unlock()
	}()

	select {
	case p.sendCh <- outboundFrame{websocket.PingMessage, []byte(seq)}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrLinkClosed
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrLinkClosed
	}
}

func (p *Peer) Alive() bool {
	return !p.closed.Load()
}

// Close shuts the peer down, sending a close frame once the writer goroutine
// has exited so the two never write concurrently.
func (p *Peer) Close() {
	p.signalStop()
	p.closeOnce.Do(func() {
		p.wg.Wait()
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		p.updateWriteDeadline()
		_ = p.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = p.conn.Close()
	})
}

func (p *Peer) signalStop() {
	p.stopOnce.Do(func() {
		p.closed.Store(true)
		close(p.done)
	})
}

func (p *Peer) writeLoop() {
	defer p.wg.Done()

	for {
		select {
		case frame := <-p.sendCh:
			p.updateWriteDeadline()
			if err := p.conn.WriteMessage(frame.messageType, frame.data); err != nil {
				metrics.PeerWriteFailures.Inc()
				p.breaker.RecordError(err)
				p.signalStop()
				_ = p.conn.Close()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *Peer) updateWriteDeadline() {
	_ = p.conn.SetWriteDeadline(p.clock.Now().Add(writeDeadline))
}

func (p *Peer) updateReadDeadline() {
	_ = p.conn.SetReadDeadline(p.clock.Now().Add(readDeadline))
}
