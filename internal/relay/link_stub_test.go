package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// stubLink is an in-memory Link for registry, router, and monitor tests.
type stubLink struct {
	id uuid.UUID

	mu         sync.Mutex
	sent       [][]byte
	sendErr    error
	sendPanics bool
	pingErr    error
	// pingBlocks makes Ping hang until the probe context expires.
	pingBlocks bool
	alive      bool
	closed     bool
}

var _ Link = (*stubLink)(nil)

func newStubLink() *stubLink {
	return &stubLink{id: uuid.New(), alive: true}
}

func (l *stubLink) ID() uuid.UUID      { return l.id }
func (l *stubLink) RemoteAddr() string { return "stub:0" }

func (l *stubLink) Send(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendPanics {
		panic("send exploded")
	}
	if l.sendErr != nil {
		return l.sendErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	l.sent = append(l.sent, buf)
	return nil
}

func (l *stubLink) Receive() ([]byte, error) {
	return nil, ErrLinkClosed
}

func (l *stubLink) Ping(ctx context.Context) error {
	l.mu.Lock()
	blocks, err := l.pingBlocks, l.pingErr
	l.mu.Unlock()
	if blocks {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (l *stubLink) Alive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alive
}

func (l *stubLink) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.alive = false
}

func (l *stubLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *stubLink) sentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent)
}

// decodedSent returns every frame sent to this link, decoded as JSON objects.
func (l *stubLink) decodedSent(t *testing.T) []map[string]any {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()

	decoded := make([]map[string]any, 0, len(l.sent))
	for _, frame := range l.sent {
		var obj map[string]any
		require.NoError(t, json.Unmarshal(frame, &obj))
		decoded = append(decoded, obj)
	}
	return decoded
}

func (l *stubLink) lastSent(t *testing.T) map[string]any {
	t.Helper()
	all := l.decodedSent(t)
	require.NotEmpty(t, all)
	return all[len(all)-1]
}
