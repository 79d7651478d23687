package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/serveur-am2025/localisation-server/internal/metrics"
)

// Monitor sweeps all tracked connections on a fixed interval, probing each
// one and pruning those whose transport is closed or whose probe fails.
// This is the only mechanism that reclaims a connection whose socket died
// without a close frame (power loss, network partition).
type Monitor struct {
	registry     *Registry
	clock        clockwork.Clock
	interval     time.Duration
	probeTimeout time.Duration
}

func NewMonitor(registry *Registry, clock clockwork.Clock, interval, probeTimeout time.Duration) *Monitor {
	return &Monitor{
		registry:     registry,
		clock:        clock,
		interval:     interval,
		probeTimeout: probeTimeout,
	}
}

// Run sweeps until ctx is cancelled. Outstanding probes are abandoned on
// cancellation; they share ctx and unblock with it.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Info("Liveness monitor started", "interval", m.interval, "probe_timeout", m.probeTimeout)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Liveness monitor stopped")
			return
		case <-ticker.Chan():
			m.Sweep(ctx)
		}
	}
}

// Sweep probes every tracked connection once. Probes run concurrently and
// fail independently: one stalled peer cannot delay or cancel the others,
// and every removal is attributable to its own probe result.
func (m *Monitor) Sweep(ctx context.Context) {
	peers := m.registry.SnapshotAll()

	var wg sync.WaitGroup
	for _, peer := range peers {
		wg.Add(1)
		go func(l Link) {
			defer wg.Done()
			m.probe(ctx, l)
		}(peer)
	}
	wg.Wait()

	metrics.MonitorSweepsTotal.Inc()
}

func (m *Monitor) probe(ctx context.Context, l Link) {
	if !l.Alive() {
		m.prune(l, "transport_closed")
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	if err := l.Ping(probeCtx); err != nil {
		metrics.MonitorPingFailures.Inc()
		slog.Info("Liveness probe failed", "conn_id", l.ID().String(), "error", err)
		m.prune(l, "probe_failed")
	}
}

func (m *Monitor) prune(l Link, reason string) {
	m.registry.Remove(l)
	l.Close()
	metrics.MonitorPrunedConnections.WithLabelValues(reason).Inc()
	slog.Info("Pruned dead connection", "conn_id", l.ID().String(), "reason", reason)
}
