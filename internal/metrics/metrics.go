package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay Metrics
var (
	// RelayConnectedPeers tracks live connections by role (unknown/consumer/producer)
	RelayConnectedPeers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_connected_peers",
			Help: "Live relay connections by role",
		},
		[]string{"role"},
	)

	// RelayMessagesTotal tracks inbound messages by declared type
	RelayMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Inbound relay messages by type",
		},
		[]string{"type"},
	)

	// RelayFanoutDeliveries tracks messages enqueued to consumers during fan-out
	RelayFanoutDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_fanout_deliveries_total",
			Help: "Messages enqueued to consumers during fan-out",
		},
	)

	// RelayFanoutFailures tracks per-consumer send failures during fan-out
	RelayFanoutFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_fanout_failures_total",
			Help: "Per-consumer send failures during fan-out",
		},
	)

	// RelaySupersededProducers tracks producer registrations replacing a live mapping
	RelaySupersededProducers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_superseded_producers_total",
			Help: "Producer registrations that replaced an existing mapping",
		},
	)

	// RelayHandlerPanics tracks panics recovered inside message handling
	RelayHandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_handler_panics_total",
			Help: "Panics recovered while handling a message",
		},
	)
)

// Liveness Monitor Metrics
var (
	// MonitorSweepsTotal tracks completed liveness sweeps
	MonitorSweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_sweeps_total",
			Help: "Completed liveness sweeps",
		},
	)

	// MonitorPingFailures tracks failed or timed-out liveness probes
	MonitorPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_ping_failures_total",
			Help: "Failed or timed-out liveness probes",
		},
	)

	// MonitorPrunedConnections tracks connections removed by the sweep, by reason
	MonitorPrunedConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_pruned_connections_total",
			Help: "Connections pruned by the liveness sweep, by reason",
		},
		[]string{"reason"},
	)
)

// Transport Metrics
var (
	// PeerSendBufferFull tracks sends dropped because a peer's buffer was full
	PeerSendBufferFull = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peer_send_buffer_full_total",
			Help: "Sends dropped because the peer send buffer was full",
		},
	)

	// PeerWriteFailures tracks websocket write errors
	PeerWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peer_write_failures_total",
			Help: "WebSocket write errors",
		},
	)

	// CircuitBreakerStateChanges tracks per-peer circuit breaker transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Peer circuit breaker state transitions by new state",
		},
		[]string{"state"},
	)
)

// HTTP Ingest Metrics
var (
	// IngestRequestsTotal tracks HTTP ingest requests by endpoint and status
	IngestRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_requests_total",
			Help: "HTTP ingest requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)
)
