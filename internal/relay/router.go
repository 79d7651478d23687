package relay

import (
	"log/slog"

	"github.com/serveur-am2025/localisation-server/internal/metrics"
	"github.com/serveur-am2025/localisation-server/internal/protocol"
	"github.com/serveur-am2025/localisation-server/internal/state"
)

// Role is a connection's resolved role. The transition out of RoleUnknown
// happens at most once and is terminal for the connection's lifetime.
type Role int

const (
	RoleUnknown Role = iota
	RoleConsumer
	RoleProducer
)

func (r Role) String() string {
	switch r {
	case RoleConsumer:
		return "consumer"
	case RoleProducer:
		return "producer"
	default:
		return "unknown"
	}
}

// Router classifies inbound messages and dispatches them: registration,
// role inference, fan-out to consumers, command unicast to producers.
type Router struct {
	registry    *Registry
	store       *state.Store
	tokenPrefix string
}

func NewRouter(registry *Registry, store *state.Store, tokenPrefix string) *Router {
	return &Router{
		registry:    registry,
		store:       store,
		tokenPrefix: tokenPrefix,
	}
}

// Handle processes one inbound frame on behalf of a session. All error
// conditions are reported to the sender; none of them drop the connection.
func (r *Router) Handle(s *Session, frame []byte) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		slog.Debug("Undecodable frame", "conn_id", s.link.ID().String())
		r.reply(s.link, protocol.Error("invalid_json"))
		return
	}
	metrics.RelayMessagesTotal.WithLabelValues(messageTypeLabel(msg.Type)).Inc()

	switch msg.Type {
	case protocol.TypeRegister:
		r.handleRegister(s, msg)
	case protocol.TypeAuth:
		r.handleAuth(s, msg)
	case protocol.TypeStateUpdate, protocol.TypeAlert:
		r.handleEvent(s, msg)
	case protocol.TypeCommand:
		r.inferConsumer(s)
		r.handleCommand(s, msg)
	default:
		r.inferConsumer(s)
		r.reply(s.link, protocol.AckUnknown())
	}
}

func (r *Router) handleRegister(s *Session, msg *protocol.Message) {
	switch msg.String("role") {
	case protocol.RoleConsumer:
		if s.role == RoleProducer {
			s.log.Warn("Consumer registration from producer connection dropped")
			return
		}
		r.registry.AddConsumer(s.link)
		s.role = RoleConsumer
		r.reply(s.link, protocol.Welcome(protocol.RoleConsumer, false))

	case protocol.RoleProducer:
		id := msg.ProducerID()
		if id == "" {
			s.log.Warn("Producer registration without id dropped")
			return
		}
		if s.role == RoleConsumer {
			s.log.Warn("Producer registration from consumer connection dropped", "lampadaire_id", id)
			return
		}
		r.registerProducer(s, id)
		r.reply(s.link, protocol.Welcome(protocol.RoleProducer, true))

	default:
		s.log.Warn("Registration with unrecognized role dropped", "role", msg.String("role"))
	}
}

// handleAuth verifies the static device token from the firmware handshake.
// A valid token is a producer registration; an invalid one leaves the
// connection unregistered but open.
func (r *Router) handleAuth(s *Session, msg *protocol.Message) {
	id := msg.String("lampadaire_id")
	token := msg.String("token")
	if id == "" || token == "" {
		r.reply(s.link, protocol.AuthFailure("ID ou token manquant"))
		return
	}
	if s.role == RoleConsumer {
		s.log.Warn("Auth from consumer connection dropped", "lampadaire_id", id)
		r.reply(s.link, protocol.AuthFailure("connexion deja enregistree"))
		return
	}
	if token != r.tokenPrefix+"_"+id {
		s.log.Warn("Device auth failed", "lampadaire_id", id)
		r.reply(s.link, protocol.AuthFailure("Token invalide"))
		return
	}

	r.registerProducer(s, id)
	s.log.Info("Device authenticated", "lampadaire_id", id)
	r.reply(s.link, protocol.AuthSuccess(id))
}

// handleEvent handles state updates and alerts: resolve the sender's role if
// still unknown, acknowledge, record the latest state, fan out verbatim.
func (r *Router) handleEvent(s *Session, msg *protocol.Message) {
	if s.role == RoleUnknown {
		id := msg.ProducerID()
		if id == "" {
			s.log.Warn("Cannot infer producer: payload carries no identifier", "type", msg.Type)
			r.reply(s.link, protocol.Error("missing_producer_id"))
			return
		}
		r.registerProducer(s, id)
		s.log.Info("Producer inferred from first message", "lampadaire_id", id, "type", msg.Type)
	}

	r.reply(s.link, protocol.Ack(msg.Type))
	r.Publish(msg)
}

func (r *Router) handleCommand(s *Session, msg *protocol.Message) {
	target := msg.String("target_id")
	if target == "" {
		r.reply(s.link, protocol.Error("missing target_id"))
		return
	}

	producer, ok := r.registry.LookupProducer(target)
	if !ok {
		r.reply(s.link, protocol.Error("esp_not_connected"))
		return
	}

	// Unicast failure is isolated: the sender still gets its ok reply and
	// the dead producer is reclaimed by the liveness sweep.
	if err := producer.Send(msg.Raw()); err != nil {
		slog.Warn("Command unicast failed",
			"lampadaire_id", target,
			"conn_id", producer.ID().String(),
			"error", err,
		)
	}
	r.reply(s.link, protocol.OK("command_sent"))
}

// Publish records the latest producer state and fans the original payload
// out to a snapshot of the current consumers. Used by both the websocket
// path and the HTTP ingest endpoints. One consumer's failure never aborts
// delivery to the others.
func (r *Router) Publish(msg *protocol.Message) {
	if msg.Type == protocol.TypeStateUpdate {
		if lamp := msg.Object("lampadaire"); lamp != nil {
			if id := msg.ProducerID(); id != "" {
				r.store.Put(id, lamp)
			}
		}
	}

	for _, consumer := range r.registry.SnapshotConsumers() {
		if err := consumer.Send(msg.Raw()); err != nil {
			metrics.RelayFanoutFailures.Inc()
			slog.Warn("Fan-out send failed",
				"conn_id", consumer.ID().String(),
				"type", msg.Type,
				"error", err,
			)
			continue
		}
		metrics.RelayFanoutDeliveries.Inc()
	}
}

func (r *Router) registerProducer(s *Session, id string) {
	r.registry.AddProducer(s.link, id)
	s.role = RoleProducer
	s.producerID = id
}

func (r *Router) inferConsumer(s *Session) {
	if s.role != RoleUnknown {
		return
	}
	r.registry.AddConsumer(s.link)
	s.role = RoleConsumer
	s.log.Info("Consumer inferred from first message")
}

func (r *Router) reply(l Link, payload any) {
	data := protocol.Encode(payload)
	if data == nil {
		return
	}
	if err := l.Send(data); err != nil {
		slog.Warn("Reply send failed", "conn_id", l.ID().String(), "error", err)
	}
}

// messageTypeLabel keeps metric label cardinality bounded: anything outside
// the known types is counted as "other".
func messageTypeLabel(msgType string) string {
	switch msgType {
	case protocol.TypeRegister, protocol.TypeStateUpdate, protocol.TypeAlert,
		protocol.TypeCommand, protocol.TypeAuth:
		return msgType
	default:
		return "other"
	}
}
