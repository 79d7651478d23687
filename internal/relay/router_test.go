package relay

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serveur-am2025/localisation-server/internal/state"
)

const testTokenPrefix = "lampadaire_token"

func newTestRouter(t *testing.T) (*Router, *Registry, *state.Store) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	registry := NewRegistry()
	store := state.NewStore(clock)
	return NewRouter(registry, store, testTokenPrefix), registry, store
}

func newTestSession(router *Router, registry *Registry) (*Session, *stubLink) {
	link := newStubLink()
	return NewSession(router, registry, link), link
}

func TestRouter_RegisterConsumer(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, link := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"register","role":"consumer"}`))

	assert.Equal(t, RoleConsumer, sess.Role())
	consumers, producers := registry.Counts()
	assert.Equal(t, 1, consumers)
	assert.Equal(t, 0, producers)

	replies := link.decodedSent(t)
	require.Len(t, replies, 1)
	assert.Equal(t, "welcome", replies[0]["type"])
	assert.Equal(t, "consumer", replies[0]["role"])
}

func TestRouter_RegisterProducer(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, link := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"register","role":"producer","id":"esp-1"}`))

	assert.Equal(t, RoleProducer, sess.Role())
	found, ok := registry.LookupProducer("esp-1")
	require.True(t, ok)
	assert.Equal(t, link.ID(), found.ID())

	reply := link.lastSent(t)
	assert.Equal(t, "welcome", reply["type"])
	assert.Equal(t, "producer", reply["role"])
	assert.Equal(t, true, reply["ack"])
}

func TestRouter_RegisterWithUnrecognizedRoleIsDropped(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, link := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"register","role":"supervisor"}`))
	router.Handle(sess, []byte(`{"type":"register"}`))

	assert.Equal(t, RoleUnknown, sess.Role())
	consumers, producers := registry.Counts()
	assert.Zero(t, consumers)
	assert.Zero(t, producers)
	assert.Zero(t, link.sentCount())
}

func TestRouter_RegisterProducerWithoutIDIsDropped(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, link := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"register","role":"producer"}`))

	assert.Equal(t, RoleUnknown, sess.Role())
	_, producers := registry.Counts()
	assert.Zero(t, producers)
	assert.Zero(t, link.sentCount())
}

func TestRouter_StateUpdateInfersProducerAndFansOut(t *testing.T) {
	router, registry, store := newTestRouter(t)

	consumerSess, consumerLink := newTestSession(router, registry)
	router.Handle(consumerSess, []byte(`{"type":"register","role":"consumer"}`))

	producerSess, producerLink := newTestSession(router, registry)
	frame := []byte(`{"type":"state_update","lampadaire":{"id":"7","batterie":42}}`)
	router.Handle(producerSess, frame)

	// Sender is inferred as producer id 7 and acked.
	assert.Equal(t, RoleProducer, producerSess.Role())
	found, ok := registry.LookupProducer("7")
	require.True(t, ok)
	assert.Equal(t, producerLink.ID(), found.ID())

	ack := producerLink.lastSent(t)
	assert.Equal(t, "ack", ack["type"])
	assert.Equal(t, true, ack["received"])
	assert.Equal(t, "state_update", ack["orig_type"])

	// The consumer receives the original payload unchanged.
	replies := consumerLink.decodedSent(t)
	require.Len(t, replies, 2) // welcome + fan-out
	update := replies[1]
	assert.Equal(t, "state_update", update["type"])
	lamp := update["lampadaire"].(map[string]any)
	assert.Equal(t, "7", lamp["id"])
	assert.Equal(t, 42.0, lamp["batterie"])

	// The last-known state is recorded.
	entry, ok := store.Get("7")
	require.True(t, ok)
	assert.Equal(t, 42.0, entry.Fields["batterie"])
}

func TestRouter_LateConsumerDoesNotReceiveEarlierUpdate(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	producerSess, _ := newTestSession(router, registry)
	router.Handle(producerSess, []byte(`{"type":"state_update","lampadaire":{"id":"7"}}`))

	lateSess, lateLink := newTestSession(router, registry)
	router.Handle(lateSess, []byte(`{"type":"register","role":"consumer"}`))

	replies := lateLink.decodedSent(t)
	require.Len(t, replies, 1)
	assert.Equal(t, "welcome", replies[0]["type"])
}

func TestRouter_StateUpdateWithoutIdentifierFromUnknownConnection(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, link := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"state_update"}`))

	assert.Equal(t, RoleUnknown, sess.Role())
	reply := link.lastSent(t)
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, "missing_producer_id", reply["message"])
}

func TestRouter_AlertInfersProducerAndFansOut(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	consumerSess, consumerLink := newTestSession(router, registry)
	router.Handle(consumerSess, []byte(`{"type":"register","role":"consumer"}`))

	producerSess, producerLink := newTestSession(router, registry)
	router.Handle(producerSess, []byte(`{"type":"alert","lampadaire_id":"3","titre":"panne secteur"}`))

	assert.Equal(t, RoleProducer, producerSess.Role())
	_, ok := registry.LookupProducer("3")
	assert.True(t, ok)

	ack := producerLink.lastSent(t)
	assert.Equal(t, "alert", ack["orig_type"])

	fanout := consumerLink.lastSent(t)
	assert.Equal(t, "alert", fanout["type"])
	assert.Equal(t, "panne secteur", fanout["titre"])
}

func TestRouter_FanoutFailureIsIsolated(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	brokenSess, brokenLink := newTestSession(router, registry)
	router.Handle(brokenSess, []byte(`{"type":"register","role":"consumer"}`))
	brokenLink.mu.Lock()
	brokenLink.sendErr = ErrSendBufferFull
	brokenLink.mu.Unlock()

	healthySess, healthyLink := newTestSession(router, registry)
	router.Handle(healthySess, []byte(`{"type":"register","role":"consumer"}`))

	producerSess, producerLink := newTestSession(router, registry)
	router.Handle(producerSess, []byte(`{"type":"state_update","lampadaire":{"id":"7"}}`))

	// The healthy consumer still gets the update and the producer still
	// gets its ack despite the broken consumer.
	assert.Equal(t, "state_update", healthyLink.lastSent(t)["type"])
	assert.Equal(t, "ack", producerLink.lastSent(t)["type"])
}

func TestRouter_CommandToConnectedProducer(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	producerSess, producerLink := newTestSession(router, registry)
	router.Handle(producerSess, []byte(`{"type":"register","role":"producer","id":"7"}`))

	senderSess, senderLink := newTestSession(router, registry)
	frame := []byte(`{"type":"command","target_id":"7","command":"toggle"}`)
	router.Handle(senderSess, frame)

	// The full original message reaches the producer.
	delivered := producerLink.lastSent(t)
	assert.Equal(t, "command", delivered["type"])
	assert.Equal(t, "toggle", delivered["command"])

	reply := senderLink.lastSent(t)
	assert.Equal(t, "ok", reply["type"])
	assert.Equal(t, "command_sent", reply["message"])
}

func TestRouter_CommandToMissingProducer(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, link := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"command","target_id":"7","command":"toggle"}`))

	reply := link.lastSent(t)
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, "esp_not_connected", reply["message"])
}

func TestRouter_CommandWithoutTargetID(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, link := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"command","command":"toggle"}`))

	reply := link.lastSent(t)
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, "missing target_id", reply["message"])
}

func TestRouter_CommandFromUnknownConnectionInfersConsumer(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, _ := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"command","target_id":"7","command":"toggle"}`))

	assert.Equal(t, RoleConsumer, sess.Role())
	consumers, _ := registry.Counts()
	assert.Equal(t, 1, consumers)
}

func TestRouter_UnknownTypeInfersConsumerAndAcks(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, link := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"telemetry_v2"}`))

	assert.Equal(t, RoleConsumer, sess.Role())
	reply := link.lastSent(t)
	assert.Equal(t, "ack", reply["type"])
	assert.Equal(t, true, reply["received"])
	assert.Equal(t, "unknown_type", reply["note"])
}

func TestRouter_MalformedFrameKeepsConnectionAndRole(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, link := newTestSession(router, registry)

	router.Handle(sess, []byte(`{not json`))

	assert.Equal(t, RoleUnknown, sess.Role())
	assert.False(t, link.isClosed())
	reply := link.lastSent(t)
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, "invalid_json", reply["message"])

	// The connection still works afterwards.
	router.Handle(sess, []byte(`{"type":"register","role":"consumer"}`))
	assert.Equal(t, RoleConsumer, sess.Role())
}

func TestRouter_RoleIsTerminal(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, _ := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"register","role":"consumer"}`))
	router.Handle(sess, []byte(`{"type":"register","role":"producer","id":"7"}`))

	assert.Equal(t, RoleConsumer, sess.Role())
	_, ok := registry.LookupProducer("7")
	assert.False(t, ok)
}

func TestRouter_AuthWithValidTokenRegistersProducer(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, link := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"auth","lampadaire_id":"12","token":"lampadaire_token_12"}`))

	assert.Equal(t, RoleProducer, sess.Role())
	_, ok := registry.LookupProducer("12")
	assert.True(t, ok)

	reply := link.lastSent(t)
	assert.Equal(t, "authenticated", reply["type"])
	assert.Equal(t, true, reply["success"])
	assert.Equal(t, "12", reply["lampadaire_id"])
}

func TestRouter_AuthWithInvalidTokenLeavesRoleUnknown(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, link := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"auth","lampadaire_id":"12","token":"lampadaire_token_13"}`))

	assert.Equal(t, RoleUnknown, sess.Role())
	_, ok := registry.LookupProducer("12")
	assert.False(t, ok)

	reply := link.lastSent(t)
	assert.Equal(t, "authenticated", reply["type"])
	assert.Equal(t, false, reply["success"])
}

func TestRouter_AuthWithMissingFields(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	sess, link := newTestSession(router, registry)

	router.Handle(sess, []byte(`{"type":"auth","lampadaire_id":"12"}`))

	reply := link.lastSent(t)
	assert.Equal(t, "authenticated", reply["type"])
	assert.Equal(t, false, reply["success"])
	assert.Equal(t, RoleUnknown, sess.Role())
}

func TestRouter_ProducerReRegistrationSupersedes(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	firstSess, firstLink := newTestSession(router, registry)
	router.Handle(firstSess, []byte(`{"type":"register","role":"producer","id":"7"}`))

	secondSess, secondLink := newTestSession(router, registry)
	router.Handle(secondSess, []byte(`{"type":"register","role":"producer","id":"7"}`))

	found, ok := registry.LookupProducer("7")
	require.True(t, ok)
	assert.Equal(t, secondLink.ID(), found.ID())
	assert.False(t, firstLink.isClosed())
}
