package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddConsumerIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	link := newStubLink()

	registry.AddConsumer(link)
	registry.AddConsumer(link)

	consumers, producers := registry.Counts()
	assert.Equal(t, 1, consumers)
	assert.Equal(t, 0, producers)
	assert.Len(t, registry.SnapshotConsumers(), 1)
}

func TestRegistry_AddProducerAndLookup(t *testing.T) {
	registry := NewRegistry()
	link := newStubLink()

	registry.AddProducer(link, "7")

	found, ok := registry.LookupProducer("7")
	require.True(t, ok)
	assert.Equal(t, link.ID(), found.ID())

	_, ok = registry.LookupProducer("8")
	assert.False(t, ok)
}

func TestRegistry_AddProducerSupersedesMapping(t *testing.T) {
	registry := NewRegistry()
	old := newStubLink()
	replacement := newStubLink()

	registry.AddProducer(old, "7")
	registry.AddProducer(replacement, "7")

	found, ok := registry.LookupProducer("7")
	require.True(t, ok)
	assert.Equal(t, replacement.ID(), found.ID())

	// Superseding replaces the mapping but never closes the old connection.
	assert.False(t, old.isClosed())

	_, producers := registry.Counts()
	assert.Equal(t, 1, producers)
}

func TestRegistry_RemoveSupersededLinkKeepsReplacement(t *testing.T) {
	registry := NewRegistry()
	old := newStubLink()
	replacement := newStubLink()

	registry.AddProducer(old, "7")
	registry.AddProducer(replacement, "7")

	// The superseded connection's cleanup must not tear down the new mapping.
	registry.Remove(old)

	found, ok := registry.LookupProducer("7")
	require.True(t, ok)
	assert.Equal(t, replacement.ID(), found.ID())
}

func TestRegistry_ProducerReRegisteringNewIDDropsOldMapping(t *testing.T) {
	registry := NewRegistry()
	link := newStubLink()

	registry.AddProducer(link, "7")
	registry.AddProducer(link, "9")

	_, ok := registry.LookupProducer("7")
	assert.False(t, ok)

	found, ok := registry.LookupProducer("9")
	require.True(t, ok)
	assert.Equal(t, link.ID(), found.ID())
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	consumer := newStubLink()
	producer := newStubLink()

	registry.AddConsumer(consumer)
	registry.AddProducer(producer, "7")

	registry.Remove(consumer)
	registry.Remove(consumer)
	registry.Remove(producer)
	registry.Remove(producer)
	registry.Remove(newStubLink())

	consumers, producers := registry.Counts()
	assert.Equal(t, 0, consumers)
	assert.Equal(t, 0, producers)
}

func TestRegistry_SnapshotAllCoversBothViews(t *testing.T) {
	registry := NewRegistry()
	registry.AddConsumer(newStubLink())
	registry.AddConsumer(newStubLink())
	registry.AddProducer(newStubLink(), "7")

	assert.Len(t, registry.SnapshotAll(), 3)
}

func TestRegistry_SnapshotConsumersIsACopy(t *testing.T) {
	registry := NewRegistry()
	registry.AddConsumer(newStubLink())

	snapshot := registry.SnapshotConsumers()
	require.Len(t, snapshot, 1)

	// Mutating the registry after the snapshot leaves the snapshot intact.
	registry.Remove(snapshot[0])
	assert.Len(t, snapshot, 1)
	assert.Len(t, registry.SnapshotConsumers(), 0)
}

func TestRegistry_DrainEmptiesAndReturnsAll(t *testing.T) {
	registry := NewRegistry()
	registry.AddConsumer(newStubLink())
	registry.AddProducer(newStubLink(), "7")

	drained := registry.Drain()
	assert.Len(t, drained, 2)

	consumers, producers := registry.Counts()
	assert.Equal(t, 0, consumers)
	assert.Equal(t, 0, producers)
}
