package relay

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/serveur-am2025/localisation-server/internal/metrics"
)

// Registry is the authoritative set of live connections, partitioned into
// the consumer set and the producer-id mapping. One mutex guards both views;
// every accessor either mutates under the lock or returns a snapshot, so no
// caller ever performs network I/O while holding it.
type Registry struct {
	mu          sync.Mutex
	consumers   map[uuid.UUID]Link
	producers   map[string]Link
	producerIDs map[uuid.UUID]string
}

func NewRegistry() *Registry {
	return &Registry{
		consumers:   make(map[uuid.UUID]Link),
		producers:   make(map[string]Link),
		producerIDs: make(map[uuid.UUID]string),
	}
}

// AddConsumer inserts the link into the consumer set. Idempotent.
func (r *Registry) AddConsumer(l Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumers[l.ID()] = l
	r.updateGauges()
}

// AddProducer maps id to the link. An existing mapping for the same id is
// silently superseded: the old connection stays open and is reclaimed by its
// own read loop or the liveness sweep.
func (r *Registry) AddProducer(l Link, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.producers[id]; ok && old.ID() != l.ID() {
		metrics.RelaySupersededProducers.Inc()
		slog.Info("Producer mapping superseded",
			"lampadaire_id", id,
			"old_conn", old.ID().String(),
			"new_conn", l.ID().String(),
		)
		delete(r.producerIDs, old.ID())
	}

	// A device re-registering under a new id drops its previous mapping.
	if prev, ok := r.producerIDs[l.ID()]; ok && prev != id {
		if cur, ok := r.producers[prev]; ok && cur.ID() == l.ID() {
			delete(r.producers, prev)
		}
	}

	r.producers[id] = l
	r.producerIDs[l.ID()] = id
	r.updateGauges()
}

// Remove deletes the link from whichever view holds it. Identity-checked:
// removing a superseded producer connection leaves the replacement mapping
// intact. No-op when the link is tracked nowhere.
func (r *Registry) Remove(l Link) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.consumers, l.ID())

	if id, ok := r.producerIDs[l.ID()]; ok {
		delete(r.producerIDs, l.ID())
		if cur, ok := r.producers[id]; ok && cur.ID() == l.ID() {
			delete(r.producers, id)
		}
	}
	r.updateGauges()
}

// SnapshotConsumers returns a copy of the consumer set for fan-out. Sends
// happen on the copy, outside the lock.
func (r *Registry) SnapshotConsumers() []Link {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]Link, 0, len(r.consumers))
	for _, l := range r.consumers {
		snapshot = append(snapshot, l)
	}
	return snapshot
}

// LookupProducer returns the live connection mapped to id.
func (r *Registry) LookupProducer(id string) (Link, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.producers[id]
	return l, ok
}

// SnapshotAll returns every tracked connection, for the liveness sweep.
func (r *Registry) SnapshotAll() []Link {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]Link, 0, len(r.consumers)+len(r.producers))
	for _, l := range r.consumers {
		snapshot = append(snapshot, l)
	}
	for _, l := range r.producers {
		snapshot = append(snapshot, l)
	}
	return snapshot
}

// Counts reports the current size of each view.
func (r *Registry) Counts() (consumers, producers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.consumers), len(r.producers)
}

// Drain empties both views and returns every connection that was tracked,
// so shutdown can close them outside the lock.
func (r *Registry) Drain() []Link {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := make([]Link, 0, len(r.consumers)+len(r.producers))
	for _, l := range r.consumers {
		drained = append(drained, l)
	}
	for _, l := range r.producers {
		drained = append(drained, l)
	}
	r.consumers = make(map[uuid.UUID]Link)
	r.producers = make(map[string]Link)
	r.producerIDs = make(map[uuid.UUID]string)
	r.updateGauges()
	return drained
}

// updateGauges is called with the lock held.
func (r *Registry) updateGauges() {
	metrics.RelayConnectedPeers.WithLabelValues("consumer").Set(float64(len(r.consumers)))
	metrics.RelayConnectedPeers.WithLabelValues("producer").Set(float64(len(r.producers)))
}
