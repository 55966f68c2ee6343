// Package relay is the message relay engine: it tracks which identities are
// connected, pushes presence to them, and routes encrypted envelopes between
// them with store-and-forward for recipients that are offline.
package relay

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/gophrelay/internal/logging"
)

// Endpoint is one live connection. Send must be safe for concurrent use and
// must fail once Close has been called.
type Endpoint interface {
	ID() string
	Send(ctx context.Context, data []byte) error
	Close() error
}

type entry struct {
	identity string
	endpoint Endpoint
}

// Registry maps identities to their live endpoint. Each mutation signals
// Changes; signals coalesce.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]Endpoint
	changes chan struct{}
	logger  logging.Logger
	metrics *Metrics
}

func NewRegistry(logger logging.Logger, metrics *Metrics) *Registry {
	return &Registry{
		conns:   make(map[string]Endpoint),
		changes: make(chan struct{}, 1),
		logger:  logger.With("module", "registry"),
		metrics: metrics,
	}
}

// Register binds identity to ep. A previous endpoint for the same identity is
// closed so that its later sends fail.
func (r *Registry) Register(identity string, ep Endpoint) {
	r.mu.Lock()
	prev, replaced := r.conns[identity]
	r.conns[identity] = ep
	n := len(r.conns)
	r.mu.Unlock()

	r.metrics.setConnections(n)
	r.notify()

	if replaced && prev.ID() != ep.ID() {
		r.logger.Info(context.Background(), "connection superseded",
			"client_id", identity, "old_conn_id", prev.ID(), "conn_id", ep.ID())
		_ = prev.Close()
	}
}

// Unregister drops identity if present.
func (r *Registry) Unregister(identity string) {
	r.mu.Lock()
	_, ok := r.conns[identity]
	delete(r.conns, identity)
	n := len(r.conns)
	r.mu.Unlock()

	if ok {
		r.metrics.setConnections(n)
	}
	r.notify()
}

// UnregisterEndpoint drops identity only while it is still bound to ep and
// reports whether it did.
func (r *Registry) UnregisterEndpoint(identity string, ep Endpoint) bool {
	r.mu.Lock()
	cur, ok := r.conns[identity]
	removed := ok && cur.ID() == ep.ID()
	if removed {
		delete(r.conns, identity)
	}
	n := len(r.conns)
	r.mu.Unlock()

	if removed {
		r.metrics.setConnections(n)
		r.notify()
	}
	return removed
}

func (r *Registry) Lookup(identity string) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.conns[identity]
	return ep, ok
}

// Identities returns the connected identities in sorted order.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Changes fires at least once after any sequence of mutations.
func (r *Registry) Changes() <-chan struct{} {
	return r.changes
}

func (r *Registry) snapshot() []entry {
	r.mu.RLock()
	out := make([]entry, 0, len(r.conns))
	for id, ep := range r.conns {
		out = append(out, entry{identity: id, endpoint: ep})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].identity < out[j].identity })
	return out
}

func (r *Registry) notify() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}
