package relay

import (
	"context"

	"github.com/dmitrijs2005/gophrelay/internal/logging"
)

// Broadcaster pushes the full set of connected identities to every
// connected client after registry changes.
type Broadcaster struct {
	registry *Registry
	logger   logging.Logger
	metrics  *Metrics
}

func NewBroadcaster(registry *Registry, logger logging.Logger, metrics *Metrics) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger.With("module", "broadcaster"),
		metrics:  metrics,
	}
}

// Run broadcasts once per registry change signal until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	b.logger.Info(ctx, "presence broadcaster started")
	defer b.logger.Info(ctx, "presence broadcaster stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.registry.Changes():
			b.Broadcast(ctx)
		}
	}
}

// Broadcast sends one connected_clients frame built from a single registry
// snapshot. Endpoints that fail the send are unregistered and closed; the
// resulting change is picked up by the next Run iteration.
func (b *Broadcaster) Broadcast(ctx context.Context) {
	targets := b.registry.snapshot()

	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.identity
	}

	data, err := encodePresence(ids)
	if err != nil {
		b.logger.Error(ctx, "encode presence", "error", err)
		return
	}

	for _, t := range targets {
		if err := t.endpoint.Send(ctx, data); err != nil {
			b.logger.Warn(ctx, "presence send failed",
				"client_id", t.identity, "conn_id", t.endpoint.ID(), "error", err)
			b.registry.UnregisterEndpoint(t.identity, t.endpoint)
			_ = t.endpoint.Close()
		}
	}
	b.metrics.presenceBroadcast()
	b.logger.Debug(ctx, "presence broadcast", "clients", ids)
}
