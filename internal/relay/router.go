package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophrelay/internal/logging"
	"github.com/dmitrijs2005/gophrelay/internal/server/models"
)

// Store is the durable message store.
type Store interface {
	Append(ctx context.Context, env *models.Envelope) error
	UpdateStatus(ctx context.Context, sender, recipient, timestamp string, status models.Status) error
	Query(ctx context.Context, identity string) ([]*models.Envelope, error)
}

// Directory answers questions about registered users.
type Directory interface {
	Exists(ctx context.Context, identity string) (bool, error)
	PublicKey(ctx context.Context, identity string) (string, bool, error)
}

// Router handles frames arriving on one client connection.
type Router struct {
	registry *Registry
	store    Store
	chunker  *Chunker
	logger   logging.Logger
	metrics  *Metrics
}

func NewRouter(registry *Registry, store Store, chunker *Chunker, logger logging.Logger, metrics *Metrics) *Router {
	return &Router{
		registry: registry,
		store:    store,
		chunker:  chunker,
		logger:   logger.With("module", "router"),
		metrics:  metrics,
	}
}

// HandleFrame decodes data received from clientID on ep and handles it.
// A returned error always wraps ErrTransport and means ep should be closed;
// every other failure is reported to the client in an error frame.
func (r *Router) HandleFrame(ctx context.Context, clientID string, ep Endpoint, data []byte) error {
	in, err := DecodeInbound(data)
	if err != nil {
		var fe *FrameError
		if errors.As(err, &fe) {
			r.metrics.frame("invalid")
			return r.reply(ctx, ep, fe)
		}
		return err
	}
	return r.Handle(ctx, clientID, ep, in)
}

// Handle dispatches one decoded frame.
func (r *Router) Handle(ctx context.Context, clientID string, ep Endpoint, in Inbound) error {
	switch f := in.(type) {
	case EncryptedMessage:
		r.metrics.frame(string(KindEncryptedMessage))
		return r.handleMessage(ctx, ep, &f.Envelope)
	case DebugInfoRequest:
		r.metrics.frame(string(KindDebugInfoRequest))
		return r.handleDebugInfo(ctx, clientID, ep)
	case UnknownFrame:
		r.metrics.frame("unknown")
		r.logger.Debug(ctx, "unknown message type", "client_id", clientID, "type", f.Kind)
		return r.reply(ctx, ep, clientFrameError("Unknown message type: %s", f.Kind))
	default:
		return r.reply(ctx, ep, clientFrameError("Unknown message type: %T", in))
	}
}

func (r *Router) handleMessage(ctx context.Context, ep Endpoint, env *models.Envelope) error {
	if err := Validate(env); err != nil {
		r.logger.Debug(ctx, "rejected message", "sender", env.Sender, "error", err)
		return r.reply(ctx, ep, err)
	}

	env.Status = models.StatusSent
	if _, online := r.registry.Lookup(env.Recipient); online {
		env.Status = models.StatusDelivered
	}

	if err := r.store.Append(ctx, env); err != nil {
		r.logger.Error(ctx, "save message failed",
			"sender", env.Sender, "recipient", env.Recipient, "error", err)
		r.metrics.relay("persist_failed")
		return r.reply(ctx, ep, persistenceError(err))
	}

	// the recipient may have reconnected while the row was being written
	target, online := r.registry.Lookup(env.Recipient)
	if !online {
		r.logger.Info(ctx, "recipient offline, message stored",
			"sender", env.Sender, "recipient", env.Recipient)
		r.metrics.relay("queued")
		return nil
	}

	if err := r.chunker.Deliver(ctx, target, env); err != nil {
		r.logger.Warn(ctx, "relay failed",
			"recipient", env.Recipient, "conn_id", target.ID(), "error", err)
		r.registry.UnregisterEndpoint(env.Recipient, target)
		_ = target.Close()
		r.metrics.relay("send_failed")
		return nil
	}

	if err := r.store.UpdateStatus(ctx, env.Sender, env.Recipient, env.Timestamp, models.StatusDelivered); err != nil {
		r.logger.Error(ctx, "update message status failed",
			"sender", env.Sender, "recipient", env.Recipient, "timestamp", env.Timestamp, "error", err)
	}
	r.metrics.relay("delivered")
	return nil
}

func (r *Router) handleDebugInfo(ctx context.Context, clientID string, ep Endpoint) error {
	data, err := json.Marshal(debugInfoFrame{
		Type:              KindDebugInfo,
		ClientID:          clientID,
		ActiveConnections: r.registry.Identities(),
	})
	if err != nil {
		return fmt.Errorf("encode debug info: %w", err)
	}
	if err := ep.Send(ctx, data); err != nil {
		return transportError("send debug info", err)
	}
	return nil
}

func (r *Router) reply(ctx context.Context, ep Endpoint, err error) error {
	data, encErr := encodeError(err.Error())
	if encErr != nil {
		return fmt.Errorf("encode error frame: %w", encErr)
	}
	if sendErr := ep.Send(ctx, data); sendErr != nil {
		return transportError("send error frame", sendErr)
	}
	return nil
}
