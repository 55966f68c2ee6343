package httpapi

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var errEndpointClosed = errors.New("endpoint closed")

// wsEndpoint adapts a WebSocket connection to relay.Endpoint. Writes are
// serialized; reads belong to the connection's own goroutine.
type wsEndpoint struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newWSEndpoint(conn *websocket.Conn, writeTimeout time.Duration) *wsEndpoint {
	return &wsEndpoint{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (e *wsEndpoint) ID() string { return e.id }

func (e *wsEndpoint) Send(ctx context.Context, data []byte) error {
	if e.closed.Load() {
		return errEndpointClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var deadline time.Time
	if e.writeTimeout > 0 {
		deadline = time.Now().Add(e.writeTimeout)
	}
	if d, has := ctx.Deadline(); has && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := e.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return e.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and tears down the socket. It does not wait for
// an in-flight Send, which fails once the socket is gone.
func (e *wsEndpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		_ = e.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		e.closeErr = e.conn.Close()
	})
	return e.closeErr
}
