package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// maxFrameBytes bounds one inbound frame: a base64 attachment at the size
// limit plus the envelope around it.
const maxFrameBytes = 16 * 1024 * 1024

// ServeWebSocket upgrades the request and serves the connection until either
// side closes it or the server shuts down.
func (s *HTTPServer) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client_id"]

	s.conns.Add(1)
	defer s.conns.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", "client_id", clientID, "error", err)
		return
	}

	s.serveConn(r.Context(), clientID, conn)
}

func (s *HTTPServer) serveConn(ctx context.Context, clientID string, conn *websocket.Conn) {
	ep := newWSEndpoint(conn, s.writeTimeout)
	logger := s.logger.With("client_id", clientID, "conn_id", ep.ID())

	conn.SetReadLimit(maxFrameBytes)

	s.registry.Register(clientID, ep)
	logger.Info(ctx, "client connected")

	stop := context.AfterFunc(ctx, func() { _ = ep.Close() })
	defer func() {
		stop()
		s.registry.UnregisterEndpoint(clientID, ep)
		_ = ep.Close()
		logger.Info(ctx, "client disconnected")
	}()

	limiter := rate.NewLimiter(rate.Limit(s.inboundRPS), max(s.inboundBurst, 1))
	if s.inboundRPS <= 0 {
		limiter.SetLimit(rate.Inf)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Warn(ctx, "read failed", "error", err)
			}
			return
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		logger.Debug(ctx, "frame received", "bytes", len(data))

		if err := s.router.HandleFrame(ctx, clientID, ep, data); err != nil {
			logger.Warn(ctx, "closing connection", "error", err)
			return
		}
	}
}
