// Package httpapi exposes the relay over HTTP: account and history endpoints,
// Prometheus metrics and the WebSocket endpoint clients stay connected on.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophrelay/internal/logging"
	"github.com/dmitrijs2005/gophrelay/internal/relay"
	"github.com/dmitrijs2005/gophrelay/internal/server/config"
	"github.com/dmitrijs2005/gophrelay/internal/server/models"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// UserDirectory is the account side of the user store.
type UserDirectory interface {
	relay.Directory
	Signup(ctx context.Context, username, email, password, publicKey string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Search(ctx context.Context, query string) ([]*models.User, error)
}

type HTTPServer struct {
	address      string
	users        UserDirectory
	messages     relay.Store
	registry     *relay.Registry
	router       *relay.Router
	gatherer     prometheus.Gatherer
	logger       logging.Logger
	jwtSecret    []byte
	requireToken bool
	writeTimeout time.Duration
	inboundRPS   float64
	inboundBurst int
	upgrader     websocket.Upgrader

	// conns tracks WebSocket connections, which outlive their handler
	// once hijacked and so are not covered by http.Server.Shutdown.
	conns sync.WaitGroup
}

func NewHTTPServer(cfg *config.Config, l logging.Logger, us UserDirectory, store relay.Store,
	registry *relay.Registry, router *relay.Router, gatherer prometheus.Gatherer) *HTTPServer {
	return &HTTPServer{
		address:      cfg.EndpointAddrHTTP,
		users:        us,
		messages:     store,
		registry:     registry,
		router:       router,
		gatherer:     gatherer,
		logger:       l.With("module", "http_server"),
		jwtSecret:    []byte(cfg.SecretKey),
		requireToken: cfg.RequireToken,
		writeTimeout: cfg.WriteTimeout,
		inboundRPS:   cfg.InboundRPS,
		inboundBurst: cfg.InboundBurst,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the routed handler without starting a listener.
func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/signup", s.Signup).Methods(http.MethodPost)
	r.HandleFunc("/login", s.Login).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.Logout).Methods(http.MethodPost)
	r.HandleFunc("/get_public_key/{username}", s.GetPublicKey).Methods(http.MethodGet)
	r.HandleFunc("/search_users", s.SearchUsers).Methods(http.MethodGet)
	r.Handle("/messages/{username}", s.accessTokenMiddleware("username", http.HandlerFunc(s.GetMessages))).Methods(http.MethodGet)
	r.Handle("/ws/{client_id}", s.accessTokenMiddleware("client_id", http.HandlerFunc(s.ServeWebSocket))).Methods(http.MethodGet)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

// Run serves until ctx is cancelled. Live WebSocket connections inherit ctx
// and are closed with it; Run returns only after their goroutines exit.
func (s *HTTPServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// Shutdown waits for handlers that have not hijacked yet, so every
	// conns.Add has happened by the time it returns.
	<-stopped
	s.conns.Wait()

	return nil
}
