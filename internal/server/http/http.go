package http

import (
	"io"
	"log/slog"

	"github.com/indigo-web/h1/config"
	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/transport"
	"github.com/prometheus/client_golang/prometheus"
)

// Handler is called as soon as the request headers are received, before the body. The body
// is consumed through the request's listeners. The response is ended implicitly after the
// request was completely received, unless it was ended before.
//
// A paused request blocks the connection until resumed. Resuming from another goroutine is
// allowed once the request's socket reports it's waiting, see Waiter.
type Handler func(req *http.IncomingMessage, resp *http.ServerResponse)

// UpgradeHandler takes over a connection switched to another protocol. The bytes following
// the request are returned by the first client.Read. The connection is closed as soon as the
// handler returns.
type UpgradeHandler func(req *http.IncomingMessage, client transport.Client)

// Waiter is implemented by the sockets of the requests the server passes to the handler.
type Waiter interface {
	Waiting() bool
}

type Server struct {
	cfg       *config.Config
	handler   Handler
	onUpgrade UpgradeHandler
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(s *Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithUpgradeHandler sets the handler for upgraded connections. Without one, upgrading
// connections are closed.
func WithUpgradeHandler(handler UpgradeHandler) Option {
	return func(s *Server) {
		s.onUpgrade = handler
	}
}

func NewServer(cfg *config.Config, handler Handler, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		handler: handler,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if s.metrics == nil {
		s.metrics = NewMetrics("", prometheus.NewRegistry())
	}

	return s
}

// Serve serves the client until it either disconnects or must be disconnected.
func (s *Server) Serve(client transport.Client) {
	s.metrics.ActiveConnections.Inc()
	defer s.metrics.ActiveConnections.Dec()

	newConn(s, client).serve()
}
