// Package server serves an Exchange over JSON-RPC 2.0, on HTTP and WebSocket, under the
// dex namespace.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/exchange"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for the RPC server.
type Config struct {
	Address        string
	AllowedOrigins []string
	// RatePerMinute limits requests per client IP. Zero disables the limit.
	RatePerMinute int
	// Gatherer is served at /metrics when set.
	Gatherer prometheus.Gatherer
	Logger   Logger
}

func (c *Config) validate() error {
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.RatePerMinute < 0 {
		return errors.New("config: RatePerMinute must not be negative")
	}
	return nil
}

// Server wraps the HTTP server and provides lifecycle management.
type Server struct {
	config     Config
	rpc        *rpc.Server
	handler    http.Handler
	httpServer *http.Server
	logger     Logger
}

// NewServer registers the dex namespace for ex and builds the HTTP handler.
func NewServer(cfg Config, ex *exchange.Exchange) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(RpcNamespace, NewDexAPI(ex, cfg.Logger)); err != nil {
		return nil, err
	}

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(accessLog(cfg.Logger))
	mux.Use(recoverer(cfg.Logger))
	if cfg.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(cfg.RatePerMinute, time.Minute))
	}

	if cfg.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"dexd"}`))
	})

	wsHandler := rpcServer.WebsocketHandler(cfg.AllowedOrigins)
	mux.With(noCache).Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebsocket(r) {
			wsHandler.ServeHTTP(w, r)
			return
		}
		rpcServer.ServeHTTP(w, r)
	}))

	handler := newCORSHandler(cfg.AllowedOrigins, mux)

	return &Server{
		config:  cfg,
		rpc:     rpcServer,
		handler: handler,
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: cfg.Logger,
	}, nil
}

// Handler returns the HTTP handler serving RPC, WebSocket, health and metrics.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// RPC returns the underlying RPC server, for in-process clients.
func (s *Server) RPC() *rpc.Server {
	return s.rpc
}

// ListenAndServe serves on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Starting JSON-RPC server", "address", s.config.Address, "namespace", RpcNamespace)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve serves on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("Starting JSON-RPC server", "address", l.Addr().String(), "namespace", RpcNamespace)
	err := s.httpServer.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, waits for in-flight HTTP requests and closes every
// RPC connection, subscriptions included.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down JSON-RPC server")
	err := s.httpServer.Shutdown(ctx)
	s.rpc.Stop()
	return err
}
