// Package prometheus serves the process metrics over HTTP.
package prometheus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 5 * time.Second

// Opts holds prometheus opts.
type Opts struct {
	Enable  bool   `long:"metrics" env:"METRICS" description:"Serve Prometheus metrics while running"`
	Address string `long:"metrics-address" env:"METRICS_ADDRESS" description:"Address to serve Prometheus metrics on" default:"localhost:13434"`
}

func (o *Opts) Enabled() bool {
	return o != nil && o.Enable
}

type Server struct {
	opts     *Opts
	log      *slog.Logger
	server   *http.Server
	listener net.Listener
}

func NewServer(opts *Opts) *Server {
	return &Server{
		opts: opts,
		log:  slog.Default(),
	}
}

func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.log = logger
	return s
}

// Start listens and serves /metrics in the background. It does nothing when metrics are disabled.
func (s *Server) Start(ctx context.Context) error {
	if !s.opts.Enabled() {
		return nil
	}
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Address, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.log.InfoContext(ctx, "serving Prometheus metrics", "address", listener.Addr().String(), "endpoint", "/metrics")
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("prometheus server shutdown unexpectedly", "error", err)
		}
	}()
	return nil
}

// Addr returns the address the server listens on, or "" when it is not serving.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.log.Info("stopping Prometheus server")
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Error("Prometheus server forced to shutdown", "error", err)
		return err
	}
	s.log.Info("Prometheus server stopped gracefully")
	return nil
}
