// Package api provides HTTP handlers and the main API server logic for
// CampaignPipe.
//
// It exposes the campaign trigger endpoint plus checkpoint inspection and
// health endpoints. The API integrates with the admission gate, the campaign
// runner, and the checkpoint store.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/CampaignPipe/internal/flow"
	"github.com/BTreeMap/CampaignPipe/internal/gate"
	"github.com/BTreeMap/CampaignPipe/internal/store"
)

// Default server configuration
const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":8000"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server wires the HTTP boundary to the admission gate, runner, and store.
type Server struct {
	addr   string
	gate   *gate.Gate
	runner *flow.Runner
	st     store.Store
}

// NewServer creates an API server, applying any provided options.
func NewServer(g *gate.Gate, runner *flow.Runner, st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{addr: cfg.Addr, gate: g, runner: runner, st: st}
}

// Handler returns the route mux for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/trigger-campaign", s.triggerHandler)
	mux.HandleFunc("/checkpoints", s.checkpointsHandler)
	mux.HandleFunc("/checkpoints/", s.checkpointHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM, then shuts
// down gracefully and waits for in-flight campaign runs.
func (s *Server) Run() error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("CampaignPipe API running", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
		return err
	}

	slog.Info("Waiting for in-flight campaign runs")
	s.runner.Wait()
	return nil
}
