// Package server is the HTTP ingress: the telephony webhook endpoint, the
// outbound call API, health, and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/callflow/internal/observability"
	"github.com/haasonsaas/callflow/internal/orchestrator"
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the host:port to bind.
	Addr string

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration
}

// Server hosts the webhook and API endpoints.
type Server struct {
	cfg    Config
	orch   *orchestrator.Orchestrator
	logger *observability.Logger

	httpServer *http.Server
}

// New creates the HTTP server around an orchestrator.
func New(cfg Config, orch *orchestrator.Orchestrator, logger *observability.Logger) (*Server, error) {
	if orch == nil {
		return nil, errors.New("server: orchestrator is required")
	}
	if logger == nil {
		logger = observability.NewTestLogger()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{cfg: cfg, orch: orch, logger: logger}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/webhooks/calls", s.handleWebhook)
	mux.HandleFunc("POST /api/calls", s.handlePlaceCall)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info(shutdownCtx, "shutting down http server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
