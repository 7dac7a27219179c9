// Package server runs the dashboard HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/brizzai/oauth-playground/internal/config"
	"github.com/brizzai/oauth-playground/internal/logger"
	"github.com/brizzai/oauth-playground/internal/web"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// shutdownTimeout is the maximum time to wait for server shutdown
	shutdownTimeout = 5 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// Server serves the dashboard handler on the configured address.
type Server struct {
	addr    string
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	done     chan error
}

// NewServer creates a dashboard server listening on cfg's address.
func NewServer(cfg *config.ServerConfig, handler *web.Handler) *Server {
	if cfg == nil {
		logger.Fatal("Server config cannot be nil")
	}
	return &Server{
		addr:    cfg.Addr(),
		handler: handler,
	}
}

// Addr returns the bound address once the server is listening, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) listen() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener, nil
	}
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = l
	return l, nil
}

// Serve blocks until ctx is cancelled or the server fails.
func (s *Server) Serve(ctx context.Context) error {
	l, err := s.listen()
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Channel for server errors
	errChan := make(chan error, 1)

	go func() {
		logger.Info("Serving dashboard", zap.String("address", "http://"+l.Addr().String()))

		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down dashboard", zap.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}

// Start binds the listener and serves in the background. Binding happens before Start
// returns so a port conflict fails the caller.
func (s *Server) Start(context.Context) error {
	if _, err := s.listen(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		done <- s.Serve(runCtx)
	}()
	return nil
}

// Stop shuts a started server down and waits for it, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func registerHooks(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Stop,
	})
}

// Module provides the dashboard server and ties it to the fx lifecycle
var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(registerHooks),
)
