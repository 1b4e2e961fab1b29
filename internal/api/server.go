package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/prospect-discovery/internal/config"
	"github.com/jonesrussell/prospect-discovery/internal/logger"
)

// HTTP server timeouts. The write timeout is generous because SSE
// streams hold their response open for the life of a discovery.
const (
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 10 * time.Minute
	defaultIdleTimeout  = 60 * time.Second
)

// Server is the HTTP server with lifecycle management.
type Server struct {
	server          *http.Server
	logger          logger.Logger
	shutdownTimeout time.Duration
}

// NewServer creates the HTTP server around a configured router.
func NewServer(cfg *config.Config, router *gin.Engine, log logger.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Service.Port),
			Handler:      router,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		},
		logger:          log,
		shutdownTimeout: cfg.Service.ShutdownTimeout,
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", logger.String("address", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

// RunWithGracefulShutdown starts the server and shuts it down on
// SIGINT/SIGTERM or context cancellation. onShutdown runs before the
// listener closes so in-flight background work can be stopped first.
func (s *Server) RunWithGracefulShutdown(ctx context.Context, onShutdown func()) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.logger.Info("Shutdown signal received", logger.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Context cancelled, shutting down")
	}

	if onShutdown != nil {
		onShutdown()
	}

	// Fresh context: the original may already be cancelled.
	return s.Shutdown(context.Background())
}
