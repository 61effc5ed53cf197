package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/skiffhq/skiff/internal/shell/api"
	"github.com/skiffhq/skiff/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitComposeError    = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the Skiff operator API server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Connect to state store
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	handler := api.NewHandler(s, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		logger:     logger,
	}, nil
}

// Start runs the server until a shutdown signal arrives or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("store close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// serve
// =============================================================================

func runServe(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	server, err := NewServer(cfg, logger)
	if err != nil {
		var sErr *ServerError
		if errors.As(err, &sErr) {
			logger.Error("failed to create server", "error", sErr.Err, "operation", sErr.Op)
			return sErr.ExitCode
		}
		logger.Error("failed to create server", "error", err)
		return ExitConfigError
	}

	if err := server.Start(ctx); err != nil {
		var sErr *ServerError
		if errors.As(err, &sErr) {
			logger.Error("server error", "error", sErr.Err, "operation", sErr.Op)
			return sErr.ExitCode
		}
		logger.Error("server error", "error", err)
		return ExitHTTPServerError
	}

	return ExitSuccess
}

// =============================================================================
// Errors
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
