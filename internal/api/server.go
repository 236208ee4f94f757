// Package api provides the HTTP API server for the ingestion core.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eld-core/ingestor/internal/api/middleware"
	"github.com/eld-core/ingestor/internal/authstub"
	"github.com/eld-core/ingestor/internal/chain"
	"github.com/eld-core/ingestor/internal/dlq"
	"github.com/eld-core/ingestor/internal/event"
	"github.com/eld-core/ingestor/internal/pipeline"
	"github.com/eld-core/ingestor/internal/sequencer"
)

// permissionAdmin gates the /admin/dlq* and gap-mirror surfaces. An
// actor without it gets AuthorizationError, not a 404 — the surface's
// existence isn't a secret, only access to it is.
const permissionAdmin = "admin"

// EventReader is the read-path dependency behind GET
// /events/{device}/{logDate}: full-column, chronological listing for
// one scope. Implemented by storage.EventStore.
type EventReader interface {
	ListEvents(ctx context.Context, scope event.Scope) ([]*event.Event, error)
}

// Server represents the HTTP API server for ELD event ingestion.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	config          *ServerConfig
	startTime       time.Time
	credentialStore authstub.Store
	rateLimiter     middleware.RateLimiter
	pipeline        *pipeline.Pipeline
	dlqSvc          *dlq.Service
	sequencer       *sequencer.Allocator
	verifier        *chain.Verifier
	events          EventReader
}

// NewServer creates a new HTTP server instance with structured logging and middleware stack.
//
// Dependencies are injected explicitly rather than being part of ServerConfig,
// separating configuration (what) from collaborators (how).
//
// Parameters:
//   - cfg: pure server configuration (ports, timeouts, CORS settings)
//   - credentialStore: actor credential verification (nil disables authentication)
//   - rateLimiter: rate limiter implementation (nil disables rate limiting)
//   - pipe: the ingestion pipeline (REQUIRED - panics if nil)
//   - dlqSvc: the dead-letter queue admin surface (REQUIRED - panics if nil)
//   - seq: sequence allocator, used for gap detection (REQUIRED - panics if nil)
//   - verifier: chain verifier (REQUIRED - panics if nil)
//   - events: scope read-path (REQUIRED - panics if nil)
func NewServer(
	cfg *ServerConfig,
	credentialStore authstub.Store,
	rateLimiter middleware.RateLimiter,
	pipe *pipeline.Pipeline,
	dlqSvc *dlq.Service,
	seq *sequencer.Allocator,
	verifier *chain.Verifier,
	events EventReader,
) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if pipe == nil || dlqSvc == nil || seq == nil || verifier == nil || events == nil {
		logger.Error("core ingestion collaborators are required - cannot start server")
		panic("api: pipeline, dlq service, sequencer, verifier, and event reader cannot be nil")
	}

	server := &Server{
		logger:          logger,
		config:          cfg,
		credentialStore: credentialStore,
		rateLimiter:     rateLimiter,
		pipeline:        pipe,
		dlqSvc:          dlqSvc,
		sequencer:       seq,
		verifier:        verifier,
		events:          events,
	}

	mux := http.NewServeMux()
	server.setupRoutes(mux)

	if credentialStore != nil {
		logger.Info("actor credential authentication enabled")
	} else {
		logger.Warn("credential store not configured - authentication disabled")
	}

	if rateLimiter != nil {
		logger.Info("rate limiting middleware enabled")
	} else {
		logger.Warn("rate limiter not configured - rate limiting disabled")
	}

	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting ingestion API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("received shutdown signal", slog.String("signal", sig.String()))

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("initiating server shutdown", slog.Duration("shutdown_timeout", s.config.ShutdownTimeout))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown failed", slog.String("error", err.Error()))

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.closeDependency("credential store", s.credentialStore)
	s.closeDependency("rate limiter", s.rateLimiter)

	s.logger.Info("server shutdown completed successfully")

	return nil
}

// closeDependency attempts to close a server dependency that implements io.Closer.
// Logs the operation and its result. Errors are logged but don't stop shutdown (best-effort).
func (s *Server) closeDependency(name string, dep interface{}) {
	if dep == nil {
		return
	}

	closer, ok := dep.(io.Closer)
	if !ok {
		return
	}

	s.logger.Info("closing " + name)

	if err := closer.Close(); err != nil {
		s.logger.Error("failed to close "+name, slog.String("error", err.Error()))

		return
	}

	s.logger.Info(name + " closed successfully")
}
