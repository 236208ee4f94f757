// Package api provides the HTTP API server for the ingestion core.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/eld-core/ingestor/internal/api/middleware"
)

const healthCheckTimeout = 2 * time.Second

// HealthStatus represents the health check response structure.
type HealthStatus struct {
	Status      string `json:"status"`
	ServiceName string `json:"serviceName"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime,omitempty"`
}

// setupRoutes wires the HTTP surface. Health-check routes are
// registered directly on mux so they are reachable without an actor
// credential or rate limiting; every other route is registered on a
// nested mux wrapped with auth and rate-limit middleware, then mounted
// at "/". Go's ServeMux picks the more specific pattern ("GET /ping")
// over the catch-all "/", so this needs no separate public-endpoint
// bypass registry.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /health", s.handleHealth)

	protected := http.NewServeMux()
	s.registerIngestionRoutes(protected)
	s.registerAdminRoutes(protected)
	protected.HandleFunc("/", s.handleNotFound)

	mux.Handle("/", middleware.Apply(protected,
		middleware.WithAuthPlugin(s.credentialStore, s.logger),
		middleware.WithRateLimit(s.rateLimiter, s.logger),
	))
}

func (s *Server) registerIngestionRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /events", s.handleIngestEvent)
	mux.HandleFunc("POST /events/batch", s.handleIngestBatch)
	mux.HandleFunc("GET /events/{device}/{logDate}", s.handleListEvents)
	mux.HandleFunc("GET /events/{device}/{logDate}/gaps", s.handleGaps)
	mux.HandleFunc("GET /events/{device}/{logDate}/verify", s.handleVerify)
}

func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/dlq", s.handleDLQList)
	mux.HandleFunc("GET /admin/dlq/stats", s.handleDLQStats)
	mux.HandleFunc("GET /admin/dlq/alerts", s.handleDLQAlerts)
	mux.HandleFunc("GET /admin/dlq/{id}", s.handleDLQGet)
	mux.HandleFunc("POST /admin/dlq/{id}/retry", s.handleDLQRetry)
	mux.HandleFunc("POST /admin/dlq/{id}/discard", s.handleDLQDiscard)
	mux.HandleFunc("GET /admin/scopes/{device}/{logDate}/gaps", s.handleGaps)
}

// handlePing responds to ping requests for basic server validation.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		s.logger.Error("failed to write ping response",
			slog.String("correlation_id", correlationID), slog.String("error", err.Error()))
	}
}

// handleReady responds to Kubernetes readiness probes. With no
// credential store configured the service runs in degraded (no-auth)
// mode and is still considered ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	_, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("ready")); err != nil {
		s.logger.Error("failed to write ready response",
			slog.String("correlation_id", correlationID), slog.String("error", err.Error()))
	}
}

// handleHealth returns detailed health status information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	var uptime string
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	health := HealthStatus{
		Status:      "healthy",
		ServiceName: "ingestor",
		Version:     "v1.0.0",
		Uptime:      uptime,
	}

	data, err := json.Marshal(health)
	if err != nil {
		s.logger.Error("failed to encode health response", slog.String("correlation_id", correlationID), slog.String("error", err.Error()))
		WriteErrorResponse(w, r, s.logger, InternalServerError("failed to encode health response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("failed to write health response", slog.String("correlation_id", correlationID), slog.String("error", err.Error()))
	}
}

// handleNotFound returns RFC 7807 compliant 404 responses for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("the requested resource was not found"))
}
