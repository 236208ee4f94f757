// Package api provides the HTTP API server for the ingestion core.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/eld-core/ingestor/internal/api/middleware"
)

// ProblemDetail represents an RFC 7807 Problem Details structure, used
// for infrastructure-level failures (routing, panics) that occur
// outside the domain envelope. See https://tools.ietf.org/html/rfc7807.
type ProblemDetail struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail,omitempty"`
	Instance      string `json:"instance,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// NewProblemDetail creates a new RFC 7807 Problem Detail.
func NewProblemDetail(status int, title, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   fmt.Sprintf("https://eld-core.dev/problems/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// WithInstance adds an instance URI to the problem detail.
func (p *ProblemDetail) WithInstance(instance string) *ProblemDetail {
	p.Instance = instance

	return p
}

// WithCorrelationID adds a correlation ID to the problem detail.
func (p *ProblemDetail) WithCorrelationID(correlationID string) *ProblemDetail {
	p.CorrelationID = correlationID

	return p
}

// WriteErrorResponse writes an RFC 7807 compliant error response.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, problem *ProblemDetail) {
	correlationID := middleware.GetCorrelationID(r.Context())

	if problem.CorrelationID == "" {
		problem.CorrelationID = correlationID
	}

	if problem.Instance == "" {
		problem.Instance = r.URL.Path
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)

	if err := json.NewEncoder(w).Encode(problem); err != nil {
		logger.Error("Failed to encode error response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
			slog.Any("encode_error", err),
			slog.Int("status", problem.Status),
		)

		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Common error constructors for frequently used infrastructure errors.

// InternalServerError creates a 500 Internal Server Error problem.
func InternalServerError(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusInternalServerError, "Internal Server Error", detail)
}

// BadRequest creates a 400 Bad Request problem.
func BadRequest(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusBadRequest, "Bad Request", detail)
}

// NotFound creates a 404 Not Found problem.
func NotFound(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusNotFound, "Not Found", detail)
}

// MethodNotAllowed creates a 405 Method Not Allowed problem.
func MethodNotAllowed(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusMethodNotAllowed, "Method Not Allowed", detail)
}

// UnsupportedMediaType creates a 415 Unsupported Media Type problem,
// used when a request's Content-Type or Content-Encoding isn't one
// the endpoint accepts.
func UnsupportedMediaType(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusUnsupportedMediaType, "Unsupported Media Type", detail)
}

// PayloadTooLarge creates a 413 Payload Too Large problem, used when a
// request body exceeds ServerConfig.MaxRequestSize.
func PayloadTooLarge(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusRequestEntityTooLarge, "Payload Too Large", detail)
}

// writeEnvelope writes the canonical {success, data|error} response
// body that every domain endpoint (as opposed to infrastructure-level
// failures like panics or unmatched routes, which stay RFC 7807) uses.
func writeEnvelope(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Correlation-ID", middleware.GetCorrelationID(r.Context()))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(env); err != nil {
		logger.Error("Failed to encode response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("encode_error", err),
		)
	}
}

// writeData writes a successful {success: true, data} envelope.
func writeData(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, data interface{}) {
	writeEnvelope(w, r, logger, status, dataEnvelope(data))
}

// writeDomainError writes a {success: false, error} envelope for a
// domain-level failure, mapping its error kind to a stable HTTP
// status and error code.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, code, message string, details interface{}) {
	writeEnvelope(w, r, logger, status, errEnvelope(code, message, details))
}
