// Package api provides the HTTP API server for the ingestion core.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eld-core/ingestor/internal/authstub"
	"github.com/eld-core/ingestor/internal/dlq"
)

const defaultDLQListLimit = 50

// isAdminPath reports whether r targets the /admin/ surface, used to
// share handleGaps between its public and admin-mirror routes.
func isAdminPath(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/admin/")
}

// requireAdmin enforces the restricted-role check the admin DLQ
// surface requires. Writes the response and returns false if the
// caller should stop.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	actor, ok := authstub.ActorFromContext(r.Context())
	if !ok {
		writeDomainError(w, r, s.logger, http.StatusUnauthorized, codeAuthentication, "actor credential is required", nil)

		return false
	}

	if !actor.HasPermission(permissionAdmin) {
		writeDomainError(w, r, s.logger, http.StatusForbidden, codeAuthorization, "admin permission is required", nil)

		return false
	}

	return true
}

func (s *Server) handleDLQList(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	q := r.URL.Query()

	filter := dlq.ListFilter{
		Status:         dlq.Status(q.Get("status")),
		SourceDeviceID: q.Get("sourceDeviceId"),
		SourceEndpoint: q.Get("sourceEndpoint"),
		Limit:          defaultDLQListLimit,
	}

	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset >= 0 {
		filter.Offset = offset
	}

	entries, err := s.dlqSvc.List(r.Context(), filter)
	if err != nil {
		s.logError(r, "dlq list failed", err)
		writeDomainError(w, r, s.logger, http.StatusInternalServerError, codeDatabase, "failed to list DLQ entries", nil)

		return
	}

	out := make([]dlqEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = toDLQEntryResponse(e, false)
	}

	writeData(w, r, s.logger, http.StatusOK, out)
}

func (s *Server) handleDLQStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	stats, err := s.dlqSvc.Stats(r.Context())
	if err != nil {
		s.logError(r, "dlq stats failed", err)
		writeDomainError(w, r, s.logger, http.StatusInternalServerError, codeDatabase, "failed to compute DLQ stats", nil)

		return
	}

	writeData(w, r, s.logger, http.StatusOK, dlqStatsResponse{
		Pending:           stats.Pending,
		Retrying:          stats.Retrying,
		Resolved:          stats.Resolved,
		Discarded:         stats.Discarded,
		ThresholdExceeded: stats.ThresholdExceeded,
	})
}

func (s *Server) handleDLQAlerts(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	limit := defaultDLQListLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	alerts, err := s.dlqSvc.Alerts(r.Context(), limit)
	if err != nil {
		s.logError(r, "dlq alerts failed", err)
		writeDomainError(w, r, s.logger, http.StatusInternalServerError, codeDatabase, "failed to list DLQ alerts", nil)

		return
	}

	out := make([]alertResponse, len(alerts))
	for i, a := range alerts {
		out[i] = alertResponse{
			ID:           a.ID,
			PendingCount: a.PendingCount,
			Threshold:    a.Threshold,
			RaisedAt:     a.RaisedAt.Format(time.RFC3339),
		}
	}

	writeData(w, r, s.logger, http.StatusOK, out)
}

func (s *Server) handleDLQGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	id := r.PathValue("id")

	entry, err := s.dlqSvc.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, s.logger, http.StatusNotFound, codeNotFound, "DLQ entry not found", nil)

		return
	}

	writeData(w, r, s.logger, http.StatusOK, toDLQEntryResponse(entry, true))
}

func (s *Server) handleDLQRetry(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	actor, _ := authstub.ActorFromContext(r.Context())
	id := r.PathValue("id")

	result, err := s.dlqSvc.Retry(r.Context(), id, resolverIdentity(actor))
	if err != nil {
		writeData(w, r, s.logger, http.StatusOK, dlqRetryResponse{Success: false, Error: err.Error()})

		return
	}

	writeData(w, r, s.logger, http.StatusOK, dlqRetryResponse{
		Success:    true,
		EventID:    result.EventID,
		SequenceID: result.SequenceID,
		ChainHash:  result.ChainHash,
	})
}

func (s *Server) handleDLQDiscard(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	actor, _ := authstub.ActorFromContext(r.Context())
	id := r.PathValue("id")

	var body discardRequest

	if r.ContentLength > 0 {
		defer r.Body.Close()

		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeDomainError(w, r, s.logger, http.StatusBadRequest, codeValidation, "invalid JSON body", err.Error())

			return
		}
	}

	if err := s.dlqSvc.Discard(r.Context(), id, resolverIdentity(actor), body.Notes); err != nil {
		writeDomainError(w, r, s.logger, http.StatusInternalServerError, codeDatabase, "failed to discard DLQ entry", nil)

		return
	}

	writeData(w, r, s.logger, http.StatusOK, map[string]bool{"success": true})
}

func resolverIdentity(actor authstub.Actor) string {
	if actor.Name != "" {
		return actor.Name
	}

	return actor.ID
}

func toDLQEntryResponse(e *dlq.Entry, includePayload bool) dlqEntryResponse {
	resp := dlqEntryResponse{
		ID:               e.ID,
		SourceEndpoint:   e.SourceEndpoint,
		SourceDeviceID:   e.SourceDeviceID,
		BatchIndex:       e.BatchIndex,
		FailureReason:    e.FailureReason,
		RetryCount:       e.RetryCount,
		Status:           string(e.Status),
		FirstFailedAt:    e.FirstFailedAt.Format(time.RFC3339),
		LastFailedAt:     e.LastFailedAt.Format(time.RFC3339),
		ResolverIdentity: e.ResolverIdentity,
		Notes:            e.Notes,
	}

	if includePayload {
		resp.Payload = string(e.Payload)
	}

	return resp
}
