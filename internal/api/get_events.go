// Package api provides the HTTP API server for the ingestion core.
package api

import (
	"log/slog"
	"net/http"

	"github.com/eld-core/ingestor/internal/api/middleware"
	"github.com/eld-core/ingestor/internal/event"
)

// handleListEvents handles GET /events/{device}/{logDate}: the full,
// chronological listing of active events for one scope.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromPath(r)

	events, err := s.events.ListEvents(r.Context(), scope)
	if err != nil {
		s.logError(r, "list events failed", err)
		writeDomainError(w, r, s.logger, http.StatusInternalServerError, codeDatabase, "failed to list events", nil)

		return
	}

	out := make([]eventResponse, len(events))
	for i, e := range events {
		out[i] = toEventResponse(e)
	}

	writeData(w, r, s.logger, http.StatusOK, out)
}

// handleGaps handles both GET /events/{device}/{logDate}/gaps and its
// admin mirror GET /admin/scopes/{device}/{logDate}/gaps.
func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	if isAdminPath(r) && !s.requireAdmin(w, r) {
		return
	}

	scope := scopeFromPath(r)

	gaps, err := s.sequencer.DetectGaps(r.Context(), scope)
	if err != nil {
		s.logError(r, "detect gaps failed", err)
		writeDomainError(w, r, s.logger, http.StatusInternalServerError, codeDatabase, "failed to detect gaps", nil)

		return
	}

	entries := make([]gapEntry, len(gaps))
	for i, g := range gaps {
		entries[i] = gapEntry{After: g.After, Before: g.Before, Missing: g.Missing}
	}

	writeData(w, r, s.logger, http.StatusOK, gapsResponse{
		Device:    scope.Device,
		LogPeriod: scope.LogPeriod,
		Gaps:      entries,
	})
}

// handleVerify handles GET /events/{device}/{logDate}/verify: walks the
// scope's stored chain and reports the first broken link, if any.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromPath(r)

	report, err := s.verifier.Verify(r.Context(), scope)
	if err != nil {
		s.logError(r, "chain verify failed", err)
		writeDomainError(w, r, s.logger, http.StatusInternalServerError, codeDatabase, "failed to verify chain", nil)

		return
	}

	resp := verifyResponse{
		Device:    scope.Device,
		LogPeriod: scope.LogPeriod,
		Events:    report.Events,
		Valid:     report.Valid,
		TailHash:  report.TailHash,
	}

	if report.Break != nil {
		resp.Break = &breakEntry{
			EventID:  report.Break.EventID,
			Sequence: report.Break.Sequence,
			Reason:   report.Break.Reason,
		}

		s.logger.Error("chain integrity break detected",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("device", scope.Device),
			slog.String("log_period", scope.LogPeriod),
			slog.String("event_id", resp.Break.EventID),
			slog.String("reason", resp.Break.Reason),
		)
	}

	writeData(w, r, s.logger, http.StatusOK, resp)
}

func scopeFromPath(r *http.Request) event.Scope {
	return event.Scope{Device: r.PathValue("device"), LogPeriod: r.PathValue("logDate")}
}

func toEventResponse(e *event.Event) eventResponse {
	return eventResponse{
		EventID:                 e.ID,
		Carrier:                 e.Carrier,
		Driver:                  e.Driver,
		Vehicle:                 e.Vehicle,
		Device:                  e.Device,
		LogPeriod:               e.LogPeriod,
		SequenceID:              e.SequenceID,
		EventType:               int(e.EventType),
		EventSubType:            int(e.EventSubType),
		RecordStatus:            int(e.RecordStatus),
		RecordOrigin:            int(e.RecordOrigin),
		Timestamp:               e.Timestamp,
		AccumulatedVehicleMiles: e.AccumulatedVehicleMiles,
		ElapsedEngineHours:      e.ElapsedEngineHours,
		Latitude:                e.Latitude,
		Longitude:               e.Longitude,
		LocationDescription:     e.LocationDescription,
		ContentHash:             e.ContentHash,
		ChainHash:               e.ChainHash,
		PreviousChainHash:       e.PreviousChainHash,
		Version:                 e.Version,
	}
}

func (s *Server) logError(r *http.Request, msg string, err error) {
	s.logger.Error(msg,
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("error", err.Error()),
	)
}
