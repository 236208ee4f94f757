// Package api provides the HTTP API server for the ingestion core.
package api

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eld-core/ingestor/internal/api/middleware"
	"github.com/eld-core/ingestor/internal/authstub"
	"github.com/eld-core/ingestor/internal/event"
	"github.com/eld-core/ingestor/internal/pipeline"
	"github.com/eld-core/ingestor/internal/validator"
)

// EventDecoder implements pipeline.Decoder: it turns a raw JSON event
// payload back into a domain event.Event, the same conversion
// handleIngestEvent runs on the request body. Exposed so the
// composition root can wire it into pipeline.Deps without internal/api
// and internal/pipeline depending on each other beyond the interface.
type EventDecoder struct{}

// NewEventDecoder constructs an EventDecoder.
func NewEventDecoder() EventDecoder {
	return EventDecoder{}
}

// DecodeEvent implements pipeline.Decoder.
func (EventDecoder) DecodeEvent(raw []byte) (*event.Event, error) {
	var p eventPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}

	return toDomainEvent(p, ""), nil
}

var _ pipeline.Decoder = EventDecoder{}

// toDomainEvent converts the wire payload to the domain model.
// EventDate/EventTime/TZOffset are derived from EventTimestamp's own
// offset rather than accepted as separate wire fields, so a client
// only ever supplies one timestamp representation and the FMCSA
// fixed-width fields the validator and chain hash key off of are
// always internally consistent with it. deviceHeader, when non-empty,
// fills Device if the payload omitted it.
func toDomainEvent(p eventPayload, deviceHeader string) *event.Event {
	device := p.Device
	if device == "" {
		device = deviceHeader
	}

	t := p.EventTimestamp

	return &event.Event{
		Carrier:                 p.Carrier,
		Driver:                  p.Driver,
		Vehicle:                 p.Vehicle,
		Device:                  device,
		LogPeriod:               p.LogPeriod,
		SequenceID:              p.EventSequenceID,
		EventType:               event.Type(p.EventType),
		EventSubType:            event.SubType(p.EventSubType),
		RecordStatus:            event.RecordStatus(p.RecordStatus),
		RecordOrigin:            event.RecordOrigin(p.RecordOrigin),
		EventDate:               t.Format("010206"),
		EventTime:               t.Format("150405"),
		TZOffset:                t.Format("-0700"),
		Timestamp:               t,
		AccumulatedVehicleMiles: p.AccumulatedVehicleMiles,
		ElapsedEngineHours:      p.ElapsedEngineHours,
		Latitude:                p.Latitude,
		Longitude:               p.Longitude,
		LocationDescription:     p.LocationDescription,
		MalfunctionIndicator:    p.MalfunctionIndicator,
		DiagnosticIndicator:     p.DiagnosticIndicator,
	}
}

// readBody enforces the Content-Type and size-limit rules shared by
// both ingestion endpoints, transparently inflating a
// Content-Encoding: gzip body for the batch endpoint.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !hasJSONContentType(ct) {
		WriteErrorResponse(w, r, s.logger, UnsupportedMediaType("Content-Type must be application/json"))

		return nil, false
	}

	body := io.Reader(r.Body)

	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			WriteErrorResponse(w, r, s.logger, BadRequest("invalid gzip-encoded body: "+err.Error()))

			return nil, false
		}
		defer gz.Close()

		body = gz
	}

	limited := io.LimitReader(body, s.config.MaxRequestSize+1)

	raw, err := io.ReadAll(limited)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("failed to read request body: "+err.Error()))

		return nil, false
	}

	if int64(len(raw)) > s.config.MaxRequestSize {
		WriteErrorResponse(w, r, s.logger,
			PayloadTooLarge(fmt.Sprintf("request body exceeds maximum size of %d bytes", s.config.MaxRequestSize)))

		return nil, false
	}

	if len(raw) == 0 {
		WriteErrorResponse(w, r, s.logger, BadRequest("request body cannot be empty"))

		return nil, false
	}

	return raw, true
}

func hasJSONContentType(contentType string) bool {
	return strings.HasPrefix(strings.TrimSpace(contentType), "application/json")
}

// handleIngestEvent handles POST /events: single-event submission.
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var payload eventPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeDomainError(w, r, s.logger, http.StatusBadRequest, codeValidation, "invalid JSON body", err.Error())

		return
	}

	actor, ok := authstub.ActorFromContext(r.Context())
	if !ok {
		writeDomainError(w, r, s.logger, http.StatusUnauthorized, codeAuthentication, "actor credential is required", nil)

		return
	}

	e := toDomainEvent(payload, r.Header.Get("X-Device-Id"))

	req := pipeline.Request{
		Actor:          actor.ID,
		IdempotencyKey: r.Header.Get("X-Idempotency-Key"),
		SourceEndpoint: "/events",
		Raw:            raw,
		Event:          e,
	}

	result, err := s.pipeline.Submit(r.Context(), req)
	if err != nil {
		s.writeSubmitError(w, r, err)

		return
	}

	s.writeIngestResult(w, r, result)
}

func (s *Server) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == pipeline.ErrIdempotencyConflict:
		writeDomainError(w, r, s.logger, http.StatusConflict, codeIdempotencyConflict,
			"a request with this idempotency key is already in flight", nil)
	default:
		s.logger.Error("pipeline submit failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, r, s.logger, http.StatusInternalServerError, codeDatabase,
			"an unexpected error occurred while processing the event", nil)
	}
}

// writeIngestResult maps a pipeline.Result to the canonical envelope.
// Replayed results carry the exact same body as the original
// acceptance so byte-identical replay holds without the handler
// needing any special-case serialization path.
func (s *Server) writeIngestResult(w http.ResponseWriter, r *http.Request, result pipeline.Result) {
	if result.Replayed {
		w.Header().Set("X-Idempotency-Replay", "true")
	}

	switch {
	case result.Accepted:
		writeData(w, r, s.logger, http.StatusCreated, ingestResponse{
			EventID:    result.EventID,
			SequenceID: result.SequenceID,
			ChainHash:  result.ChainHash,
		})
	case len(result.Errors) > 0:
		writeDomainError(w, r, s.logger, http.StatusBadRequest, codeValidation,
			"event failed validation", fieldErrorsToDTO(result.Errors))
	default:
		writeDomainError(w, r, s.logger, http.StatusInternalServerError, codeDatabase,
			"event could not be ingested; it has been captured for retry", nil)
	}
}

func fieldErrorsToDTO(errs []validator.FieldError) []fieldErrDTO {
	out := make([]fieldErrDTO, len(errs))
	for i, e := range errs {
		out[i] = fieldErrDTO{Field: e.Field, Code: e.Code, Message: e.Message}
	}

	return out
}

// handleIngestBatch handles POST /events/batch: up to MaxBatchSize
// events, each traversing the pipeline independently so one event's
// failure never affects another's outcome.
func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var batch batchRequest
	if err := json.Unmarshal(raw, &batch); err != nil {
		writeDomainError(w, r, s.logger, http.StatusBadRequest, codeValidation, "invalid JSON body", err.Error())

		return
	}

	if len(batch.Events) == 0 {
		writeDomainError(w, r, s.logger, http.StatusBadRequest, codeValidation, "events array cannot be empty", nil)

		return
	}

	if len(batch.Events) > MaxBatchSize {
		writeDomainError(w, r, s.logger, http.StatusBadRequest, codeValidation,
			fmt.Sprintf("batch exceeds the maximum of %d events", MaxBatchSize), nil)

		return
	}

	actor, ok := authstub.ActorFromContext(r.Context())
	if !ok {
		writeDomainError(w, r, s.logger, http.StatusUnauthorized, codeAuthentication, "actor credential is required", nil)

		return
	}

	idemKey := r.Header.Get("X-Idempotency-Key")
	reqs := make([]pipeline.Request, len(batch.Events))

	for i, p := range batch.Events {
		idx := i
		itemRaw, err := json.Marshal(p)
		if err != nil {
			itemRaw = raw
		}

		reqs[i] = pipeline.Request{
			Actor:          actor.ID,
			IdempotencyKey: perItemIdempotencyKey(idemKey, idx),
			SourceEndpoint: "/events/batch",
			BatchIndex:     &idx,
			Raw:            itemRaw,
			Event:          toDomainEvent(p, batch.DeviceID),
		}
	}

	results := s.pipeline.SubmitBatch(r.Context(), reqs)

	response := buildBatchResponse(reqs, results, time.Since(startTime))

	status := http.StatusCreated
	switch {
	case response.Summary.Accepted == 0:
		status = http.StatusBadRequest
	case response.Summary.Rejected > 0:
		status = http.StatusMultiStatus
	}

	writeData(w, r, s.logger, status, response)
}

// perItemIdempotencyKey scopes a batch's shared idempotency key to
// each event's position, so two different events in the same batch
// never collide on the gate even when the caller supplies one key for
// the whole request.
func perItemIdempotencyKey(key string, index int) string {
	if key == "" {
		return ""
	}

	return fmt.Sprintf("%s:%d", key, index)
}

func buildBatchResponse(reqs []pipeline.Request, results []pipeline.Result, elapsed time.Duration) batchResponse {
	var accepted []acceptedEvent
	var rejected []rejectedEvent

	for i, result := range results {
		if result.Accepted {
			accepted = append(accepted, acceptedEvent{
				Index:      i,
				EventID:    result.EventID,
				SequenceID: result.SequenceID,
				ChainHash:  result.ChainHash,
				EventType:  int(reqs[i].Event.EventType),
			})

			continue
		}

		errs := result.Errors
		if len(errs) == 0 {
			errs = []validator.FieldError{{Field: "_ingestion", Code: "INGESTION_ERROR", Message: "event could not be ingested; it has been captured for retry"}}
		}

		rejected = append(rejected, rejectedEvent{Index: i, Errors: fieldErrorsToDTO(errs)})
	}

	return batchResponse{
		Accepted: accepted,
		Rejected: rejected,
		Summary: batchSummary{
			Total:            len(results),
			Accepted:         len(accepted),
			Rejected:         len(rejected),
			ProcessingTimeMs: elapsed.Milliseconds(),
		},
	}
}
