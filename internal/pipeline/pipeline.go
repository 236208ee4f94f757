// Package pipeline orchestrates the six named ingestion stages — vault
// write, idempotency check, validation, sequencing, chain append, and
// DLQ fallback — end to end for a single event, and fans batches out
// into independent per-event flows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/eld-core/ingestor/internal/chain"
	"github.com/eld-core/ingestor/internal/dlq"
	"github.com/eld-core/ingestor/internal/event"
	"github.com/eld-core/ingestor/internal/idempotency"
	"github.com/eld-core/ingestor/internal/retry"
	"github.com/eld-core/ingestor/internal/sequencer"
	"github.com/eld-core/ingestor/internal/validator"
	"github.com/eld-core/ingestor/internal/vault"
)

// ErrIdempotencyConflict is returned when a request carries a key
// whose prior attempt is still in flight.
var ErrIdempotencyConflict = errors.New("pipeline: idempotency key is in flight")

// Decoder turns a raw, as-received payload back into a typed event.
// Implemented by internal/api, which owns the wire schema; pipeline
// stays agnostic of request formats so it can also decode a
// DLQ-vaulted payload during retry.
type Decoder interface {
	DecodeEvent(raw []byte) (*event.Event, error)
}

// Request is a single event submission, already parsed by the caller,
// paired with its raw bytes for vault/DLQ capture.
type Request struct {
	Actor          string
	IdempotencyKey string
	SourceEndpoint string
	BatchIndex     *int
	Raw            []byte
	Event          *event.Event
}

// Result is the outcome of a single event traversing the pipeline.
type Result struct {
	Accepted   bool
	Replayed   bool
	EventID    string
	SequenceID int
	ChainHash  string
	Errors     []validator.FieldError
}

// Pipeline wires every stage collaborator together.
type Pipeline struct {
	vault       *vault.Vault
	idempotency *idempotency.Gate
	validator   *validator.Validator
	sequencer   *sequencer.Allocator
	appender    *chain.Appender
	dlqSvc      *dlq.Service
	retrier     *retry.Retrier
	resolver    validator.Resolver
	decoder     Decoder
	logger      *slog.Logger
}

// Deps bundles the Pipeline's collaborators for New.
type Deps struct {
	Vault       *vault.Vault
	Idempotency *idempotency.Gate
	Validator   *validator.Validator
	Sequencer   *sequencer.Allocator
	Appender    *chain.Appender
	DLQ         *dlq.Service
	Retrier     *retry.Retrier
	Resolver    validator.Resolver
	Decoder     Decoder
	Logger      *slog.Logger
}

// New constructs a Pipeline from deps.
func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		vault:       deps.Vault,
		idempotency: deps.Idempotency,
		validator:   deps.Validator,
		sequencer:   deps.Sequencer,
		appender:    deps.Appender,
		dlqSvc:      deps.DLQ,
		retrier:     deps.Retrier,
		resolver:    deps.Resolver,
		decoder:     deps.Decoder,
		logger:      logger,
	}
}

// Submit drives a single event through every stage in order, stopping
// at the first terminal outcome.
func (p *Pipeline) Submit(ctx context.Context, req Request) (Result, error) {
	submissionID := uuid.NewString()

	if err := p.vault.Capture(ctx, &vault.Submission{
		ID:      submissionID,
		Device:  req.Event.Device,
		Payload: req.Raw,
	}); err != nil {
		return Result{}, fmt.Errorf("pipeline: vault capture: %w", err)
	}

	if req.IdempotencyKey != "" {
		outcome, err := p.idempotency.Check(ctx, idempotencyScope(req.Actor, req.IdempotencyKey))
		if err != nil {
			return Result{}, fmt.Errorf("pipeline: idempotency check: %w", err)
		}

		if !outcome.Proceed {
			if outcome.Replay.Status == idempotency.StatusCompleted {
				return replayResult(outcome.Replay), nil
			}

			return Result{}, ErrIdempotencyConflict
		}
	}

	result := p.ingest(ctx, submissionID, req)

	if req.IdempotencyKey != "" {
		p.completeIdempotency(ctx, req, result)
	}

	return result, nil
}

// SubmitBatch fans a batch out into N independent single-event flows.
// Each request still traverses every stage; a failure in one event
// never affects another's outcome, including events in the same scope
// (the chain appender's own scope lock serializes those at the storage
// layer, not here).
func (p *Pipeline) SubmitBatch(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	var wg sync.WaitGroup
	wg.Add(len(reqs))

	for i, req := range reqs {
		go func(i int, req Request) {
			defer wg.Done()

			result, err := p.Submit(ctx, req)
			if err != nil {
				result = Result{Accepted: false, Errors: []validator.FieldError{{
					Field:   "_ingestion",
					Code:    "INGESTION_ERROR",
					Message: err.Error(),
				}}}
			}

			results[i] = result
		}(i, req)
	}

	wg.Wait()

	return results
}

// ingest runs validation, sequencing, and chain append for an event
// already captured in the vault. Split out so Reingest (the DLQ retry
// path) can reuse it without re-running vault capture or the
// idempotency gate.
func (p *Pipeline) ingest(ctx context.Context, submissionID string, req Request) Result {
	e := req.Event
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	results := p.validator.ValidateBatch(ctx, []*event.Event{e}, p.resolver)
	if vr := results[0]; !vr.Valid {
		p.markVaultDisposition(submissionID, vault.StatusRejected)
		return Result{Accepted: false, Errors: vr.Errors}
	}

	scope := e.Scope()
	sequenceID, err := p.sequencer.Allocate(ctx, scope, e.SequenceID)
	if err != nil {
		p.markVaultDisposition(submissionID, vault.StatusDeadLettered)
		p.routeToDLQ(req, submissionID, err)
		return Result{Accepted: false}
	}
	e.SequenceID = sequenceID

	appendErr := p.retrier.Do(ctx, "chain-append", func(ctx context.Context) error {
		return p.appender.Append(ctx, e)
	})
	if appendErr != nil {
		if releaseErr := p.sequencer.Release(ctx, scope, sequenceID); releaseErr != nil {
			p.logger.Warn("pipeline: failed to release leaked sequence", "error", releaseErr, "scope", scope.String())
		}

		p.markVaultDisposition(submissionID, vault.StatusDeadLettered)
		p.routeToDLQ(req, submissionID, appendErr)

		return Result{Accepted: false}
	}

	p.markVaultDisposition(submissionID, vault.StatusStored)

	return Result{
		Accepted:   true,
		EventID:    e.ID,
		SequenceID: e.SequenceID,
		ChainHash:  e.ChainHash,
	}
}

// markVaultDisposition updates a submission's vault status
// fire-and-forget: a slow or failing status update must never add
// latency to, or fail, the caller's response.
func (p *Pipeline) markVaultDisposition(submissionID string, status vault.Status) {
	go func() {
		if err := p.vault.MarkDisposition(context.WithoutCancel(context.Background()), []string{submissionID}, status); err != nil {
			p.logger.Warn("pipeline: vault disposition update failed", "error", err, "submission", submissionID)
		}
	}()
}

// routeToDLQ records a terminal ingestion failure. Only ingestion
// failures land here — validation failures return before this point.
func (p *Pipeline) routeToDLQ(req Request, submissionID string, cause error) {
	entry := &dlq.Entry{
		Payload:        req.Raw,
		SourceEndpoint: req.SourceEndpoint,
		SourceDeviceID: req.Event.Device,
		BatchIndex:     req.BatchIndex,
		VaultRecordID:  submissionID,
		FailureReason:  cause.Error(),
	}

	if err := p.dlqSvc.Route(context.WithoutCancel(context.Background()), entry); err != nil {
		p.logger.Error("pipeline: dlq route failed", "error", err, "submission", submissionID)
	}
}

func (p *Pipeline) completeIdempotency(ctx context.Context, req Request, result Result) {
	status := 201
	if !result.Accepted {
		status = 422
	}

	record := idempotency.Record{
		Status:     idempotency.StatusCompleted,
		Accepted:   result.Accepted,
		EventID:    result.EventID,
		SequenceID: result.SequenceID,
		ChainHash:  result.ChainHash,
		ResultCode: strconv.Itoa(status),
	}

	if err := p.idempotency.Complete(ctx, idempotencyScope(req.Actor, req.IdempotencyKey), record); err != nil {
		p.logger.Warn("pipeline: failed to complete idempotency record", "error", err)
	}
}

func idempotencyScope(actor, key string) string {
	return fmt.Sprintf("idem:%s:%s", actor, key)
}

func replayResult(r idempotency.Record) Result {
	return Result{
		Accepted:   r.Accepted,
		Replayed:   true,
		EventID:    r.EventID,
		SequenceID: r.SequenceID,
		ChainHash:  r.ChainHash,
	}
}

// Reingest implements dlq.Reingester: it decodes a dead-lettered
// payload and drives it back through validation, a fresh sequence
// allocation, and chain append. The original sequence number may
// already be in use by the time an operator retries, so Reingest never
// reuses it.
func (p *Pipeline) Reingest(ctx context.Context, payload []byte, sourceDeviceID string) (dlq.ReingestResult, error) {
	e, err := p.decoder.DecodeEvent(payload)
	if err != nil {
		return dlq.ReingestResult{}, fmt.Errorf("pipeline: reingest: decode: %w", err)
	}
	e.SequenceID = 0

	req := Request{SourceEndpoint: "/admin/dlq/retry", Event: e, Raw: payload}
	submissionID := uuid.NewString()

	result := p.ingest(ctx, submissionID, req)
	if !result.Accepted {
		if len(result.Errors) > 0 {
			return dlq.ReingestResult{}, fmt.Errorf("pipeline: reingest: validation failed: %+v", result.Errors)
		}

		return dlq.ReingestResult{}, fmt.Errorf("pipeline: reingest: ingestion failed for device %s", sourceDeviceID)
	}

	return dlq.ReingestResult{
		EventID:    result.EventID,
		SequenceID: result.SequenceID,
		ChainHash:  result.ChainHash,
	}, nil
}
