package dlq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNotFound is returned when an entry or alert lookup finds nothing.
var ErrNotFound = errors.New("dlq: entry not found")

// ErrNotPending is returned when retry or discard is attempted on an
// entry that is not in StatusPending — retry and discard are only
// valid for entries still awaiting resolution.
var ErrNotPending = errors.New("dlq: entry is not pending")

// ReingestResult is the outcome of successfully replaying a DLQ entry's
// payload back through ingestion.
type ReingestResult struct {
	EventID    string
	SequenceID int
	ChainHash  string
}

// Reingester replays a dead-lettered payload through the ingestion
// pipeline. Implemented by internal/pipeline; kept as a narrow
// interface here so the DLQ service does not depend on pipeline
// internals, the same separation chain and sequencer keep from
// internal/storage.
type Reingester interface {
	Reingest(ctx context.Context, payload []byte, sourceDeviceID string) (ReingestResult, error)
}

// Service implements the DLQ's routing and admin operations.
type Service struct {
	store     Store
	reingest  Reingester
	threshold int
	logger    *slog.Logger
}

// New constructs a Service. threshold is the pending-count alert
// threshold for depth alerting.
func New(store Store, reingest Reingester, threshold int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{store: store, reingest: reingest, threshold: threshold, logger: logger}
}

// Route records a terminal ingestion failure. Callers invoke Route
// fire-and-forget relative to their own HTTP response: the response
// may already be on the wire when the DLQ write completes, and a
// secondary failure here is logged, not surfaced as a new error.
// Only ingestion failures should reach Route; validation failures are
// client errors that will not succeed on retry.
func (s *Service) Route(ctx context.Context, e *Entry) error {
	e.Status = StatusPending
	if e.FirstFailedAt.IsZero() {
		e.FirstFailedAt = time.Now()
	}
	e.LastFailedAt = e.FirstFailedAt

	if err := s.store.Insert(ctx, e); err != nil {
		return fmt.Errorf("dlq: route: %w", err)
	}

	go s.checkDepth(context.WithoutCancel(ctx))

	return nil
}

// checkDepth reads the current pending count and emits a durable alert
// record when it crosses the configured threshold. Run asynchronously
// after each insert.
func (s *Service) checkDepth(ctx context.Context) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Warn("dlq: depth check failed", "error", err)
		return
	}

	if s.threshold <= 0 || stats.Pending < s.threshold {
		return
	}

	alert := &AlertRecord{
		PendingCount: stats.Pending,
		Threshold:    s.threshold,
		RaisedAt:     time.Now(),
	}

	if err := s.store.InsertAlert(ctx, alert); err != nil {
		s.logger.Error("dlq: failed to persist depth alert", "error", err, "pending", stats.Pending)
	}
}

// Get returns a single entry, including its payload.
func (s *Service) Get(ctx context.Context, id string) (*Entry, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("dlq: get: %w", err)
	}

	return e, nil
}

// List returns entries matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Entry, error) {
	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("dlq: list: %w", err)
	}

	return entries, nil
}

// Stats summarizes current DLQ depth.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("dlq: stats: %w", err)
	}

	stats.ThresholdExceeded = s.threshold > 0 && stats.Pending >= s.threshold

	return stats, nil
}

// Alerts returns the most recent depth-alert records.
func (s *Service) Alerts(ctx context.Context, limit int) ([]*AlertRecord, error) {
	alerts, err := s.store.ListAlerts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("dlq: alerts: %w", err)
	}

	return alerts, nil
}

// Retry replays an entry's payload through ingestion. On success the
// entry transitions to StatusResolved and the resolver identity is
// recorded. On failure the entry's retry count is incremented and it
// returns to StatusPending for a future attempt.
func (s *Service) Retry(ctx context.Context, id, resolverIdentity string) (ReingestResult, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return ReingestResult{}, fmt.Errorf("dlq: retry: %w", err)
	}

	if e.Status != StatusPending {
		return ReingestResult{}, fmt.Errorf("dlq: retry %s: %w", id, ErrNotPending)
	}

	if err := s.store.UpdateStatus(ctx, id, StatusRetrying, resolverIdentity, ""); err != nil {
		return ReingestResult{}, fmt.Errorf("dlq: retry: mark retrying: %w", err)
	}

	result, reingestErr := s.reingest.Reingest(ctx, e.Payload, e.SourceDeviceID)
	if reingestErr != nil {
		if err := s.store.IncrementRetry(ctx, id, time.Now()); err != nil {
			s.logger.Error("dlq: failed to record retry attempt", "error", err, "entry", id)
		}

		return ReingestResult{}, fmt.Errorf("dlq: retry: reingest: %w", reingestErr)
	}

	notes := fmt.Sprintf("resolved via retry, eventId=%s", result.EventID)
	if err := s.store.UpdateStatus(ctx, id, StatusResolved, resolverIdentity, notes); err != nil {
		return result, fmt.Errorf("dlq: retry: mark resolved: %w", err)
	}

	return result, nil
}

// Discard permanently closes an entry without replay, recording the
// resolver's identity and notes.
func (s *Service) Discard(ctx context.Context, id, resolverIdentity, notes string) error {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("dlq: discard: %w", err)
	}

	if e.Status != StatusPending {
		return fmt.Errorf("dlq: discard %s: %w", id, ErrNotPending)
	}

	if err := s.store.UpdateStatus(ctx, id, StatusDiscarded, resolverIdentity, notes); err != nil {
		return fmt.Errorf("dlq: discard: %w", err)
	}

	return nil
}
