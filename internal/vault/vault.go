// Package vault captures the raw, as-received event submission ahead of
// validation or sequencing, so nothing is ever lost to a downstream
// processing failure.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a vaulted submission. Transitions are
// forward-only: Received -> {Stored, Rejected, DeadLettered}.
type Status string

const (
	StatusReceived     Status = "received"
	StatusStored       Status = "stored"
	StatusRejected     Status = "rejected"
	StatusDeadLettered Status = "dead_lettered"
)

// Sentinel errors for vault operations.
var (
	// ErrImmutablePayload is returned by Repository implementations when
	// a caller attempts to alter a submission's payload after capture.
	// Submissions are append-only; their raw bytes never change once
	// captured.
	ErrImmutablePayload = errors.New("vault: submission payload is immutable after capture")

	// ErrStatusRequired is returned when MarkDisposition is called with
	// an empty status.
	ErrStatusRequired = errors.New("vault: disposition status is required")
)

// Submission is the raw record of a received event or batch, captured
// verbatim before any validation runs.
type Submission struct {
	ID         string
	Device     string
	Payload    []byte
	EventCount int
	Status     Status
	ReceivedAt time.Time
}

// Repository is the persistence boundary for vaulted submissions.
// Implemented by internal/storage against PostgreSQL.
type Repository interface {
	// Insert persists a single submission. Implementations must reject a
	// second Insert for the same ID (the payload is write-once).
	Insert(ctx context.Context, s *Submission) error

	// InsertBatch persists multiple submissions as a single vaulting
	// operation, used when a caller submits a batch in one request.
	InsertBatch(ctx context.Context, submissions []*Submission) error

	// UpdateStatus transitions the given submission ids to status in a
	// single statement. Never touches the payload column.
	UpdateStatus(ctx context.Context, ids []string, status Status) error
}

// Vault captures raw submissions and records their eventual disposition.
type Vault struct {
	repo Repository
}

// New constructs a Vault backed by repo.
func New(repo Repository) *Vault {
	return &Vault{repo: repo}
}

// Capture persists s with StatusReceived. Callers must not reuse a
// Submission's ID across calls; doing so is rejected by the repository's
// write-once constraint on the payload.
func (v *Vault) Capture(ctx context.Context, s *Submission) error {
	s.Status = StatusReceived
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = time.Now()
	}

	if err := v.repo.Insert(ctx, s); err != nil {
		return fmt.Errorf("vault: capture: %w", err)
	}

	return nil
}

// CaptureBatch persists every submission in a single vaulting operation.
func (v *Vault) CaptureBatch(ctx context.Context, submissions []*Submission) error {
	now := time.Now()

	for _, s := range submissions {
		s.Status = StatusReceived
		if s.ReceivedAt.IsZero() {
			s.ReceivedAt = now
		}
	}

	if err := v.repo.InsertBatch(ctx, submissions); err != nil {
		return fmt.Errorf("vault: capture batch: %w", err)
	}

	return nil
}

// MarkDisposition records the eventual outcome of one or more submissions
// without ever touching their payloads. Fire-and-forget relative to the
// caller's own response: callers typically invoke this after already
// responding to the original HTTP request, so a slow or failing status
// update never adds latency to ingestion itself.
func (v *Vault) MarkDisposition(ctx context.Context, ids []string, status Status) error {
	if status == "" {
		return fmt.Errorf("vault: mark disposition: %w", ErrStatusRequired)
	}

	if err := v.repo.UpdateStatus(ctx, ids, status); err != nil {
		return fmt.Errorf("vault: mark disposition: %w", err)
	}

	return nil
}
