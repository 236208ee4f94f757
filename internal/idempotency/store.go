// Package idempotency implements the submission idempotency gate: atomic
// "claim or replay" semantics keyed on a caller-supplied idempotency key,
// backed by a network cache with an in-process fallback.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of an idempotency record.
type Status int

const (
	// StatusInFlight marks a key as claimed but not yet resolved.
	StatusInFlight Status = iota
	// StatusCompleted marks a key whose submission finished processing.
	StatusCompleted
)

const (
	// InFlightTTL bounds how long a claim survives without completion,
	// after which another caller may reclaim the key (e.g. the original
	// caller crashed before calling Complete).
	InFlightTTL = 60 * time.Second

	// CompletedTTL bounds how long a completed result is replayed before
	// the key is forgotten.
	CompletedTTL = 24 * time.Hour
)

// Record is the stored outcome of a claimed idempotency key. Fields beyond
// Status/ResultCode are enough for the caller to reconstruct a
// byte-identical response body on replay without persisting the raw
// serialized bytes.
type Record struct {
	Status     Status
	Accepted   bool
	EventID    string
	SequenceID int
	ChainHash  string
	ResultCode string
	ResultBody []byte
}

// ErrNotFound is returned when a key has no record (not claimed, or its
// TTL expired).
var ErrNotFound = errors.New("idempotency: key not found")

// Store is the persistence boundary for idempotency records. Both the
// Redis-backed primary store and the in-process fallback implement it.
type Store interface {
	// Claim atomically creates an in-flight record for key if none
	// exists, returning (true, nil) on success. Returns (false, nil) if
	// a record already exists (in-flight or completed) — the caller
	// should fetch it with Get.
	Claim(ctx context.Context, key string) (claimed bool, err error)

	// Complete transitions key's record to completed, recording the
	// result so later callers get a replay instead of reprocessing.
	Complete(ctx context.Context, key string, record Record) error

	// Get fetches the current record for key, returning ErrNotFound if
	// absent or expired.
	Get(ctx context.Context, key string) (Record, error)

	// Release removes an in-flight record, used when the claimant fails
	// before completing so the key is immediately available again
	// instead of waiting out InFlightTTL.
	Release(ctx context.Context, key string) error
}
