package idempotency

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sony/gobreaker"
)

// Outcome is the result of a Gate check: either the caller should proceed
// with processing, or replay a previously completed result.
type Outcome struct {
	// Proceed is true when the caller holds the claim and must process
	// the submission, then call Complete.
	Proceed bool
	// Replay holds the prior result when the key was already completed.
	Replay Record
}

// Gate implements the idempotency protocol: Check claims a key or returns
// the replayable result of a prior completion; Complete records the
// outcome; Clear releases a claim without recording a result, e.g. when
// processing fails before producing a result and the caller wants the
// key immediately retryable rather than waiting out InFlightTTL.
type Gate struct {
	primary  Store
	fallback Store
	logger   *slog.Logger
}

// NewGate constructs a Gate. primary is consulted first; fallback is used
// while primary's circuit breaker is open, so a degraded cache degrades
// the idempotency guarantee to single-process scope rather than failing
// ingestion outright. An error from primary while its breaker is still
// closed is returned to the caller, not routed to fallback.
func NewGate(primary, fallback Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}

	return &Gate{primary: primary, fallback: fallback, logger: logger}
}

// Check claims key for processing, or returns the replay of a completed
// submission. An in-flight record whose claimant hasn't yet completed
// also yields Proceed=false with an empty Replay; callers should treat
// that as "still processing" and let the original caller's response win.
func (g *Gate) Check(ctx context.Context, key string) (Outcome, error) {
	store := g.storeFor()

	claimed, err := store.Claim(ctx, key)
	if err != nil {
		return Outcome{}, err
	}

	if claimed {
		return Outcome{Proceed: true}, nil
	}

	record, err := store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		// Raced with an expiring in-flight claim; treat as claimable.
		return Outcome{Proceed: true}, nil
	}

	if err != nil {
		return Outcome{}, err
	}

	if record.Status == StatusInFlight {
		return Outcome{Proceed: false}, nil
	}

	return Outcome{Proceed: false, Replay: record}, nil
}

// Complete records the outcome of processing key so later callers replay
// it instead of reprocessing.
func (g *Gate) Complete(ctx context.Context, key string, record Record) error {
	return g.storeFor().Complete(ctx, key, record)
}

// Clear releases key's in-flight claim without recording a result.
func (g *Gate) Clear(ctx context.Context, key string) error {
	return g.storeFor().Release(ctx, key)
}

// storeFor picks primary unless its circuit breaker is currently open, in
// which case it falls back to the bounded in-process store and logs the
// degradation on every such call.
func (g *Gate) storeFor() Store {
	type stateful interface {
		State() gobreaker.State
	}

	if sf, ok := g.primary.(stateful); ok && sf.State() == gobreaker.StateOpen {
		g.logger.Warn("idempotency primary cache circuit open, using fallback store")

		return g.fallback
	}

	return g.primary
}
