package idempotency

import (
	"context"
	"testing"

	"github.com/sony/gobreaker"
)

func TestGate_Check_FirstCallProceeds(t *testing.T) {
	g := NewGate(NewFallbackStore(), NewFallbackStore(), nil)

	outcome, err := g.Check(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if !outcome.Proceed {
		t.Error("expected first check to proceed")
	}
}

func TestGate_Check_InFlightDoesNotReplay(t *testing.T) {
	g := NewGate(NewFallbackStore(), NewFallbackStore(), nil)
	ctx := context.Background()

	if _, err := g.Check(ctx, "key-1"); err != nil {
		t.Fatalf("first Check() error = %v", err)
	}

	outcome, err := g.Check(ctx, "key-1")
	if err != nil {
		t.Fatalf("second Check() error = %v", err)
	}

	if outcome.Proceed {
		t.Error("expected in-flight key to not proceed")
	}

	if outcome.Replay.Status == StatusCompleted {
		t.Error("expected no replay for a still in-flight key")
	}
}

func TestGate_Check_CompletedReplays(t *testing.T) {
	g := NewGate(NewFallbackStore(), NewFallbackStore(), nil)
	ctx := context.Background()

	if _, err := g.Check(ctx, "key-1"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	want := Record{EventID: "evt-1", ResultCode: "201"}
	if err := g.Complete(ctx, "key-1", want); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	outcome, err := g.Check(ctx, "key-1")
	if err != nil {
		t.Fatalf("Check() after complete error = %v", err)
	}

	if outcome.Proceed {
		t.Error("expected completed key to not proceed")
	}

	if outcome.Replay.EventID != want.EventID {
		t.Errorf("Replay.EventID = %s, want %s", outcome.Replay.EventID, want.EventID)
	}
}

func TestGate_Clear_AllowsRetryAfterFailure(t *testing.T) {
	g := NewGate(NewFallbackStore(), NewFallbackStore(), nil)
	ctx := context.Background()

	if _, err := g.Check(ctx, "key-1"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if err := g.Clear(ctx, "key-1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	outcome, err := g.Check(ctx, "key-1")
	if err != nil {
		t.Fatalf("Check() after clear error = %v", err)
	}

	if !outcome.Proceed {
		t.Error("expected key to be claimable again after Clear")
	}
}

func TestGate_StoreFor_FallsBackWhenPrimaryCircuitOpen(t *testing.T) {
	primary := &openCircuitStore{FallbackStore: NewFallbackStore()}
	fallback := NewFallbackStore()
	g := NewGate(primary, fallback, nil)

	outcome, err := g.Check(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if !outcome.Proceed {
		t.Fatal("expected fallback to claim key")
	}

	// in-flight, not yet completed, but entry should exist in fallback
	if _, err := fallback.Get(context.Background(), "key-1"); err != nil {
		t.Errorf("expected claim recorded in fallback store, got error %v", err)
	}
}

// openCircuitStore wraps FallbackStore but reports an open circuit breaker
// state, exercising Gate.storeFor's routing without a real Redis client.
type openCircuitStore struct {
	*FallbackStore
}

func (o *openCircuitStore) State() gobreaker.State {
	return gobreaker.StateOpen
}
