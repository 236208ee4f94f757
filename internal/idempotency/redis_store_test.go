package idempotency

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, func()) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	return NewRedisStore(client), server.Close
}

func TestRedisStore_Claim_FirstTimeSucceeds(t *testing.T) {
	store, closeFn := newTestRedisStore(t)
	defer closeFn()

	claimed, err := store.Claim(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	if !claimed {
		t.Error("expected first claim to succeed")
	}
}

func TestRedisStore_Claim_SecondTimeFails(t *testing.T) {
	store, closeFn := newTestRedisStore(t)
	defer closeFn()

	ctx := context.Background()
	if _, err := store.Claim(ctx, "key-1"); err != nil {
		t.Fatalf("first Claim() error = %v", err)
	}

	claimed, err := store.Claim(ctx, "key-1")
	if err != nil {
		t.Fatalf("second Claim() error = %v", err)
	}

	if claimed {
		t.Error("expected second claim to fail")
	}
}

func TestRedisStore_CompleteThenGet(t *testing.T) {
	store, closeFn := newTestRedisStore(t)
	defer closeFn()

	ctx := context.Background()
	if _, err := store.Claim(ctx, "key-1"); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	want := Record{EventID: "evt-1", ResultCode: "201", ResultBody: []byte(`{"ok":true}`)}
	if err := store.Complete(ctx, "key-1", want); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	got, err := store.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got.Status != StatusCompleted || got.EventID != want.EventID {
		t.Errorf("Get() = %+v, want completed record with EventID %s", got, want.EventID)
	}
}

func TestRedisStore_Get_NotFound(t *testing.T) {
	store, closeFn := newTestRedisStore(t)
	defer closeFn()

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStore_Release(t *testing.T) {
	store, closeFn := newTestRedisStore(t)
	defer closeFn()

	ctx := context.Background()
	if _, err := store.Claim(ctx, "key-1"); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	if err := store.Release(ctx, "key-1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	claimed, err := store.Claim(ctx, "key-1")
	if err != nil {
		t.Fatalf("Claim() after release error = %v", err)
	}

	if !claimed {
		t.Error("expected key to be claimable again after release")
	}
}

func TestRedisStore_State_InitiallyClosed(t *testing.T) {
	store, closeFn := newTestRedisStore(t)
	defer closeFn()

	if store.State().String() != "closed" {
		t.Errorf("State() = %v, want closed", store.State())
	}
}
