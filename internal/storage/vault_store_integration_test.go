package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eld-core/ingestor/internal/vault"
)

func TestVaultStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, conn := setupTestDatabase(ctx, t)

	defer func() {
		_ = conn.Close()
		_ = container.Terminate(ctx)
	}()

	store := NewVaultStore(conn)
	v := vault.New(store)

	t.Run("Capture_ThenMarkDisposition", func(t *testing.T) {
		id := uuid.NewString()

		if err := v.Capture(ctx, &vault.Submission{ID: id, Device: "dev-1", Payload: []byte(`{"event":"raw"}`)}); err != nil {
			t.Fatalf("Capture() error = %v", err)
		}

		if err := v.MarkDisposition(ctx, []string{id}, vault.StatusStored); err != nil {
			t.Fatalf("MarkDisposition() error = %v", err)
		}
	})

	t.Run("Insert_RejectsDuplicateID", func(t *testing.T) {
		id := uuid.NewString()
		sub := &vault.Submission{ID: id, Device: "dev-2", Payload: []byte("a"), Status: vault.StatusReceived, ReceivedAt: time.Now()}

		if err := store.Insert(ctx, sub); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}

		err := store.Insert(ctx, sub)
		if !errors.Is(err, vault.ErrImmutablePayload) {
			t.Errorf("Insert() duplicate error = %v, want ErrImmutablePayload", err)
		}
	})

	t.Run("InsertBatch_PersistsAll", func(t *testing.T) {
		submissions := []*vault.Submission{
			{ID: uuid.NewString(), Device: "dev-3", Payload: []byte("a"), Status: vault.StatusReceived, ReceivedAt: time.Now()},
			{ID: uuid.NewString(), Device: "dev-3", Payload: []byte("b"), Status: vault.StatusReceived, ReceivedAt: time.Now()},
		}

		if err := store.InsertBatch(ctx, submissions); err != nil {
			t.Fatalf("InsertBatch() error = %v", err)
		}

		ids := []string{submissions[0].ID, submissions[1].ID}
		if err := store.UpdateStatus(ctx, ids, vault.StatusStored); err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}
	})
}
