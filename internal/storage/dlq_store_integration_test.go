package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eld-core/ingestor/internal/dlq"
)

func TestDLQStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, conn := setupTestDatabase(ctx, t)

	defer func() {
		_ = conn.Close()
		_ = container.Terminate(ctx)
	}()

	store := NewDLQStore(conn)

	t.Run("Insert_ThenGet", func(t *testing.T) {
		now := time.Now()
		e := &dlq.Entry{
			Payload:        []byte("raw payload"),
			SourceEndpoint: "/events",
			SourceDeviceID: "dev-1",
			VaultRecordID:  uuid.NewString(),
			FailureReason:  "connection refused",
			Status:         dlq.StatusPending,
			FirstFailedAt:  now,
			LastFailedAt:   now,
		}

		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if e.ID == "" {
			t.Fatal("Insert() did not assign an id")
		}

		got, err := store.Get(ctx, e.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.SourceDeviceID != "dev-1" {
			t.Errorf("Get().SourceDeviceID = %q, want dev-1", got.SourceDeviceID)
		}
	})

	t.Run("Get_MissingReturnsErrNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.NewString())
		if err != dlq.ErrNotFound {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdateStatus_ThenList", func(t *testing.T) {
		now := time.Now()
		e := &dlq.Entry{
			Payload:        []byte("raw"),
			SourceEndpoint: "/events",
			SourceDeviceID: "dev-2",
			VaultRecordID:  uuid.NewString(),
			FailureReason:  "timeout",
			Status:         dlq.StatusPending,
			FirstFailedAt:  now,
			LastFailedAt:   now,
		}
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}

		if err := store.UpdateStatus(ctx, e.ID, dlq.StatusDiscarded, "ops-alice", "unrecoverable"); err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}

		entries, err := store.List(ctx, dlq.ListFilter{Status: dlq.StatusDiscarded, SourceDeviceID: "dev-2"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("List() len = %d, want 1", len(entries))
		}
		if entries[0].Notes != "unrecoverable" {
			t.Errorf("List()[0].Notes = %q", entries[0].Notes)
		}
	})

	t.Run("IncrementRetry_ResetsToPending", func(t *testing.T) {
		now := time.Now()
		e := &dlq.Entry{
			Payload:        []byte("raw"),
			SourceEndpoint: "/events",
			SourceDeviceID: "dev-3",
			VaultRecordID:  uuid.NewString(),
			FailureReason:  "timeout",
			Status:         dlq.StatusRetrying,
			FirstFailedAt:  now,
			LastFailedAt:   now,
		}
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}

		if err := store.IncrementRetry(ctx, e.ID, time.Now()); err != nil {
			t.Fatalf("IncrementRetry() error = %v", err)
		}

		got, err := store.Get(ctx, e.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.RetryCount != 1 {
			t.Errorf("RetryCount = %d, want 1", got.RetryCount)
		}
		if got.Status != dlq.StatusPending {
			t.Errorf("Status = %s, want %s", got.Status, dlq.StatusPending)
		}
	})

	t.Run("Stats_CountsByStatus", func(t *testing.T) {
		stats, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats.Pending+stats.Retrying+stats.Resolved+stats.Discarded == 0 {
			t.Error("Stats() returned all zero counts")
		}
	})

	t.Run("InsertAlert_ThenListAlerts", func(t *testing.T) {
		alert := &dlq.AlertRecord{PendingCount: 12, Threshold: 10, RaisedAt: time.Now()}

		if err := store.InsertAlert(ctx, alert); err != nil {
			t.Fatalf("InsertAlert() error = %v", err)
		}
		if alert.ID == "" {
			t.Fatal("InsertAlert() did not assign an id")
		}

		alerts, err := store.ListAlerts(ctx, 10)
		if err != nil {
			t.Fatalf("ListAlerts() error = %v", err)
		}
		if len(alerts) == 0 {
			t.Error("ListAlerts() returned no alerts")
		}
	})
}
