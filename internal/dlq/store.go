package dlq

import (
	"context"
	"time"
)

// Store is the persistence boundary for DLQ entries and alert records.
// Implemented by internal/storage against PostgreSQL.
type Store interface {
	// Insert records a new DLQ entry with StatusPending.
	Insert(ctx context.Context, e *Entry) error

	// Get returns a single entry by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Entry, error)

	// List returns entries matching filter, most recently failed first.
	List(ctx context.Context, filter ListFilter) ([]*Entry, error)

	// UpdateStatus transitions an entry to status, optionally recording
	// the resolver's identity and notes. Used by both the retry and
	// discard operations.
	UpdateStatus(ctx context.Context, id string, status Status, resolverIdentity, notes string) error

	// IncrementRetry records a retry attempt: bumps RetryCount, sets
	// LastFailedAt, and returns the entry to StatusPending.
	IncrementRetry(ctx context.Context, id string, failedAt time.Time) error

	// Stats summarizes current entry counts by status.
	Stats(ctx context.Context) (Stats, error)

	// InsertAlert persists a depth-alert record.
	InsertAlert(ctx context.Context, a *AlertRecord) error

	// ListAlerts returns recorded alerts, most recent first.
	ListAlerts(ctx context.Context, limit int) ([]*AlertRecord, error)
}
