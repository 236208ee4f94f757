package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eld-core/ingestor/internal/dlq"
)

var _ dlq.Store = (*DLQStore)(nil)

// DLQStore implements dlq.Store against the dlq_entries and
// dlq_alerts tables.
type DLQStore struct {
	conn *Connection
}

// NewDLQStore constructs a DLQStore backed by conn.
func NewDLQStore(conn *Connection) *DLQStore {
	return &DLQStore{conn: conn}
}

// Insert persists a new dead-lettered entry, assigning e.ID when the
// caller did not supply one.
func (s *DLQStore) Insert(ctx context.Context, e *dlq.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	const q = `
		INSERT INTO dlq_entries (
			id, payload, source_endpoint, source_device_id, batch_index,
			vault_record_id, failure_reason, retry_count, status,
			first_failed_at, last_failed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	return s.conn.QueryRowContext(ctx, q,
		e.ID, e.Payload, e.SourceEndpoint, e.SourceDeviceID, e.BatchIndex,
		e.VaultRecordID, e.FailureReason, e.RetryCount, e.Status,
		e.FirstFailedAt, e.LastFailedAt,
	).Scan(&e.ID)
}

// Get retrieves an entry by id.
func (s *DLQStore) Get(ctx context.Context, id string) (*dlq.Entry, error) {
	const q = `
		SELECT id, payload, source_endpoint, source_device_id, batch_index,
			vault_record_id, failure_reason, retry_count, status,
			first_failed_at, last_failed_at, resolver_identity, notes
		FROM dlq_entries WHERE id = $1`

	e, err := scanEntry(s.conn.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dlq.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dlq store: get %s: %w", id, err)
	}

	return e, nil
}

// List returns entries matching filter, newest failure first.
func (s *DLQStore) List(ctx context.Context, filter dlq.ListFilter) ([]*dlq.Entry, error) {
	q := `
		SELECT id, payload, source_endpoint, source_device_id, batch_index,
			vault_record_id, failure_reason, retry_count, status,
			first_failed_at, last_failed_at, resolver_identity, notes
		FROM dlq_entries WHERE 1=1`

	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.SourceDeviceID != "" {
		args = append(args, filter.SourceDeviceID)
		q += fmt.Sprintf(" AND source_device_id = $%d", len(args))
	}
	if filter.SourceEndpoint != "" {
		args = append(args, filter.SourceEndpoint)
		q += fmt.Sprintf(" AND source_endpoint = $%d", len(args))
	}

	q += " ORDER BY last_failed_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("dlq store: list: %w", err)
	}
	defer rows.Close()

	var entries []*dlq.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("dlq store: list: scan: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dlq store: list: %w", err)
	}

	return entries, nil
}

// UpdateStatus transitions an entry's status and records who resolved
// it and why.
func (s *DLQStore) UpdateStatus(ctx context.Context, id string, status dlq.Status, resolverIdentity, notes string) error {
	const q = `
		UPDATE dlq_entries SET status = $1, resolver_identity = $2, notes = $3
		WHERE id = $4`

	result, err := s.conn.ExecContext(ctx, q, status, resolverIdentity, notes, id)
	if err != nil {
		return fmt.Errorf("dlq store: update status %s: %w", id, err)
	}

	return requireRowsAffected(result, id)
}

// IncrementRetry bumps retry_count, stamps last_failed_at, and resets
// the entry to pending so it can be retried again.
func (s *DLQStore) IncrementRetry(ctx context.Context, id string, failedAt time.Time) error {
	const q = `
		UPDATE dlq_entries
		SET retry_count = retry_count + 1, last_failed_at = $1, status = $2
		WHERE id = $3`

	result, err := s.conn.ExecContext(ctx, q, failedAt, dlq.StatusPending, id)
	if err != nil {
		return fmt.Errorf("dlq store: increment retry %s: %w", id, err)
	}

	return requireRowsAffected(result, id)
}

// Stats aggregates entry counts by status.
func (s *DLQStore) Stats(ctx context.Context) (dlq.Stats, error) {
	const q = `
		SELECT status, count(*) FROM dlq_entries GROUP BY status`

	rows, err := s.conn.QueryContext(ctx, q)
	if err != nil {
		return dlq.Stats{}, fmt.Errorf("dlq store: stats: %w", err)
	}
	defer rows.Close()

	var stats dlq.Stats
	for rows.Next() {
		var status dlq.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return dlq.Stats{}, fmt.Errorf("dlq store: stats: scan: %w", err)
		}

		switch status {
		case dlq.StatusPending:
			stats.Pending = count
		case dlq.StatusRetrying:
			stats.Retrying = count
		case dlq.StatusResolved:
			stats.Resolved = count
		case dlq.StatusDiscarded:
			stats.Discarded = count
		}
	}

	if err := rows.Err(); err != nil {
		return dlq.Stats{}, fmt.Errorf("dlq store: stats: %w", err)
	}

	return stats, nil
}

// InsertAlert persists a depth-alert row.
func (s *DLQStore) InsertAlert(ctx context.Context, a *dlq.AlertRecord) error {
	const q = `
		INSERT INTO dlq_alerts (id, pending_count, threshold, raised_at)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id`

	return s.conn.QueryRowContext(ctx, q, a.PendingCount, a.Threshold, a.RaisedAt).Scan(&a.ID)
}

// ListAlerts returns the most recent alerts, newest first, up to
// limit.
func (s *DLQStore) ListAlerts(ctx context.Context, limit int) ([]*dlq.AlertRecord, error) {
	const q = `
		SELECT id, pending_count, threshold, raised_at
		FROM dlq_alerts ORDER BY raised_at DESC LIMIT $1`

	rows, err := s.conn.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("dlq store: list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*dlq.AlertRecord
	for rows.Next() {
		a := &dlq.AlertRecord{}
		if err := rows.Scan(&a.ID, &a.PendingCount, &a.Threshold, &a.RaisedAt); err != nil {
			return nil, fmt.Errorf("dlq store: list alerts: scan: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dlq store: list alerts: %w", err)
	}

	return alerts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*dlq.Entry, error) {
	e := &dlq.Entry{}

	var resolverIdentity, notes sql.NullString
	var batchIndex sql.NullInt64

	if err := row.Scan(
		&e.ID, &e.Payload, &e.SourceEndpoint, &e.SourceDeviceID, &batchIndex,
		&e.VaultRecordID, &e.FailureReason, &e.RetryCount, &e.Status,
		&e.FirstFailedAt, &e.LastFailedAt, &resolverIdentity, &notes,
	); err != nil {
		return nil, err
	}

	if batchIndex.Valid {
		idx := int(batchIndex.Int64)
		e.BatchIndex = &idx
	}
	e.ResolverIdentity = resolverIdentity.String
	e.Notes = notes.String

	return e, nil
}

func requireRowsAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("dlq store: %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("dlq store: %s: %w", id, dlq.ErrNotFound)
	}

	return nil
}
