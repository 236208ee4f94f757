package storage

import (
	"context"
	"fmt"

	"github.com/eld-core/ingestor/internal/chain"
	"github.com/eld-core/ingestor/internal/event"
	"github.com/eld-core/ingestor/internal/sequencer"
)

var _ sequencer.Store = (*SequenceStore)(nil)

// SequenceStore implements sequencer.Store against the
// sequence_allocations table, keyed (device, log_period,
// sequence_id). It reserves sequence numbers ahead of the event row
// they belong to, so an allocation can be released without ever having
// written an event.
type SequenceStore struct {
	conn *Connection
}

// NewSequenceStore constructs a SequenceStore backed by conn.
func NewSequenceStore(conn *Connection) *SequenceStore {
	return &SequenceStore{conn: conn}
}

// NextSequence reserves the lowest unallocated sequence id for scope.
// The same advisory lock key the chain appender uses for scope
// serialization also guards this read-then-insert, since a
// client-supplied Reserve and an automatic NextSequence for the same
// scope must not race each other either.
func (s *SequenceStore) NextSequence(ctx context.Context, scope event.Scope) (int, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sequence store: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, chain.ScopeLockKey(scope)); err != nil {
		return 0, fmt.Errorf("sequence store: acquire scope lock: %w", err)
	}

	allocated, err := allocatedIDs(ctx, tx, scope)
	if err != nil {
		return 0, err
	}

	next := lowestUnallocated(allocated)
	if next > event.MaxSequenceID {
		return 0, fmt.Errorf("sequence store: next for %s: %w", scope.String(), sequencer.ErrScopeExhausted)
	}

	if err := insertAllocation(ctx, tx, scope, next); err != nil {
		return 0, fmt.Errorf("sequence store: reserve %d: %w", next, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sequence store: commit: %w", err)
	}

	return next, nil
}

// Reserve claims sequenceID for scope.
func (s *SequenceStore) Reserve(ctx context.Context, scope event.Scope, sequenceID int) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sequence store: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, chain.ScopeLockKey(scope)); err != nil {
		return fmt.Errorf("sequence store: acquire scope lock: %w", err)
	}

	if err := insertAllocation(ctx, tx, scope, sequenceID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sequence store: commit: %w", err)
	}

	return nil
}

// Release frees sequenceID for scope, making it available for reuse.
func (s *SequenceStore) Release(ctx context.Context, scope event.Scope, sequenceID int) error {
	const q = `DELETE FROM sequence_allocations WHERE device = $1 AND log_period = $2 AND sequence_id = $3`

	result, err := s.conn.ExecContext(ctx, q, scope.Device, scope.LogPeriod, sequenceID)
	if err != nil {
		return fmt.Errorf("sequence store: release %d: %w", sequenceID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sequence store: release %d: %w", sequenceID, err)
	}
	if n == 0 {
		return fmt.Errorf("sequence store: release %d: %w", sequenceID, sequencer.ErrSequenceNotAllocated)
	}

	return nil
}

// Allocated returns every currently allocated sequence id for scope,
// ascending.
func (s *SequenceStore) Allocated(ctx context.Context, scope event.Scope) ([]int, error) {
	return allocatedIDs(ctx, s.conn, scope)
}

func allocatedIDs(ctx context.Context, q querier, scope event.Scope) ([]int, error) {
	const query = `
		SELECT sequence_id FROM sequence_allocations
		WHERE device = $1 AND log_period = $2
		ORDER BY sequence_id ASC`

	rows, err := q.QueryContext(ctx, query, scope.Device, scope.LogPeriod)
	if err != nil {
		return nil, fmt.Errorf("sequence store: allocated: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sequence store: scan: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sequence store: allocated: %w", err)
	}

	return ids, nil
}

func insertAllocation(ctx context.Context, q querier, scope event.Scope, sequenceID int) error {
	const query = `
		INSERT INTO sequence_allocations (device, log_period, sequence_id, allocated_at)
		VALUES ($1, $2, $3, now())`

	_, err := q.ExecContext(ctx, query, scope.Device, scope.LogPeriod, sequenceID)
	if isUniqueViolation(err) {
		return sequencer.ErrSequenceTaken
	}

	return err
}

// lowestUnallocated returns the smallest sequence id in
// [event.MinSequenceID, event.MaxSequenceID+1] absent from the sorted,
// ascending ids slice.
func lowestUnallocated(ids []int) int {
	want := event.MinSequenceID

	for _, id := range ids {
		if id == want {
			want++
		} else if id > want {
			break
		}
	}

	return want
}
