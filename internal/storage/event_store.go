package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eld-core/ingestor/internal/chain"
	"github.com/eld-core/ingestor/internal/event"
)

// Compile-time interface assertion, checked at the package boundary
// rather than only where the value is constructed.
var (
	_ chain.Repository = (*EventStore)(nil)
)

// EventStore implements chain.Repository against the append-only
// events table. Scope serialization is enforced with a
// transaction-scoped PostgreSQL advisory lock keyed on
// chain.ScopeLockKey.
type EventStore struct {
	conn *Connection
}

// NewEventStore constructs an EventStore backed by conn.
func NewEventStore(conn *Connection) *EventStore {
	return &EventStore{conn: conn}
}

// LastChainHash returns the chain hash of the most recently appended
// active event in scope, ordered by sequence id.
func (s *EventStore) LastChainHash(ctx context.Context, scope event.Scope) (string, bool, error) {
	const q = `
		SELECT chain_hash FROM events
		WHERE device = $1 AND log_period = $2 AND record_status = $3
		ORDER BY sequence_id DESC
		LIMIT 1`

	var hash string
	err := s.q(ctx).QueryRowContext(ctx, q, scope.Device, scope.LogPeriod, event.StatusActive).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("event store: last chain hash: %w", err)
	}

	return hash, true, nil
}

// InsertEvent persists e as the next link in its scope's chain. The
// unique constraint on (device, log_period, sequence_id) surfaces a
// concurrent double-append as chain.ErrChainBroken, even though the
// advisory lock in WithScopeLock should already have prevented it.
func (s *EventStore) InsertEvent(ctx context.Context, e *event.Event) error {
	const q = `
		INSERT INTO events (
			id, carrier, driver, vehicle, device, log_period, sequence_id,
			event_type, event_sub_type, record_status, record_origin,
			event_date, event_time, tz_offset, timestamp,
			accumulated_vehicle_miles, elapsed_engine_hours,
			latitude, longitude, location_description,
			malfunction_indicator, diagnostic_indicator,
			content_hash, chain_hash, previous_chain_hash,
			version, superseded_event_id, original_event_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, now()
		)`

	version := e.Version
	if version == 0 {
		version = 1
	}

	_, err := s.q(ctx).ExecContext(ctx, q,
		e.ID, e.Carrier, e.Driver, e.Vehicle, e.Device, e.LogPeriod, e.SequenceID,
		e.EventType, e.EventSubType, e.RecordStatus, e.RecordOrigin,
		e.EventDate, e.EventTime, e.TZOffset, e.Timestamp,
		e.AccumulatedVehicleMiles, e.ElapsedEngineHours,
		e.Latitude, e.Longitude, e.LocationDescription,
		e.MalfunctionIndicator, e.DiagnosticIndicator,
		e.ContentHash, e.ChainHash, nullableString(e.PreviousChainHash),
		version, nullableString(e.SupersededEventID), nullableString(e.OriginalEventID),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("event store: insert %s: %w", e.ID, chain.ErrChainBroken)
	}
	if err != nil {
		return fmt.Errorf("event store: insert %s: %w", e.ID, err)
	}

	return nil
}

// WithScopeLock holds a PostgreSQL transaction-scoped advisory lock
// keyed on chain.ScopeLockKey(scope) for the duration of fn, so two
// concurrent appenders to the same scope serialize at the database
// layer rather than racing on the read-head.
func (s *EventStore) WithScopeLock(ctx context.Context, scope event.Scope, fn func(ctx context.Context) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("event store: begin scope lock tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, chain.ScopeLockKey(scope)); err != nil {
		return fmt.Errorf("event store: acquire scope lock: %w", err)
	}

	if err := fn(txContext(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("event store: commit scope lock tx: %w", err)
	}

	return nil
}

// EventsInScope implements chain.Reader: it returns every event in
// scope, whatever its record status, ascending by sequence id, for the
// chain verifier's replay.
func (s *EventStore) EventsInScope(ctx context.Context, scope event.Scope) ([]*event.Event, error) {
	const q = `
		SELECT id, sequence_id, event_type, event_sub_type, device, log_period,
			event_date, event_time, content_hash, chain_hash, previous_chain_hash
		FROM events
		WHERE device = $1 AND log_period = $2
		ORDER BY sequence_id ASC`

	rows, err := s.q(ctx).QueryContext(ctx, q, scope.Device, scope.LogPeriod)
	if err != nil {
		return nil, fmt.Errorf("event store: events in scope: %w", err)
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		var e event.Event
		var prev sql.NullString

		if err := rows.Scan(
			&e.ID, &e.SequenceID, &e.EventType, &e.EventSubType, &e.Device, &e.LogPeriod,
			&e.EventDate, &e.EventTime, &e.ContentHash, &e.ChainHash, &prev,
		); err != nil {
			return nil, fmt.Errorf("event store: scan event: %w", err)
		}

		e.PreviousChainHash = prev.String
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event store: events in scope: %w", err)
	}

	return events, nil
}

// ListEvents returns every active event in scope, ascending by sequence
// id, with the full set of fields the HTTP API exposes for GET
// /events/{device}/{logDate}. EventsInScope above stays narrow because
// the chain verifier only needs the hash-chain fields.
func (s *EventStore) ListEvents(ctx context.Context, scope event.Scope) ([]*event.Event, error) {
	const q = `
		SELECT id, carrier, driver, vehicle, device, log_period, sequence_id,
			event_type, event_sub_type, record_status, record_origin,
			event_date, event_time, tz_offset, timestamp,
			accumulated_vehicle_miles, elapsed_engine_hours,
			latitude, longitude, location_description,
			malfunction_indicator, diagnostic_indicator,
			content_hash, chain_hash, previous_chain_hash,
			version, superseded_event_id, original_event_id, created_at
		FROM events
		WHERE device = $1 AND log_period = $2 AND record_status = $3
		ORDER BY sequence_id ASC`

	rows, err := s.q(ctx).QueryContext(ctx, q, scope.Device, scope.LogPeriod, event.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("event store: list events: %w", err)
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		var e event.Event
		var prev, superseded, original sql.NullString

		if err := rows.Scan(
			&e.ID, &e.Carrier, &e.Driver, &e.Vehicle, &e.Device, &e.LogPeriod, &e.SequenceID,
			&e.EventType, &e.EventSubType, &e.RecordStatus, &e.RecordOrigin,
			&e.EventDate, &e.EventTime, &e.TZOffset, &e.Timestamp,
			&e.AccumulatedVehicleMiles, &e.ElapsedEngineHours,
			&e.Latitude, &e.Longitude, &e.LocationDescription,
			&e.MalfunctionIndicator, &e.DiagnosticIndicator,
			&e.ContentHash, &e.ChainHash, &prev,
			&e.Version, &superseded, &original, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("event store: scan event: %w", err)
		}

		e.PreviousChainHash = prev.String
		e.SupersededEventID = superseded.String
		e.OriginalEventID = original.String
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event store: list events: %w", err)
	}

	return events, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}

	return s
}
