package storage

import (
	"context"
	"fmt"

	"github.com/eld-core/ingestor/internal/validator"
)

var _ validator.Resolver = (*XrefStore)(nil)

// xrefTables maps each reference kind the validator checks to the
// lookup table that backs it; every table is keyed by its id column.
var xrefTables = map[string]string{
	"carrier": "carriers",
	"driver":  "drivers",
	"vehicle": "vehicles",
	"device":  "devices",
}

// XrefStore implements validator.Resolver against the reference
// tables (carriers, drivers, vehicles, devices) seeded from the
// upstream registry feed.
type XrefStore struct {
	conn *Connection
}

// NewXrefStore constructs an XrefStore backed by conn.
func NewXrefStore(conn *Connection) *XrefStore {
	return &XrefStore{conn: conn}
}

// BulkExists returns, for every id in ids, whether it is present in
// the reference table for kind. One query per kind per batch,
// regardless of batch size.
func (s *XrefStore) BulkExists(ctx context.Context, kind string, ids []string) (map[string]bool, error) {
	table, ok := xrefTables[kind]
	if !ok {
		return nil, fmt.Errorf("xref store: unknown reference kind %q", kind)
	}

	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	q := fmt.Sprintf(`SELECT id FROM %s WHERE id = ANY($1)`, table)

	rows, err := s.conn.QueryContext(ctx, q, pqStringArray(ids))
	if err != nil {
		return nil, fmt.Errorf("xref store: bulk exists %s: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("xref store: bulk exists %s: scan: %w", kind, err)
		}
		found[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("xref store: bulk exists %s: %w", kind, err)
	}

	return found, nil
}
