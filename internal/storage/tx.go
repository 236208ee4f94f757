package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// querier is satisfied by both *sql.DB and *sql.Tx, letting a
// repository method run against whichever one a WithScopeLock caller
// has put on the context.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type txKey struct{}

// txContext returns a context carrying tx, so repository methods
// invoked inside a WithScopeLock callback run on the same transaction
// that holds the advisory lock instead of opening a second connection.
func txContext(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// (s *EventStore) q returns the querier for ctx: the transaction
// stashed there by txContext, or the pooled connection otherwise.
func (s *EventStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}

	return s.conn
}

const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err is a PostgreSQL unique
// constraint violation (class 23, code 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// pqStringArray adapts a []string for a single ANY($1) query
// parameter using the driver's native array support, avoiding a
// dynamic IN (...) placeholder list.
func pqStringArray(ids []string) interface{} {
	return pq.Array(ids)
}
