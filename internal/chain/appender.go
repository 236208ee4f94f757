package chain

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/eld-core/ingestor/internal/event"
)

// ErrChainBroken is returned when an append would violate chain continuity,
// e.g. the scope's last chain hash changed between read and write.
var ErrChainBroken = errors.New("chain append: previous chain hash mismatch")

type (
	// Repository is the persistence boundary the Appender depends on.
	// Implemented by internal/storage against PostgreSQL.
	Repository interface {
		// LastChainHash returns the most recent chain hash recorded for scope,
		// and false if no event has been appended to that scope yet.
		LastChainHash(ctx context.Context, scope event.Scope) (hash string, exists bool, err error)

		// InsertEvent persists e as the next link in its scope's chain.
		// Implementations must enforce that e.PreviousChainHash still
		// matches the scope's current tail, returning ErrChainBroken on
		// a mismatch detected at commit time (e.g. via a unique
		// constraint on (scope, previous_chain_hash)).
		InsertEvent(ctx context.Context, e *event.Event) error

		// WithScopeLock serializes concurrent appends to the same scope,
		// e.g. via a PostgreSQL transaction-scoped advisory lock keyed on
		// ScopeLockKey(scope).
		WithScopeLock(ctx context.Context, scope event.Scope, fn func(ctx context.Context) error) error
	}

	// Appender computes and assigns content/chain hashes for an event and
	// persists it as the next link in its scope's chain.
	Appender struct {
		repo Repository
	}
)

// NewAppender constructs an Appender backed by repo.
func NewAppender(repo Repository) *Appender {
	return &Appender{repo: repo}
}

// ScopeLockKey derives a stable int64 advisory-lock key from a scope, for
// repositories that serialize appends with pg_advisory_xact_lock.
func ScopeLockKey(scope event.Scope) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(scope.String()))

	return int64(h.Sum64())
}

// Append assigns e's ContentHash, PreviousChainHash, and ChainHash relative
// to its scope's current tail, then persists it. The scope lock guarantees
// no other append can interleave between reading the tail and writing e.
func (a *Appender) Append(ctx context.Context, e *event.Event) error {
	scope := e.Scope()

	return a.repo.WithScopeLock(ctx, scope, func(ctx context.Context) error {
		previous, exists := GenesisHash(scope), false

		tail, found, err := a.repo.LastChainHash(ctx, scope)
		if err != nil {
			return fmt.Errorf("chain append: read tail: %w", err)
		}

		exists = found
		if exists {
			previous = tail
		}

		e.ContentHash = ContentHash(e)
		e.PreviousChainHash = previous
		e.ChainHash = ChainHash(e.ContentHash, previous)

		if err := a.repo.InsertEvent(ctx, e); err != nil {
			return fmt.Errorf("chain append: insert: %w", err)
		}

		return nil
	})
}
