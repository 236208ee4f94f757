package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/eld-core/ingestor/internal/vault"
)

var _ vault.Repository = (*VaultStore)(nil)

// VaultStore implements vault.Repository against the vault_submissions
// table. The payload column is write-once: a second Insert for the
// same ID is rejected by the primary key constraint and surfaced as
// vault.ErrImmutablePayload.
type VaultStore struct {
	conn *Connection
}

// NewVaultStore constructs a VaultStore backed by conn.
func NewVaultStore(conn *Connection) *VaultStore {
	return &VaultStore{conn: conn}
}

// Insert persists a single submission with StatusReceived.
func (s *VaultStore) Insert(ctx context.Context, sub *vault.Submission) error {
	const q = `
		INSERT INTO vault_submissions (id, device, payload, event_count, status, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.conn.ExecContext(ctx, q, sub.ID, sub.Device, sub.Payload, sub.EventCount, sub.Status, sub.ReceivedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("vault store: insert %s: %w", sub.ID, vault.ErrImmutablePayload)
	}
	if err != nil {
		return fmt.Errorf("vault store: insert %s: %w", sub.ID, err)
	}

	return nil
}

// InsertBatch persists every submission in a single multi-row insert,
// so a batch submission vaults atomically.
func (s *VaultStore) InsertBatch(ctx context.Context, submissions []*vault.Submission) error {
	if len(submissions) == 0 {
		return nil
	}

	var (
		placeholders []string
		args         []interface{}
	)

	for i, sub := range submissions {
		base := i * 6
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, sub.ID, sub.Device, sub.Payload, sub.EventCount, sub.Status, sub.ReceivedAt)
	}

	q := fmt.Sprintf(
		"INSERT INTO vault_submissions (id, device, payload, event_count, status, received_at) VALUES %s",
		strings.Join(placeholders, ", "),
	)

	if _, err := s.conn.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("vault store: insert batch: %w", vault.ErrImmutablePayload)
		}

		return fmt.Errorf("vault store: insert batch: %w", err)
	}

	return nil
}

// UpdateStatus transitions every submission in ids to status in a
// single statement. The payload column is never referenced.
func (s *VaultStore) UpdateStatus(ctx context.Context, ids []string, status vault.Status) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, status)

	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	q := fmt.Sprintf(
		"UPDATE vault_submissions SET status = $1 WHERE id IN (%s)",
		strings.Join(placeholders, ", "),
	)

	if _, err := s.conn.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("vault store: update status: %w", err)
	}

	return nil
}
