package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/eld-core/ingestor/internal/authstub"
)

var _ authstub.Store = (*CredentialStore)(nil)

// ErrCredentialExists is returned by Add when a credential with the
// same lookup hash is already provisioned.
var ErrCredentialExists = errors.New("credential store: credential already exists")

// CredentialStore implements authstub.Store against the
// actor_credentials table. Secrets are indexed by a SHA-256 lookup
// hash for O(1) retrieval and verified with bcrypt, keeping the fast
// index separate from the security boundary.
type CredentialStore struct {
	conn *Connection
}

// NewCredentialStore constructs a CredentialStore backed by conn.
func NewCredentialStore(conn *Connection) *CredentialStore {
	return &CredentialStore{conn: conn}
}

// Add provisions a new credential with cred.SecretHash stored as given.
// Add has no plaintext secret, so the lookup hash it stores is that of
// the empty string and FindBySecret does not find the credential by its
// real secret; AddWithSecret stores the lookup hash of a real secret.
func (s *CredentialStore) Add(ctx context.Context, cred *authstub.Credential) error {
	return s.AddWithSecret(ctx, cred, "")
}

// AddWithSecret provisions cred, hashing plaintextSecret with bcrypt
// and deriving its lookup hash. Exposed separately from Add (which
// satisfies authstub.Store) because provisioning is an operator
// action, not something the request path performs.
func (s *CredentialStore) AddWithSecret(ctx context.Context, cred *authstub.Credential, plaintextSecret string) error {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}

	if plaintextSecret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(plaintextSecret), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("credential store: hash secret: %w", err)
		}
		cred.SecretHash = string(hash)
	}

	lookupHash := authstub.LookupHash(plaintextSecret)

	const q = `
		INSERT INTO actor_credentials (
			id, lookup_hash, secret_hash, carrier_id, name, permissions,
			created_at, expires_at, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.conn.ExecContext(ctx, q,
		cred.ID, lookupHash, cred.SecretHash, cred.CarrierID, cred.Name,
		pq.Array(cred.Permissions), cred.CreatedAt, cred.ExpiresAt, cred.Active,
	)
	if isUniqueViolation(err) {
		return ErrCredentialExists
	}
	if err != nil {
		return fmt.Errorf("credential store: add: %w", err)
	}

	return nil
}

// FindBySecret looks up a credential by its plaintext secret: first
// by the O(1) lookup hash, then confirms ownership with a bcrypt
// comparison of the stored hash so a lookup-hash collision alone can
// never authenticate.
func (s *CredentialStore) FindBySecret(ctx context.Context, secret string) (*authstub.Credential, bool) {
	const q = `
		SELECT id, secret_hash, carrier_id, name, permissions, created_at, expires_at, active
		FROM actor_credentials WHERE lookup_hash = $1`

	var (
		cred        authstub.Credential
		permissions []string
		expiresAt   sql.NullTime
	)

	err := s.conn.QueryRowContext(ctx, q, authstub.LookupHash(secret)).Scan(
		&cred.ID, &cred.SecretHash, &cred.CarrierID, &cred.Name, pq.Array(&permissions),
		&cred.CreatedAt, &expiresAt, &cred.Active,
	)
	if err != nil {
		return nil, false
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)) != nil {
		return nil, false
	}

	cred.Permissions = permissions
	if expiresAt.Valid {
		cred.ExpiresAt = &expiresAt.Time
	}

	return &cred, true
}

// Revoke deactivates a credential without deleting its audit trail.
func (s *CredentialStore) Revoke(ctx context.Context, id string) error {
	const q = `UPDATE actor_credentials SET active = false WHERE id = $1`

	result, err := s.conn.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("credential store: revoke %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("credential store: revoke %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("credential store: revoke %s: not found", id)
	}

	return nil
}

// ListByCarrier returns every credential provisioned for carrierID.
func (s *CredentialStore) ListByCarrier(ctx context.Context, carrierID string) ([]*authstub.Credential, error) {
	const q = `
		SELECT id, secret_hash, carrier_id, name, permissions, created_at, expires_at, active
		FROM actor_credentials WHERE carrier_id = $1`

	rows, err := s.conn.QueryContext(ctx, q, carrierID)
	if err != nil {
		return nil, fmt.Errorf("credential store: list by carrier: %w", err)
	}
	defer rows.Close()

	var creds []*authstub.Credential
	for rows.Next() {
		var (
			cred        authstub.Credential
			permissions []string
			expiresAt   sql.NullTime
		)

		if err := rows.Scan(
			&cred.ID, &cred.SecretHash, &cred.CarrierID, &cred.Name, pq.Array(&permissions),
			&cred.CreatedAt, &expiresAt, &cred.Active,
		); err != nil {
			return nil, fmt.Errorf("credential store: list by carrier: scan: %w", err)
		}

		cred.Permissions = permissions
		if expiresAt.Valid {
			cred.ExpiresAt = &expiresAt.Time
		}
		creds = append(creds, &cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("credential store: list by carrier: %w", err)
	}

	return creds, nil
}
