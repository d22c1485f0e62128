package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
)

// CredentialStore implements store.CredentialStore using PostgreSQL.
// Emails are stored lower-cased so the unique constraint is case-insensitive.
type CredentialStore struct {
	pool *pgxpool.Pool
}

// NewCredentialStore creates a new PostgreSQL-backed credential store.
func NewCredentialStore(pool *pgxpool.Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

// Create stores a new credential.
func (s *CredentialStore) Create(ctx context.Context, cred *models.Credential) error {
	query := `
		INSERT INTO identities (identity_id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		cred.IdentityID,
		strings.ToLower(cred.Email),
		cred.PasswordHash,
		cred.CreatedAt,
	)
	if err != nil {
		err = mapPostgresError(err)
		if errors.Is(err, store.ErrEmailTaken) {
			return err
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}

	log.Debug().
		Str("identity_id", cred.IdentityID).
		Msg("Created identity")

	return nil
}

// Get retrieves a credential by identity ID.
func (s *CredentialStore) Get(ctx context.Context, identityID string) (*models.Credential, error) {
	return s.getOne(ctx, `SELECT identity_id, email, password_hash, created_at FROM identities WHERE identity_id = $1`, identityID)
}

// GetByEmail retrieves a credential by email.
func (s *CredentialStore) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	return s.getOne(ctx, `SELECT identity_id, email, password_hash, created_at FROM identities WHERE email = $1`, strings.ToLower(email))
}

func (s *CredentialStore) getOne(ctx context.Context, query string, arg string) (*models.Credential, error) {
	var c models.Credential
	err := s.pool.QueryRow(ctx, query, arg).Scan(&c.IdentityID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", mapPostgresError(err))
	}

	return &c, nil
}

// Delete removes a credential.
func (s *CredentialStore) Delete(ctx context.Context, identityID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM identities WHERE identity_id = $1`, identityID)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrCredentialNotFound
	}

	log.Debug().
		Str("identity_id", identityID).
		Msg("Deleted identity")

	return nil
}
