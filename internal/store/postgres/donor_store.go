package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
)

// DonorStore implements store.DonorStore using PostgreSQL.
type DonorStore struct {
	pool *pgxpool.Pool
}

// NewDonorStore creates a new PostgreSQL-backed donor store.
func NewDonorStore(pool *pgxpool.Pool) *DonorStore {
	return &DonorStore{pool: pool}
}

// Create creates a donor account.
func (s *DonorStore) Create(ctx context.Context, donor *models.DonorAccount) error {
	query := `
		INSERT INTO donor_accounts (donor_id, identity_id, display_name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		donor.DonorID,
		donor.IdentityID,
		donor.DisplayName,
		donor.Email,
		donor.CreatedAt,
		donor.UpdatedAt,
	)
	if err != nil {
		err = mapPostgresError(err)
		if errors.Is(err, store.ErrDonorAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to create donor account: %w", err)
	}

	log.Debug().
		Str("donor_id", donor.DonorID.String()).
		Str("identity_id", donor.IdentityID).
		Msg("Created donor account")

	return nil
}

// GetByIdentity returns the donor account of an identity.
func (s *DonorStore) GetByIdentity(ctx context.Context, identityID string) (*models.DonorAccount, error) {
	query := `
		SELECT donor_id, identity_id, display_name, email, created_at, updated_at
		FROM donor_accounts
		WHERE identity_id = $1
	`

	var d models.DonorAccount
	err := s.pool.QueryRow(ctx, query, identityID).Scan(
		&d.DonorID,
		&d.IdentityID,
		&d.DisplayName,
		&d.Email,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrDonorNotFound
		}
		return nil, fmt.Errorf("failed to get donor account: %w", mapPostgresError(err))
	}

	return &d, nil
}
