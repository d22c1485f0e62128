package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
)

// MembershipStore implements store.MembershipStore using PostgreSQL.
type MembershipStore struct {
	pool *pgxpool.Pool
}

// NewMembershipStore creates a new PostgreSQL-backed membership store.
func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

// Create links an identity to a tenant.
func (s *MembershipStore) Create(ctx context.Context, membership *models.Membership) error {
	query := `
		INSERT INTO memberships (tenant_id, identity_id, role, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		membership.TenantID,
		membership.IdentityID,
		string(membership.Role),
		membership.CreatedAt,
	)
	if err != nil {
		err = mapPostgresError(err)
		if errors.Is(err, store.ErrMembershipAlreadyExists) || errors.Is(err, store.ErrTenantNotFound) {
			return err
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}

	log.Debug().
		Str("tenant_id", membership.TenantID.String()).
		Str("identity_id", membership.IdentityID).
		Msg("Created membership")

	return nil
}

// Delete removes a membership.
func (s *MembershipStore) Delete(ctx context.Context, tenantID uuid.UUID, identityID string) error {
	result, err := s.pool.Exec(ctx,
		`DELETE FROM memberships WHERE tenant_id = $1 AND identity_id = $2`, tenantID, identityID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrMembershipNotFound
	}

	return nil
}

// GetByIdentity returns the earliest membership held by an identity.
func (s *MembershipStore) GetByIdentity(ctx context.Context, identityID string) (*models.Membership, error) {
	query := `
		SELECT tenant_id, identity_id, role, created_at
		FROM memberships
		WHERE identity_id = $1
		ORDER BY created_at
		LIMIT 1
	`

	var (
		m    models.Membership
		role string
	)
	err := s.pool.QueryRow(ctx, query, identityID).Scan(&m.TenantID, &m.IdentityID, &role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", mapPostgresError(err))
	}

	m.Role = models.Role(role)
	return &m, nil
}
