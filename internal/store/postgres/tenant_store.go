package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
)

const tenantColumns = `tenant_id, name, email, slug, status, verified,
	COALESCE(website, ''), COALESCE(logo_url, ''), country, currency, created_at, updated_at`

// TenantStore implements store.TenantStore using PostgreSQL.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore creates a new PostgreSQL-backed tenant store.
func NewTenantStore(pool *pgxpool.Pool) *TenantStore {
	return &TenantStore{pool: pool}
}

// Exists reports whether a tenant uses the slug.
func (s *TenantStore) Exists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tenants WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", mapPostgresError(err))
	}

	return exists, nil
}

// Create inserts a new tenant.
func (s *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (
			tenant_id, name, email, slug, status, verified, website, logo_url,
			country, currency, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12
		)
	`

	_, err := s.pool.Exec(ctx, query,
		tenant.TenantID,
		tenant.Name,
		tenant.Email,
		tenant.Slug,
		string(tenant.Status),
		tenant.Verified,
		tenant.Website,
		tenant.LogoURL,
		tenant.Country,
		tenant.Currency,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		err = mapPostgresError(err)
		if errors.Is(err, store.ErrSlugTaken) {
			return err
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	log.Debug().
		Str("tenant_id", tenant.TenantID.String()).
		Str("slug", tenant.Slug).
		Msg("Created tenant")

	return nil
}

// Get retrieves a tenant by ID.
func (s *TenantStore) Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	return s.getOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE tenant_id = $1`, tenantID)
}

// GetBySlug retrieves a tenant by slug.
func (s *TenantStore) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return s.getOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
}

func (s *TenantStore) getOne(ctx context.Context, query string, arg any) (*models.Tenant, error) {
	var (
		tenant models.Tenant
		status string
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&tenant.TenantID,
		&tenant.Name,
		&tenant.Email,
		&tenant.Slug,
		&status,
		&tenant.Verified,
		&tenant.Website,
		&tenant.LogoURL,
		&tenant.Country,
		&tenant.Currency,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", mapPostgresError(err))
	}

	tenant.Status = models.TenantStatus(status)
	return &tenant, nil
}

// Update updates the mutable fields of a tenant. Slug and created_at are never changed.
func (s *TenantStore) Update(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now()

	query := `
		UPDATE tenants SET
			name = $2,
			email = $3,
			status = $4,
			verified = $5,
			website = NULLIF($6, ''),
			logo_url = NULLIF($7, ''),
			updated_at = $8
		WHERE tenant_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		tenant.TenantID,
		tenant.Name,
		tenant.Email,
		string(tenant.Status),
		tenant.Verified,
		tenant.Website,
		tenant.LogoURL,
		tenant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrTenantNotFound
	}

	log.Debug().
		Str("tenant_id", tenant.TenantID.String()).
		Msg("Updated tenant")

	return nil
}

// Delete deletes a tenant. Memberships cascade.
func (s *TenantStore) Delete(ctx context.Context, tenantID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM tenants WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrTenantNotFound
	}

	log.Debug().
		Str("tenant_id", tenantID.String()).
		Msg("Deleted tenant")

	return nil
}
