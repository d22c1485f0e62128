package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/donations/internal/models"
)

// Sentinel errors for tenant store operations
var (
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrSlugTaken is returned by Create when the slug uniqueness constraint rejects the insert.
	ErrSlugTaken = errors.New("tenant slug already taken")
	// ErrUnavailable marks transient storage failures (connection loss, shutdown, resource limits).
	// Callers may retry the whole operation.
	ErrUnavailable = errors.New("store unavailable")
)

// TenantStore defines the interface for tenant (organization) storage operations.
type TenantStore interface {
	// Exists reports whether a tenant with exactly this slug exists.
	// It has no side effects.
	Exists(ctx context.Context, slug string) (bool, error)

	// Create inserts a new tenant.
	// Returns ErrSlugTaken if the slug is already used by another tenant.
	Create(ctx context.Context, tenant *models.Tenant) error

	// Get retrieves a tenant by ID.
	// Returns ErrTenantNotFound if the tenant doesn't exist.
	Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)

	// GetBySlug retrieves a tenant by its slug.
	// Returns ErrTenantNotFound if the tenant doesn't exist.
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)

	// Update updates the mutable fields of an existing tenant.
	// Returns ErrTenantNotFound if the tenant doesn't exist.
	Update(ctx context.Context, tenant *models.Tenant) error

	// Delete deletes a tenant by ID, cascading to its memberships.
	// Returns ErrTenantNotFound if the tenant doesn't exist.
	Delete(ctx context.Context, tenantID uuid.UUID) error
}
