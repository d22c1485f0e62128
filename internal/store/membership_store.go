package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/donations/internal/models"
)

// Sentinel errors for membership store operations
var (
	ErrMembershipNotFound      = errors.New("membership not found")
	ErrMembershipAlreadyExists = errors.New("membership already exists")
)

// MembershipStore links identities to tenants.
type MembershipStore interface {
	// Create links an identity to a tenant.
	// Returns ErrMembershipAlreadyExists if the link exists, ErrTenantNotFound if the tenant doesn't.
	Create(ctx context.Context, membership *models.Membership) error

	// Delete removes the link between an identity and a tenant.
	// Returns ErrMembershipNotFound if there is no such link.
	Delete(ctx context.Context, tenantID uuid.UUID, identityID string) error

	// GetByIdentity returns the membership held by an identity.
	// Returns ErrMembershipNotFound if the identity is not a member of any tenant.
	GetByIdentity(ctx context.Context, identityID string) (*models.Membership, error)
}
