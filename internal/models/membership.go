package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the role an identity holds within a tenant.
type Role string

const (
	RoleAdmin Role = "admin"
)

// Membership links an identity to a tenant. Its existence grants the identity
// administrative capability over the tenant.
type Membership struct {
	TenantID   uuid.UUID
	IdentityID string // Opaque id owned by the identity provider
	Role       Role
	CreatedAt  time.Time
}
