package models

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus is the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

// Tenant represents an organization account that owns its own campaigns and donations.
// The slug is globally unique and is used in public donation page URLs.
type Tenant struct {
	TenantID uuid.UUID // UUIDv7
	Name     string
	Email    string
	Slug     string
	Status   TenantStatus
	Verified bool

	Website string // Optional
	LogoURL string // Optional, set once the logo upload succeeds

	// Jurisdiction defaults applied at registration
	Country  string // ISO 3166-1 alpha-2
	Currency string // ISO 4217

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasLogo returns true if the tenant has an uploaded logo.
func (t *Tenant) HasLogo() bool {
	return t.LogoURL != ""
}
