package auth

import (
	"github.com/google/uuid"
	"github.com/wolfeidau/donations/internal/models"
)

// Capability is the set of roles a caller holds. Each relation contributes
// one bit, so Both is OrgAdmin|Donor.
type Capability uint8

const (
	CapabilityNone     Capability = 0
	CapabilityOrgAdmin Capability = 1 << 0
	CapabilityDonor    Capability = 1 << 1
	CapabilityBoth                = CapabilityOrgAdmin | CapabilityDonor
)

// Has reports whether every bit of want is set.
func (c Capability) Has(want Capability) bool {
	return want != CapabilityNone && c&want == want
}

func (c Capability) String() string {
	switch c {
	case CapabilityNone:
		return "none"
	case CapabilityOrgAdmin:
		return "org_admin"
	case CapabilityDonor:
		return "donor"
	case CapabilityBoth:
		return "both"
	default:
		return "unknown"
	}
}

// MarshalText encodes the capability by name.
func (c Capability) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Route is where a client should send a signed in caller.
type Route string

const (
	RouteDashboard          Route = "dashboard"
	RouteDonorPortal        Route = "donor_portal"
	RouteCreateDonorProfile Route = "create_donor_profile"
)

// Route returns the landing route for the capability. Administrators land on
// the dashboard even when they also donate.
func (c Capability) Route() Route {
	switch {
	case c.Has(CapabilityOrgAdmin):
		return RouteDashboard
	case c.Has(CapabilityDonor):
		return RouteDonorPortal
	default:
		return RouteCreateDonorProfile
	}
}

// Caller is a verified identity with the relations it holds.
type Caller struct {
	IdentityID string
	Email      string

	TenantID   *uuid.UUID  // set when the caller administers a tenant
	TenantRole models.Role // empty unless TenantID is set

	DonorAccountID *uuid.UUID // set when the caller has a donor account
}

// Capability derives the capability from both relations.
func (c *Caller) Capability() Capability {
	if c == nil {
		return CapabilityNone
	}

	capability := CapabilityNone
	if c.TenantID != nil {
		capability |= CapabilityOrgAdmin
	}
	if c.DonorAccountID != nil {
		capability |= CapabilityDonor
	}
	return capability
}
