package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCaller_Capability(t *testing.T) {
	tenantID := uuid.New()
	donorID := uuid.New()

	tests := []struct {
		name     string
		caller   *Caller
		expected Capability
		route    Route
	}{
		{name: "nil caller", caller: nil, expected: CapabilityNone, route: RouteCreateDonorProfile},
		{name: "neither", caller: &Caller{IdentityID: "a"}, expected: CapabilityNone, route: RouteCreateDonorProfile},
		{name: "admin only", caller: &Caller{IdentityID: "a", TenantID: &tenantID}, expected: CapabilityOrgAdmin, route: RouteDashboard},
		{name: "donor only", caller: &Caller{IdentityID: "a", DonorAccountID: &donorID}, expected: CapabilityDonor, route: RouteDonorPortal},
		{name: "both", caller: &Caller{IdentityID: "a", TenantID: &tenantID, DonorAccountID: &donorID}, expected: CapabilityBoth, route: RouteDashboard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.caller.Capability())
			require.Equal(t, tt.route, tt.caller.Capability().Route())
		})
	}
}

func TestCapability_Has(t *testing.T) {
	require.True(t, CapabilityBoth.Has(CapabilityOrgAdmin))
	require.True(t, CapabilityBoth.Has(CapabilityDonor))
	require.True(t, CapabilityBoth.Has(CapabilityBoth))
	require.False(t, CapabilityOrgAdmin.Has(CapabilityDonor))
	require.False(t, CapabilityDonor.Has(CapabilityBoth))
	require.False(t, CapabilityBoth.Has(CapabilityNone), "none is never a requirement that is met")
}

func TestCapability_String(t *testing.T) {
	require.Equal(t, "none", CapabilityNone.String())
	require.Equal(t, "org_admin", CapabilityOrgAdmin.String())
	require.Equal(t, "donor", CapabilityDonor.String())
	require.Equal(t, "both", CapabilityBoth.String())

	text, err := CapabilityBoth.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "both", string(text))
}
