package auth

import (
	"context"
	"fmt"
	"slices"
)

// Permission represents an authorized action
type Permission string

const (
	PermTenantRead       Permission = "tenant:read"
	PermTenantManage     Permission = "tenant:manage"
	PermCampaignsManage  Permission = "campaigns:manage"
	PermDonationsList    Permission = "donations:list"
	PermDonorProfileRead Permission = "donor_profile:read"
	PermDonate           Permission = "donations:create"
)

// CapabilityPermissions maps each capability bit to the permissions it grants.
var CapabilityPermissions = map[Capability][]Permission{
	CapabilityOrgAdmin: {
		PermTenantRead,
		PermTenantManage,
		PermCampaignsManage,
		PermDonationsList,
	},
	CapabilityDonor: {
		PermDonorProfileRead,
		PermDonate,
	},
}

// HasPermission reports whether any role in capability grants perm.
func HasPermission(capability Capability, perm Permission) bool {
	for role, perms := range CapabilityPermissions {
		if capability.Has(role) && slices.Contains(perms, perm) {
			return true
		}
	}
	return false
}

// CheckPermission checks the caller in ctx. Returns ErrUnauthenticated
// without a caller and ErrForbidden when the permission isn't granted.
func CheckPermission(ctx context.Context, perm Permission) error {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	if !HasPermission(caller.Capability(), perm) {
		return fmt.Errorf("%w: %s requires %s", ErrForbidden, caller.Capability(), perm)
	}

	return nil
}
