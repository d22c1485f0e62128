package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Profile is the server's view of the signed in caller.
type Profile struct {
	IdentityID     string `json:"identityId"`
	Email          string `json:"email,omitempty"`
	Capability     string `json:"capability"`
	Route          string `json:"route"`
	TenantID       string `json:"tenantId,omitempty"`
	TenantRole     string `json:"tenantRole,omitempty"`
	DonorAccountID string `json:"donorAccountId,omitempty"`
}

type WhoamiCmd struct {
	JSON bool `help:"Print the result as JSON."`
}

func (cmd *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	store, err := globals.credentialStore()
	if err != nil {
		return err
	}

	client := newAPIClient(globals).withTokenSource(ctx, store.TokenSource(globals.Server))

	var profile Profile
	if err := client.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &profile); err != nil {
		return err
	}

	out := globals.out()
	if cmd.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	}

	fmt.Fprintf(out, "Identity:   %s\n", profile.IdentityID)
	if profile.Email != "" {
		fmt.Fprintf(out, "Email:      %s\n", profile.Email)
	}
	fmt.Fprintf(out, "Capability: %s\n", profile.Capability)
	fmt.Fprintf(out, "Route:      %s\n", profile.Route)
	if profile.TenantID != "" {
		fmt.Fprintf(out, "Tenant:     %s (%s)\n", profile.TenantID, profile.TenantRole)
	}
	if profile.DonorAccountID != "" {
		fmt.Fprintf(out, "Donor:      %s\n", profile.DonorAccountID)
	}

	return nil
}
