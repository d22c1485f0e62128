// Package auth resolves verified callers into capabilities and gates HTTP
// handlers on them.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/donations/internal/identity"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
	"github.com/wolfeidau/donations/internal/telemetry"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNoDonorProfile  = errors.New("no donor profile")
	ErrForbidden       = errors.New("forbidden")
)

// TokenVerifier verifies access tokens. identity.Gateway satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*identity.Claims, error)
}

// Resolver classifies callers by looking up their membership and donor
// account. The two lookups are independent and run concurrently.
type Resolver struct {
	verifier    TokenVerifier
	memberships store.MembershipStore
	donors      store.DonorStore
}

// NewResolver creates a capability resolver.
func NewResolver(verifier TokenVerifier, memberships store.MembershipStore, donors store.DonorStore) *Resolver {
	return &Resolver{
		verifier:    verifier,
		memberships: memberships,
		donors:      donors,
	}
}

// Resolve verifies token and returns the caller. Returns ErrUnauthenticated
// if the token can't be verified. Lookup failures other than not found are
// logged and the relation is treated as absent.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Caller, error) {
	claims, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	caller := &Caller{
		IdentityID: claims.IdentityID(),
		Email:      claims.Email,
	}

	var (
		membership *models.Membership
		donor      *models.DonorAccount
		g          errgroup.Group
	)

	g.Go(func() error {
		membership = lookup(ctx, "membership", store.ErrMembershipNotFound, func() (*models.Membership, error) {
			return r.memberships.GetByIdentity(ctx, caller.IdentityID)
		})
		return nil
	})

	g.Go(func() error {
		donor = lookup(ctx, "donor", store.ErrDonorNotFound, func() (*models.DonorAccount, error) {
			return r.donors.GetByIdentity(ctx, caller.IdentityID)
		})
		return nil
	})

	_ = g.Wait()

	if membership != nil {
		caller.TenantID = &membership.TenantID
		caller.TenantRole = membership.Role
	}
	if donor != nil {
		caller.DonorAccountID = &donor.DonorID
	}

	telemetry.GetMetrics().CapabilityResolutionsTotal.Add(ctx, 1,
		metric.WithAttributes(telemetry.AttrCapability.String(caller.Capability().String())))

	return caller, nil
}

func lookup[T any](ctx context.Context, relation string, notFound error, fn func() (*T, error)) *T {
	v, err := fn()
	if err == nil {
		return v
	}
	if !errors.Is(err, notFound) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("relation", relation).Msg("Capability lookup failed, treating as absent")
		telemetry.GetMetrics().LookupErrorsTotal.Add(ctx, 1)
	}
	return nil
}
