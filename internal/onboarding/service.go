// Package onboarding registers new tenants. A registration creates an identity,
// allocates a slug, creates the tenant and links the identity as its admin,
// rolling the earlier steps back if a later one fails. Uploading the logo is
// best effort and never undoes a registration.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/donations/internal/assets"
	"github.com/wolfeidau/donations/internal/identity"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/slug"
	"github.com/wolfeidau/donations/internal/store"
	"github.com/wolfeidau/donations/internal/telemetry"
	"go.opentelemetry.io/otel/metric"
)

// Step names.
const (
	StepCreateIdentity = "create_identity"
	StepAllocateSlug   = "allocate_slug"
	StepCreateTenant   = "create_tenant"
	StepLinkMembership = "link_membership"
	StepUploadLogo     = "upload_logo"
)

// Config holds onboarding settings.
type Config struct {
	// StepTimeout bounds each saga step and compensation.
	// Default: 10s
	StepTimeout time.Duration

	// Country and Currency are the jurisdiction defaults of new tenants.
	// Default: AR / ARS
	Country  string
	Currency string

	// MaxSlugAttempts bounds slug probing.
	// Default: 100
	MaxSlugAttempts int
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.StepTimeout == 0 {
		c.StepTimeout = DefaultStepTimeout
	}
	if c.Country == "" {
		c.Country = "AR"
	}
	if c.Currency == "" {
		c.Currency = "ARS"
	}
	if c.MaxSlugAttempts == 0 {
		c.MaxSlugAttempts = slug.DefaultMaxAttempts
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Country) != 2 {
		return fmt.Errorf("country must be an ISO 3166-1 alpha-2 code")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("currency must be an ISO 4217 code")
	}
	if c.StepTimeout < 0 {
		return fmt.Errorf("step timeout must not be negative")
	}
	return nil
}

// Result is a completed registration. LogoURL is empty when no logo was sent
// or the upload failed.
type Result struct {
	TenantID uuid.UUID
	Name     string
	Slug     string
	LogoURL  string
}

// Service runs tenant registrations.
type Service struct {
	gateway     identity.Gateway
	tenants     store.TenantStore
	memberships store.MembershipStore
	assets      assets.Store
	allocator   *slug.Allocator
	cfg         Config
}

// NewService creates an onboarding service.
func NewService(gateway identity.Gateway, tenants store.TenantStore, memberships store.MembershipStore, assetStore assets.Store, cfg Config) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid onboarding config: %w", err)
	}

	return &Service{
		gateway:     gateway,
		tenants:     tenants,
		memberships: memberships,
		assets:      assetStore,
		allocator:   slug.NewAllocator(tenants, cfg.MaxSlugAttempts),
		cfg:         cfg,
	}, nil
}

// registration is the state threaded through the saga steps.
type registration struct {
	input    *validated
	identity *identity.Identity
	slugBase string
	slug     string
	suffix   int
	tenant   *models.Tenant
}

// Onboard registers a tenant. Errors are *Error values.
func (s *Service) Onboard(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	m := telemetry.GetMetrics()
	log := zerolog.Ctx(ctx)

	input, err := validate(req)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	reg := &registration{input: input, slugBase: slug.Derive(input.name)}
	saga := &Saga{Steps: s.steps(reg), StepTimeout: s.cfg.StepTimeout}

	report, err := saga.Run(ctx)
	m.OnboardingDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.recordFailure(ctx, err)
		log.Warn().
			Err(err).
			Strs("compensated", report.Compensated).
			Int("compensation_errors", len(report.CompensationErrors)).
			Msg("Tenant registration failed")
		return nil, err
	}

	m.OnboardingTotal.Add(ctx, 1, metric.WithAttributes(telemetry.AttrOutcome.String("success")))

	log.Info().
		Str("tenant_id", reg.tenant.TenantID.String()).
		Str("slug", reg.tenant.Slug).
		Bool("logo", reg.tenant.HasLogo()).
		Msg("Tenant registered")

	return &Result{
		TenantID: reg.tenant.TenantID,
		Name:     reg.tenant.Name,
		Slug:     reg.tenant.Slug,
		LogoURL:  reg.tenant.LogoURL,
	}, nil
}

func (s *Service) recordFailure(ctx context.Context, err error) {
	m := telemetry.GetMetrics()
	m.OnboardingTotal.Add(ctx, 1, metric.WithAttributes(telemetry.AttrOutcome.String("failure")))

	if oe, ok := AsError(err); ok {
		m.OnboardingFailuresTotal.Add(ctx, 1, metric.WithAttributes(
			telemetry.AttrKind.String(string(oe.Kind)),
			telemetry.AttrStep.String(oe.Step),
		))
	}
}

// steps returns the saga for one registration. The logo step is only present
// when a logo was submitted.
func (s *Service) steps(reg *registration) []Step {
	steps := []Step{
		{
			Name:       StepCreateIdentity,
			Action:     func(ctx context.Context) error { return s.createIdentity(ctx, reg) },
			Compensate: func(ctx context.Context) error { return s.gateway.DeleteIdentity(ctx, reg.identity.ID) },
		},
		{
			Name:   StepAllocateSlug,
			Action: func(ctx context.Context) error { return s.allocateSlug(ctx, reg, 0, StepAllocateSlug) },
		},
		{
			Name:       StepCreateTenant,
			Action:     func(ctx context.Context) error { return s.createTenant(ctx, reg) },
			Compensate: func(ctx context.Context) error { return s.deleteTenant(ctx, reg) },
		},
		{
			Name:       StepLinkMembership,
			Action:     func(ctx context.Context) error { return s.linkMembership(ctx, reg) },
			Compensate: func(ctx context.Context) error { return s.unlinkMembership(ctx, reg) },
		},
	}

	if len(reg.input.logo) > 0 {
		steps = append(steps, Step{
			Name:       StepUploadLogo,
			Action:     func(ctx context.Context) error { return s.uploadLogo(ctx, reg) },
			BestEffort: true,
		})
	}

	return steps
}

func (s *Service) createIdentity(ctx context.Context, reg *registration) error {
	ident, err := s.gateway.CreateIdentity(ctx, reg.input.email, reg.input.password)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return newError(KindEmailTaken, StepCreateIdentity, err)
		}
		return newError(KindIdentityProviderError, StepCreateIdentity, err)
	}

	reg.identity = ident
	return nil
}

func (s *Service) allocateSlug(ctx context.Context, reg *registration, startSuffix int, step string) error {
	candidate, suffix, err := s.allocator.Allocate(ctx, reg.slugBase, startSuffix)
	if err != nil {
		if errors.Is(err, slug.ErrExhausted) {
			telemetry.GetMetrics().SlugProbesTotal.Add(ctx, int64(s.cfg.MaxSlugAttempts))
			return newError(KindSlugExhausted, step, err)
		}
		return newError(KindTenantCreateFailed, step, err)
	}

	telemetry.GetMetrics().SlugProbesTotal.Add(ctx, int64(suffix-startSuffix+1))
	reg.slug, reg.suffix = candidate, suffix
	return nil
}

// createTenant inserts the tenant, re-allocating once if a concurrent
// registration took the slug between probe and insert.
func (s *Service) createTenant(ctx context.Context, reg *registration) error {
	tenantID, err := uuid.NewV7()
	if err != nil {
		return newError(KindTenantCreateFailed, StepCreateTenant, err)
	}

	now := time.Now()
	tenant := &models.Tenant{
		TenantID:  tenantID,
		Name:      reg.input.name,
		Email:     reg.input.email,
		Slug:      reg.slug,
		Status:    models.TenantStatusActive,
		Verified:  false,
		Website:   reg.input.website,
		Country:   s.cfg.Country,
		Currency:  s.cfg.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.tenants.Create(ctx, tenant)
	if errors.Is(err, store.ErrSlugTaken) {
		telemetry.GetMetrics().SlugConflictsTotal.Add(ctx, 1)
		zerolog.Ctx(ctx).Info().Str("slug", reg.slug).Msg("Slug taken concurrently, reallocating")

		if err := s.allocateSlug(ctx, reg, reg.suffix+1, StepCreateTenant); err != nil {
			return err
		}

		tenant.Slug = reg.slug
		err = s.tenants.Create(ctx, tenant)
		if errors.Is(err, store.ErrSlugTaken) {
			telemetry.GetMetrics().SlugConflictsTotal.Add(ctx, 1)
			oe := newError(KindSlugConflict, StepCreateTenant, err)
			oe.Retryable = true
			return oe
		}
	}
	if err != nil {
		return newError(KindTenantCreateFailed, StepCreateTenant, err)
	}

	reg.tenant = tenant
	return nil
}

func (s *Service) deleteTenant(ctx context.Context, reg *registration) error {
	err := s.tenants.Delete(ctx, reg.tenant.TenantID)
	if errors.Is(err, store.ErrTenantNotFound) {
		return nil
	}
	return err
}

func (s *Service) linkMembership(ctx context.Context, reg *registration) error {
	err := s.memberships.Create(ctx, &models.Membership{
		TenantID:   reg.tenant.TenantID,
		IdentityID: reg.identity.ID,
		Role:       models.RoleAdmin,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		return newError(KindMembershipLinkFailed, StepLinkMembership, err)
	}
	return nil
}

func (s *Service) unlinkMembership(ctx context.Context, reg *registration) error {
	err := s.memberships.Delete(ctx, reg.tenant.TenantID, reg.identity.ID)
	if errors.Is(err, store.ErrMembershipNotFound) {
		return nil
	}
	return err
}

func (s *Service) uploadLogo(ctx context.Context, reg *registration) error {
	url, err := s.storeLogo(ctx, reg.tenant, reg.input.logo, reg.input.logoType)
	if err != nil {
		telemetry.GetMetrics().AssetUploadFailures.Add(ctx, 1)
		return newError(KindAssetUploadFailed, StepUploadLogo, err)
	}

	reg.tenant.LogoURL = url
	return nil
}

// storeLogo uploads a logo and points the tenant at it. The tenant is only
// modified once both the upload and the update succeed.
func (s *Service) storeLogo(ctx context.Context, tenant *models.Tenant, data []byte, contentType string) (string, error) {
	key := assets.LogoKey(tenant.TenantID, contentType, data)

	if err := s.assets.Upload(ctx, key, contentType, data); err != nil {
		return "", fmt.Errorf("failed to upload logo: %w", err)
	}

	url := s.assets.PublicURL(key)

	updated := *tenant
	updated.LogoURL = url
	if err := s.tenants.Update(ctx, &updated); err != nil {
		if delErr := s.assets.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			zerolog.Ctx(ctx).Warn().Err(delErr).Str("key", key).Msg("Failed to remove orphaned logo")
		}
		return "", fmt.Errorf("failed to record logo url: %w", err)
	}

	tenant.UpdatedAt = updated.UpdatedAt
	return url, nil
}

// removeLogo deletes a superseded logo. Failures are logged and ignored.
func (s *Service) removeLogo(ctx context.Context, url string) {
	key, ok := assets.KeyFromURL(s.assets, url)
	if !ok {
		zerolog.Ctx(ctx).Warn().Str("url", url).Msg("Previous logo is not a managed asset, leaving it")
		return
	}

	err := s.assets.Delete(context.WithoutCancel(ctx), key)
	if err != nil && !errors.Is(err, assets.ErrNotFound) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to remove previous logo")
	}
}

// ReplaceLogo validates and stores a new logo for an existing tenant. The
// previous logo object is removed once the tenant points at the new one.
func (s *Service) ReplaceLogo(ctx context.Context, tenantID uuid.UUID, data []byte) (*models.Tenant, error) {
	contentType, err := validateLogo(data)
	if err != nil {
		return nil, err
	}

	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	previous := tenant.LogoURL

	url, err := s.storeLogo(ctx, tenant, data, contentType)
	if err != nil {
		telemetry.GetMetrics().AssetUploadFailures.Add(ctx, 1)
		return nil, newError(KindAssetUploadFailed, StepUploadLogo, err)
	}

	tenant.LogoURL = url

	if previous != "" && previous != url {
		s.removeLogo(ctx, previous)
	}
	return tenant, nil
}
