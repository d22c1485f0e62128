package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/donations/internal/assets"
	"github.com/wolfeidau/donations/internal/auth"
	"github.com/wolfeidau/donations/internal/identity"
	"github.com/wolfeidau/donations/internal/onboarding"
	"github.com/wolfeidau/donations/internal/server"
	"github.com/wolfeidau/donations/internal/server/ratelimit"
	"github.com/wolfeidau/donations/internal/store"
	memorystore "github.com/wolfeidau/donations/internal/store/memory"
	postgresstore "github.com/wolfeidau/donations/internal/store/postgres"
	"github.com/wolfeidau/donations/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"DONATIONS_LISTEN"`
	Cert   string `help:"path to TLS cert file, serves plain HTTP when empty" default:"" env:"DONATIONS_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"DONATIONS_TLS_KEY"`

	// Browser access
	CORSOrigins []string `help:"origins allowed to call the API and post the registration form" default:"http://localhost:5173" env:"DONATIONS_CORS_ORIGINS"`
	TrustProxy  bool     `help:"trust X-Forwarded-For and X-Real-IP for client addresses" default:"false" env:"DONATIONS_TRUST_PROXY"`

	Tracing bool `help:"enable tracing and metrics export over OTLP" default:"false" env:"DONATIONS_TRACING"`

	// Store configuration
	StoreType  string          `help:"store type (memory or postgres)" default:"memory" env:"DONATIONS_STORE_TYPE" enum:"memory,postgres"`
	Postgres   PostgresFlags   `embed:"" prefix:"postgres-"`
	Identity   IdentityFlags   `embed:"" prefix:"identity-"`
	Assets     AssetsFlags     `embed:"" prefix:"assets-"`
	Onboarding OnboardingFlags `embed:"" prefix:"onboarding-"`
	RateLimit  RateLimitFlags  `embed:"" prefix:"ratelimit-"`
}

func (c *ServerCmd) validate() error {
	var errs []error
	if c.StoreType == "postgres" {
		errs = append(errs, c.Postgres.Validate())
	}
	if (c.Cert == "") != (c.Key == "") {
		errs = append(errs, errors.New("--cert and --key must be set together"))
	}
	errs = append(errs,
		c.Identity.Validate(),
		c.Assets.Validate(),
		c.Onboarding.Validate(),
		c.RateLimit.Validate(),
	)
	return errors.Join(errs...)
}

// stores are the storage backends selected by --store-type.
type stores struct {
	tenants     store.TenantStore
	memberships store.MembershipStore
	donors      store.DonorStore
	credentials store.CredentialStore
	health      server.HealthChecker
}

func (c *ServerCmd) Run(ctx context.Context, globals *Globals) error {
	log := setupLogging(globals)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "donations-api", Version: globals.Version})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shutdown telemetry")
				}
			}()
		}
	}

	st, closeStores, err := c.openStores(ctx, log)
	if err != nil {
		return err
	}
	defer closeStores()

	provider, jwks, err := c.identityProvider(ctx, st.credentials, log)
	if err != nil {
		return err
	}

	assetStore, assetHandler, closeAssets, err := c.assetStore(log)
	if err != nil {
		return err
	}
	defer closeAssets()

	svc, err := onboarding.NewService(provider, st.tenants, st.memberships, assetStore, c.Onboarding.config())
	if err != nil {
		return err
	}

	registerCfg, tokenCfg := c.RateLimit.configs()
	registerLimiter, err := ratelimit.NewLimiter(registerCfg)
	if err != nil {
		return err
	}
	defer registerLimiter.Close()

	tokenLimiter, err := ratelimit.NewLimiter(tokenCfg)
	if err != nil {
		return err
	}
	defer tokenLimiter.Close()

	srv, err := server.New(server.Deps{
		Onboarding:      svc,
		Authenticator:   provider,
		Resolver:        auth.NewResolver(provider, st.memberships, st.donors),
		Tenants:         st.tenants,
		Donors:          st.donors,
		RegisterLimiter: registerLimiter,
		TokenLimiter:    tokenLimiter,
		Assets:          assetHandler,
		JWKS:            jwks,
		Health:          st.health,
	}, server.Config{
		CORSOrigins: c.CORSOrigins,
		TrustProxy:  c.TrustProxy,
		Tracing:     c.Tracing,
	}, log)
	if err != nil {
		return err
	}

	httpServer := configureHTTPServer(c.Listen, srv.Handler())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", c.Listen).Bool("tls", c.Cert != "").Msg("Starting HTTP server")

		var err error
		if c.Cert != "" {
			err = httpServer.ListenAndServeTLS(c.Cert, c.Key)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (c *ServerCmd) openStores(ctx context.Context, log zerolog.Logger) (*stores, func(), error) {
	if c.StoreType != "postgres" {
		tenants := memorystore.NewTenantStore()
		log.Info().Msg("Using in-memory stores")
		return &stores{
			tenants:     tenants,
			memberships: memorystore.NewMembershipStore(tenants),
			donors:      memorystore.NewDonorStore(),
			credentials: memorystore.NewCredentialStore(),
		}, func() {}, nil
	}

	pool, err := postgresstore.NewPool(ctx, c.Postgres.poolConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if c.Postgres.AutoMigrate {
		if err := postgresstore.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	log.Info().Msg("Using PostgreSQL stores")

	return &stores{
		tenants:     postgresstore.NewTenantStore(pool),
		memberships: postgresstore.NewMembershipStore(pool),
		donors:      postgresstore.NewDonorStore(pool),
		credentials: postgresstore.NewCredentialStore(pool),
		health:      pool,
	}, pool.Close, nil
}

// identityProvider returns the configured provider and, for the local
// provider, the handler publishing its signing key.
func (c *ServerCmd) identityProvider(ctx context.Context, credentials store.CredentialStore, log zerolog.Logger) (identity.Provider, http.Handler, error) {
	if c.Identity.Provider == "remote" {
		remote, err := identity.NewRemote(ctx, c.Identity.remoteConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize remote identity provider: %w", err)
		}
		log.Info().Str("url", c.Identity.RemoteURL).Msg("Using remote identity provider")
		return remote, nil, nil
	}

	keys, err := identity.LoadKeyManager(c.Identity.SigningKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	if c.Identity.SigningKey == "" {
		log.Warn().Msg("No signing key configured, issued tokens will not survive a restart")
	}

	local, err := identity.NewLocal(credentials, keys, c.Identity.localConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize local identity provider: %w", err)
	}

	log.Info().Str("issuer", c.Identity.Issuer).Str("kid", keys.Kid()).Msg("Using local identity provider")

	return local, identity.JWKSHandler(keys), nil
}

func (c *ServerCmd) assetStore(log zerolog.Logger) (assets.Store, http.Handler, func(), error) {
	if c.Assets.Store == "memory" {
		mem := assets.NewMemoryStore(c.Assets.BaseURL)
		log.Info().Msg("Using in-memory asset store")
		return mem, mem.Handler(), func() {}, nil
	}

	fs, err := assets.NewFileStore(c.Assets.Dir, c.Assets.BaseURL)
	if err != nil {
		return nil, nil, nil, err
	}

	log.Info().Str("dir", c.Assets.Dir).Str("base_url", c.Assets.BaseURL).Msg("Using filesystem asset store")

	return fs, fs.Handler(), func() {
		if err := fs.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close asset store")
		}
	}, nil
}
