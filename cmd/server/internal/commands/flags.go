package commands

import (
	"errors"
	"time"

	"github.com/wolfeidau/donations/internal/identity"
	"github.com/wolfeidau/donations/internal/onboarding"
	"github.com/wolfeidau/donations/internal/server/ratelimit"
	postgresstore "github.com/wolfeidau/donations/internal/store/postgres"
)

type PostgresFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns         int32         `help:"maximum number of connections in pool" default:"20" env:"DONATIONS_POSTGRES_MAX_CONNS"`
	MinConns         int32         `help:"minimum number of connections in pool" default:"2" env:"DONATIONS_POSTGRES_MIN_CONNS"`
	MaxConnLifetime  time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime  time.Duration `help:"maximum connection idle time" default:"30m"`
	StatementTimeout time.Duration `help:"server side statement timeout, 0 disables it" default:"5s" env:"DONATIONS_POSTGRES_STATEMENT_TIMEOUT"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"DONATIONS_POSTGRES_AUTO_MIGRATE"`
}

func (f *PostgresFlags) Validate() error {
	if f.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	if f.MinConns > f.MaxConns {
		return errors.New("--postgres-min-conns must not exceed --postgres-max-conns")
	}
	return nil
}

func (f *PostgresFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:       f.ConnString,
		MaxConns:         f.MaxConns,
		MinConns:         f.MinConns,
		MaxConnLifetime:  f.MaxConnLifetime,
		MaxConnIdleTime:  f.MaxConnIdleTime,
		StatementTimeout: f.StatementTimeout,
	}
}

// IdentityFlags selects the identity provider. The local provider keeps
// credentials next to the tenants and issues its own tokens; the remote one
// talks to a hosted provider.
type IdentityFlags struct {
	Provider string `help:"identity provider (local or remote)" default:"local" enum:"local,remote" env:"DONATIONS_IDENTITY_PROVIDER"`

	// Local provider
	Issuer     string        `help:"issuer of locally issued tokens, usually the public base URL" default:"http://localhost:8080" env:"DONATIONS_IDENTITY_ISSUER"`
	SigningKey string        `help:"PEM encoded P-256 private key for token signing; empty generates an ephemeral key" type:"path" env:"DONATIONS_IDENTITY_SIGNING_KEY"`
	TokenTTL   time.Duration `help:"lifetime of issued access tokens" default:"1h" env:"DONATIONS_IDENTITY_TOKEN_TTL"`

	// Remote provider
	RemoteURL          string        `help:"hosted provider auth API root" env:"DONATIONS_IDENTITY_REMOTE_URL"`
	RemoteAPIKey       string        `help:"apikey header sent to the hosted provider" env:"DONATIONS_IDENTITY_REMOTE_API_KEY"`
	RemoteServiceKey   string        `help:"static admin API bearer token" env:"DONATIONS_IDENTITY_REMOTE_SERVICE_KEY"`
	RemoteClientID     string        `help:"OAuth2 client ID for the admin API" env:"DONATIONS_IDENTITY_REMOTE_CLIENT_ID"`
	RemoteClientSecret string        `help:"OAuth2 client secret for the admin API" env:"DONATIONS_IDENTITY_REMOTE_CLIENT_SECRET"`
	RemoteTokenURL     string        `help:"OAuth2 token URL for the admin API" env:"DONATIONS_IDENTITY_REMOTE_TOKEN_URL"`
	RemoteIssuer       string        `help:"expected issuer of provider tokens" env:"DONATIONS_IDENTITY_REMOTE_ISSUER"`
	RemoteAudience     string        `help:"expected audience of provider tokens" env:"DONATIONS_IDENTITY_REMOTE_AUDIENCE"`
	RemoteJWKSCacheDir string        `help:"directory caching the provider key set across restarts" env:"DONATIONS_IDENTITY_REMOTE_JWKS_CACHE_DIR"`
	RemoteMaxTries     uint          `help:"attempts per provider call on transient failures" default:"3"`
	RemoteTimeout      time.Duration `help:"timeout of a single provider request" default:"10s"`
}

func (f *IdentityFlags) Validate() error {
	if f.Provider == "local" {
		if f.Issuer == "" {
			return errors.New("token issuer is required (--identity-issuer or DONATIONS_IDENTITY_ISSUER)")
		}
		return nil
	}

	if f.RemoteURL == "" {
		return errors.New("remote identity provider URL is required (--identity-remote-url or DONATIONS_IDENTITY_REMOTE_URL)")
	}
	if f.RemoteServiceKey == "" && f.RemoteClientID == "" {
		return errors.New("remote identity provider needs --identity-remote-service-key or OAuth2 client credentials")
	}
	return nil
}

func (f *IdentityFlags) localConfig() identity.LocalConfig {
	return identity.LocalConfig{
		Issuer:   f.Issuer,
		TokenTTL: f.TokenTTL,
	}
}

func (f *IdentityFlags) remoteConfig() identity.RemoteConfig {
	return identity.RemoteConfig{
		BaseURL:      f.RemoteURL,
		APIKey:       f.RemoteAPIKey,
		ServiceKey:   f.RemoteServiceKey,
		ClientID:     f.RemoteClientID,
		ClientSecret: f.RemoteClientSecret,
		TokenURL:     f.RemoteTokenURL,
		Issuer:       f.RemoteIssuer,
		Audience:     f.RemoteAudience,
		JWKSCacheDir: f.RemoteJWKSCacheDir,
		MaxTries:     f.RemoteMaxTries,
		Timeout:      f.RemoteTimeout,
	}
}

type AssetsFlags struct {
	Store   string `help:"asset store (filesystem or memory)" default:"filesystem" enum:"filesystem,memory" env:"DONATIONS_ASSETS_STORE"`
	Dir     string `help:"directory holding uploaded assets" default:"./data/assets" type:"path" env:"DONATIONS_ASSETS_DIR"`
	BaseURL string `help:"public URL prefix of served assets" default:"http://localhost:8080/assets" env:"DONATIONS_ASSETS_BASE_URL"`
}

func (f *AssetsFlags) Validate() error {
	if f.BaseURL == "" {
		return errors.New("asset base URL is required (--assets-base-url or DONATIONS_ASSETS_BASE_URL)")
	}
	if f.Store == "filesystem" && f.Dir == "" {
		return errors.New("asset directory is required (--assets-dir or DONATIONS_ASSETS_DIR)")
	}
	return nil
}

type OnboardingFlags struct {
	StepTimeout     time.Duration `help:"timeout of each registration step" default:"10s" env:"DONATIONS_ONBOARDING_STEP_TIMEOUT"`
	Country         string        `help:"ISO 3166-1 country of new tenants" default:"AR" env:"DONATIONS_ONBOARDING_COUNTRY"`
	Currency        string        `help:"ISO 4217 currency of new tenants" default:"ARS" env:"DONATIONS_ONBOARDING_CURRENCY"`
	MaxSlugAttempts int           `help:"candidates probed before giving up on a slug" default:"100"`
}

func (f *OnboardingFlags) Validate() error {
	cfg := f.config()
	cfg.ApplyDefaults()
	return cfg.Validate()
}

func (f *OnboardingFlags) config() onboarding.Config {
	return onboarding.Config{
		StepTimeout:     f.StepTimeout,
		Country:         f.Country,
		Currency:        f.Currency,
		MaxSlugAttempts: f.MaxSlugAttempts,
	}
}

type RateLimitFlags struct {
	RegisterRequests int           `help:"registrations allowed per client per window" default:"10" env:"DONATIONS_RATELIMIT_REGISTER_REQUESTS"`
	RegisterWindow   time.Duration `help:"registration rate limit window" default:"1h"`
	RegisterBurst    int           `help:"registration burst per client" default:"3"`
	TokenRequests    int           `help:"sign ins allowed per client per window" default:"30" env:"DONATIONS_RATELIMIT_TOKEN_REQUESTS"`
	TokenWindow      time.Duration `help:"sign in rate limit window" default:"1m"`
	TokenBurst       int           `help:"sign in burst per client" default:"10"`
}

func (f *RateLimitFlags) Validate() error {
	register, token := f.configs()
	return errors.Join(register.Validate(), token.Validate())
}

func (f *RateLimitFlags) configs() (register, token ratelimit.Config) {
	register = ratelimit.Config{Requests: f.RegisterRequests, Window: f.RegisterWindow, Burst: f.RegisterBurst}
	token = ratelimit.Config{Requests: f.TokenRequests, Window: f.TokenWindow, Burst: f.TokenBurst}
	return register, token
}
