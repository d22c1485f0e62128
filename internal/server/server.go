// Package server exposes the registration and account API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"filippo.io/csrf"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/donations/internal/auth"
	httpmiddleware "github.com/wolfeidau/donations/internal/http"
	"github.com/wolfeidau/donations/internal/identity"
	"github.com/wolfeidau/donations/internal/logger"
	"github.com/wolfeidau/donations/internal/onboarding"
	"github.com/wolfeidau/donations/internal/server/ratelimit"
	"github.com/wolfeidau/donations/internal/store"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultMaxRegistrationBytes = 3 << 20

// Config holds HTTP API settings.
type Config struct {
	// CORSOrigins may call the API from browsers. They are also trusted to
	// post the registration form cross-origin.
	CORSOrigins []string

	// TrustProxy honours X-Forwarded-For and X-Real-IP for client addresses.
	TrustProxy bool

	// MaxRegistrationBytes bounds the multipart registration body.
	// Default: 3MiB
	MaxRegistrationBytes int64

	// Tracing wraps the API in OpenTelemetry HTTP instrumentation.
	Tracing bool
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.MaxRegistrationBytes == 0 {
		c.MaxRegistrationBytes = defaultMaxRegistrationBytes
	}
}

// HealthChecker reports whether a dependency is reachable. *pgxpool.Pool
// satisfies it.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the API. Assets, JWKS and Health are optional.
type Deps struct {
	Onboarding      *onboarding.Service
	Authenticator   identity.Authenticator
	Resolver        *auth.Resolver
	Tenants         store.TenantStore
	Donors          store.DonorStore
	RegisterLimiter *ratelimit.Limiter
	TokenLimiter    *ratelimit.Limiter

	Assets http.Handler
	JWKS   http.Handler
	Health HealthChecker
}

func (d *Deps) validate() error {
	switch {
	case d.Onboarding == nil:
		return errors.New("onboarding service is required")
	case d.Authenticator == nil:
		return errors.New("authenticator is required")
	case d.Resolver == nil:
		return errors.New("capability resolver is required")
	case d.Tenants == nil:
		return errors.New("tenant store is required")
	case d.Donors == nil:
		return errors.New("donor store is required")
	case d.RegisterLimiter == nil || d.TokenLimiter == nil:
		return errors.New("rate limiters are required")
	}
	return nil
}

// Server serves the API.
type Server struct {
	deps       Deps
	cfg        Config
	log        zerolog.Logger
	protection *csrf.Protection
}

// New creates the API server.
func New(deps Deps, cfg Config, log zerolog.Logger) (*Server, error) {
	cfg.ApplyDefaults()
	if err := deps.validate(); err != nil {
		return nil, err
	}

	protection := csrf.New()
	for _, origin := range cfg.CORSOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("invalid trusted origin %q: %w", origin, err)
		}
	}
	protection.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusForbidden, "cross-origin request rejected")
	}))

	return &Server{
		deps:       deps,
		cfg:        cfg,
		log:        log,
		protection: protection,
	}, nil
}

// Handler returns the API with its middleware stack applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	required := s.deps.Resolver.Required()

	mux.Handle("POST /auth/register-tenant",
		ratelimit.Middleware(s.deps.RegisterLimiter, "register")(
			s.protection.Handler(http.HandlerFunc(s.handleRegisterTenant))))
	mux.Handle("POST /auth/token",
		ratelimit.Middleware(s.deps.TokenLimiter, "token")(http.HandlerFunc(s.handleToken)))
	mux.Handle("GET /auth/me", required(http.HandlerFunc(s.handleMe)))

	mux.Handle("GET /tenants/current",
		required(auth.RequirePermission(auth.PermTenantRead)(http.HandlerFunc(s.handleCurrentTenant))))
	mux.Handle("PUT /tenants/current/logo",
		required(auth.RequirePermission(auth.PermTenantManage)(http.HandlerFunc(s.handleReplaceLogo))))

	mux.Handle("POST /donors", required(http.HandlerFunc(s.handleCreateDonor)))
	mux.Handle("GET /donors/me", s.deps.Resolver.DonorRequired()(http.HandlerFunc(s.handleDonorMe)))

	mux.Handle("GET /public/tenants/{slug}", s.deps.Resolver.Optional()(http.HandlerFunc(s.handlePublicTenant)))

	if s.deps.Assets != nil {
		mux.Handle("GET /assets/", http.StripPrefix("/assets", s.deps.Assets))
	}
	if s.deps.JWKS != nil {
		mux.Handle("GET /.well-known/jwks.json", s.deps.JWKS)
	}
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var h http.Handler = mux
	h = gzhttp.GzipHandler(h)
	h = s.withCORS(h)
	h = logger.RequestLogger(s.log)(h)
	h = httpmiddleware.ClientIPMiddleware(s.cfg.TrustProxy)(h)

	if s.cfg.Tracing {
		h = otelhttp.NewHandler(h, "donations-api",
			otelhttp.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/healthz"
			}),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}

	return h
}

func (s *Server) withCORS(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}).Handler(h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.deps.Health.Ping(ctx); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
