package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// RemoteConfig configures the hosted identity provider adapter. The provider
// exposes a GoTrue style API: POST /admin/users, DELETE /admin/users/{id} and
// POST /token?grant_type=password.
type RemoteConfig struct {
	// BaseURL is the provider's auth API root, e.g. https://id.example.com/auth/v1
	BaseURL string

	// APIKey is sent as the apikey header on every request when set.
	APIKey string

	// ServiceKey is a static bearer token for the admin API.
	ServiceKey string

	// ClientID, ClientSecret and TokenURL select the OAuth2 client credentials
	// grant for the admin API instead of ServiceKey.
	ClientID     string
	ClientSecret string
	TokenURL     string

	// Issuer and Audience are checked on verified tokens when set.
	Issuer   string
	Audience string

	// JWKSURL defaults to BaseURL + "/.well-known/jwks.json".
	JWKSURL string

	// JWKSCacheDir persists fetched key sets across restarts. Empty keeps
	// the HTTP cache in memory.
	JWKSCacheDir string

	// MaxTries bounds attempts of one call on retryable failures.
	// Default: 3
	MaxTries uint

	// Timeout bounds a single HTTP attempt.
	// Default: 10s
	Timeout time.Duration

	// HTTPClient is the base client. Default: http.DefaultClient.
	HTTPClient *http.Client
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *RemoteConfig) ApplyDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.JWKSURL == "" && c.BaseURL != "" {
		c.JWKSURL = c.BaseURL + "/.well-known/jwks.json"
	}
	if c.MaxTries == 0 {
		c.MaxTries = 3
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Validate checks that the configuration is valid.
func (c *RemoteConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if c.ServiceKey == "" && c.ClientID == "" {
		return fmt.Errorf("either a service key or client credentials are required")
	}
	if c.ClientID != "" && (c.ClientSecret == "" || c.TokenURL == "") {
		return fmt.Errorf("client credentials need a client secret and token url")
	}
	return nil
}

// Remote adapts a hosted identity provider.
type Remote struct {
	cfg    RemoteConfig
	admin  *http.Client // authenticated for the admin API
	public *http.Client
	keys   *KeySet
}

// NewRemote creates a Remote adapter.
func NewRemote(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid remote identity config: %w", err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)

	var admin *http.Client
	if cfg.ClientID != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		admin = cc.Client(ctx)
	} else {
		admin = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.ServiceKey,
			TokenType:   "Bearer",
		}))
	}

	return &Remote{
		cfg:    cfg,
		admin:  admin,
		public: cfg.HTTPClient,
		keys:   NewKeySet(cfg.JWKSURL, NewCachingClient(cfg.JWKSCacheDir)),
	}, nil
}

type remoteUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// apiError is the error body returned by the provider. Older versions only send msg.
type apiError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
	Message   string `json:"message"`
	Error     string `json:"error"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// CreateIdentity creates a confirmed user through the admin API. Create is not
// idempotent, so only attempts the provider cannot have acted on are retried:
// dial failures, 429 and 503. Anything else comes back as ErrUnavailable for
// the caller to resubmit.
func (r *Remote) CreateIdentity(ctx context.Context, email, password string) (*Identity, error) {
	body := map[string]any{
		"email":         strings.TrimSpace(email),
		"password":      password,
		"email_confirm": true,
	}

	return r.retry(ctx, "create_identity", func() (*Identity, error) {
		var user remoteUser
		status, apiErr, err := r.do(ctx, r.admin, http.MethodPost, "/admin/users", body, &user)
		if err != nil {
			var perm *backoff.PermanentError
			if errors.As(err, &perm) || isDialError(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}

		switch {
		case status == http.StatusOK || status == http.StatusCreated:
			if user.ID == "" {
				return nil, backoff.Permanent(fmt.Errorf("identity provider returned no user id"))
			}
			return &Identity{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt}, nil
		case isEmailTaken(status, apiErr):
			return nil, backoff.Permanent(ErrEmailTaken)
		case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
			return nil, classifyStatus(status, apiErr)
		default:
			return nil, backoff.Permanent(unwrapPermanent(classifyStatus(status, apiErr)))
		}
	})
}

// DeleteIdentity deletes a user through the admin API in a single attempt.
// A 404 counts as deleted.
func (r *Remote) DeleteIdentity(ctx context.Context, identityID string) error {
	status, apiErr, err := r.do(ctx, r.admin, http.MethodDelete, "/admin/users/"+url.PathEscape(identityID), nil, nil)
	if err != nil {
		return unwrapPermanent(err)
	}

	switch status {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return unwrapPermanent(classifyStatus(status, apiErr))
	}
}

// SignIn exchanges a password for a provider issued token.
func (r *Remote) SignIn(ctx context.Context, email, password string) (*Token, error) {
	body := map[string]string{"email": strings.TrimSpace(email), "password": password}

	var token Token
	_, err := r.retry(ctx, "sign_in", func() (*Identity, error) {
		status, apiErr, err := r.do(ctx, r.public, http.MethodPost, "/token?grant_type=password", body, &token)
		if err != nil {
			return nil, err
		}

		switch {
		case status == http.StatusOK:
			return nil, nil
		case status == http.StatusBadRequest || status == http.StatusUnauthorized:
			return nil, backoff.Permanent(ErrInvalidCredentials)
		default:
			return nil, classifyStatus(status, apiErr)
		}
	})
	if err != nil {
		return nil, err
	}

	return &token, nil
}

// Verify checks a provider issued token against the provider's JWKS.
func (r *Remote) Verify(ctx context.Context, token string) (*Claims, error) {
	return verifyToken(ctx, token, r.cfg.Issuer, r.cfg.Audience, r.keys.Key)
}

func (r *Remote) retry(ctx context.Context, op string, fn func() (*Identity, error)) (*Identity, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	return backoff.Retry(ctx, fn,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.cfg.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Str("op", op).Dur("retry_in", next).Msg("Identity provider call failed, retrying")
		}),
	)
}

// do performs one request. Transport failures come back as ErrUnavailable;
// any HTTP response is returned with its decoded error body.
func (r *Remote) do(ctx context.Context, client *http.Client, method, path string, in, out any) (int, apiError, error) {
	var apiErr apiError

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, apiErr, backoff.Permanent(fmt.Errorf("failed to encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, r.cfg.BaseURL+path, body)
	if err != nil {
		return 0, apiErr, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.cfg.APIKey != "" {
		req.Header.Set("apikey", r.cfg.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, apiErr, backoff.Permanent(fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err()))
		}
		return 0, apiErr, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, apiErr, fmt.Errorf("%w: failed to read response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return 0, apiErr, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
		}
		return resp.StatusCode, apiErr, nil
	}

	if len(data) > 0 {
		_ = json.Unmarshal(data, &apiErr)
	}

	return resp.StatusCode, apiErr, nil
}

// isDialError reports whether a request failed before reaching the provider.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func isEmailTaken(status int, apiErr apiError) bool {
	if status != http.StatusConflict && status != http.StatusUnprocessableEntity {
		return false
	}
	switch apiErr.ErrorCode {
	case "email_exists", "user_already_exists":
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.text()), "already")
}

// classifyStatus turns an unexpected status into a retryable or permanent error.
func classifyStatus(status int, apiErr apiError) error {
	err := fmt.Errorf("identity provider returned %d: %s", status, apiErr.text())
	if status == http.StatusTooManyRequests || status >= 500 {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return backoff.Permanent(fmt.Errorf("%w: %w", ErrRejected, err))
}

var (
	_ Provider = (*Remote)(nil)
	_ Provider = (*Local)(nil)
)

