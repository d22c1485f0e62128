// Package identity is the boundary to the identity provider. The onboarding
// saga creates and deletes identities through Gateway, and the capability
// resolver verifies access tokens through it. Two adapters are provided:
// Local keeps credentials in the application database and issues ES256 tokens
// itself, Remote talks to a hosted provider's admin REST API.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors returned by gateway adapters.
var (
	// ErrEmailTaken means the provider already has an identity for the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidToken covers malformed, expired and badly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidCredentials is returned by SignIn for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRejected is a terminal refusal by the provider, such as a weak password.
	ErrRejected = errors.New("rejected by identity provider")
	// ErrUnavailable marks transient provider failures (network, 5xx, timeouts).
	ErrUnavailable = errors.New("identity provider unavailable")
)

// Identity is an account held by the identity provider.
type Identity struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Claims are the verified contents of an access token. The subject is the identity ID.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IdentityID returns the token subject.
func (c *Claims) IdentityID() string {
	return c.Subject
}

// Token is an issued access token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Gateway creates, deletes and verifies identities.
type Gateway interface {
	// CreateIdentity registers a new identity. Returns ErrEmailTaken if the email is in use.
	CreateIdentity(ctx context.Context, email, password string) (*Identity, error)

	// DeleteIdentity removes an identity. Deleting a missing identity succeeds.
	DeleteIdentity(ctx context.Context, identityID string) error

	// Verify checks an access token and returns its claims.
	// Returns ErrInvalidToken if the token can't be trusted.
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Authenticator exchanges a password for an access token.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*Token, error)
}

// Provider is a gateway that also signs identities in.
type Provider interface {
	Gateway
	Authenticator
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
