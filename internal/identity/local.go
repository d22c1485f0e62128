package identity

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// LocalConfig configures the built-in identity provider.
type LocalConfig struct {
	// Issuer is the iss claim of issued tokens, usually the public base URL.
	Issuer string

	// TokenTTL is the lifetime of issued access tokens.
	// Default: 1h
	TokenTTL time.Duration

	// BcryptCost is the password hashing cost.
	// Default: bcrypt.DefaultCost
	BcryptCost int
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *LocalConfig) ApplyDefaults() {
	if c.TokenTTL == 0 {
		c.TokenTTL = time.Hour
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
}

// Validate checks that the configuration is valid.
func (c *LocalConfig) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

// Local is an identity provider backed by the credential store. It hashes
// passwords with bcrypt and issues ES256 tokens signed by its KeyManager.
type Local struct {
	credentials store.CredentialStore
	keys        *KeyManager
	cfg         LocalConfig

	// compared against when the email is unknown so both paths cost a bcrypt round
	dummyHash []byte
}

// NewLocal creates a Local provider.
func NewLocal(credentials store.CredentialStore, keys *KeyManager, cfg LocalConfig) (*Local, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid local identity config: %w", err)
	}

	dummyHash, err := bcrypt.GenerateFromPassword([]byte("not-a-password"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash placeholder password: %w", err)
	}

	return &Local{
		credentials: credentials,
		keys:        keys,
		cfg:         cfg,
		dummyHash:   dummyHash,
	}, nil
}

// Keys returns the signing key manager, used to publish the JWKS.
func (l *Local) Keys() *KeyManager {
	return l.keys
}

// CreateIdentity stores a new credential with a bcrypt password hash.
func (l *Local) CreateIdentity(ctx context.Context, email, password string) (*Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cfg.BcryptCost)
	if err != nil {
		// only fails for passwords over 72 bytes
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity id: %w", err)
	}

	cred := &models.Credential{
		IdentityID:   id.String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	if err := l.credentials.Create(ctx, cred); err != nil {
		return nil, mapStoreError(err)
	}

	return &Identity{ID: cred.IdentityID, Email: cred.Email, CreatedAt: cred.CreatedAt}, nil
}

// DeleteIdentity removes a credential. Missing credentials are not an error.
func (l *Local) DeleteIdentity(ctx context.Context, identityID string) error {
	err := l.credentials.Delete(ctx, identityID)
	if errors.Is(err, store.ErrCredentialNotFound) {
		log.Debug().Str("identity_id", identityID).Msg("Identity already deleted")
		return nil
	}
	if err != nil {
		return mapStoreError(err)
	}
	return nil
}

// Verify checks a token issued by this provider.
func (l *Local) Verify(ctx context.Context, token string) (*Claims, error) {
	return verifyToken(ctx, token, l.cfg.Issuer, "", func(_ context.Context, kid string) (*ecdsa.PublicKey, error) {
		if kid != l.keys.Kid() {
			return nil, fmt.Errorf("unknown kid: %s", kid)
		}
		return l.keys.PublicKey(), nil
	})
}

// SignIn checks the password and issues an access token.
func (l *Local) SignIn(ctx context.Context, email, password string) (*Token, error) {
	cred, err := l.credentials.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrCredentialNotFound) {
		_ = bcrypt.CompareHashAndPassword(l.dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, mapStoreError(err)
	}

	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return l.Issue(cred.IdentityID, cred.Email)
}

// Issue signs an access token for an identity.
func (l *Local) Issue(identityID, email string) (*Token, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    l.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(l.cfg.TokenTTL)),
		},
	}

	signed, err := l.keys.Sign(claims)
	if err != nil {
		return nil, err
	}

	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(l.cfg.TokenTTL.Seconds()),
	}, nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrEmailTaken):
		return ErrEmailTaken
	case errors.Is(err, store.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}
}
