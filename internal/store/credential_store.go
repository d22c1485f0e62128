package store

import (
	"context"
	"errors"

	"github.com/wolfeidau/donations/internal/models"
)

// Sentinel errors for credential store operations
var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrEmailTaken         = errors.New("email already registered")
)

// CredentialStore persists the identities of the built-in identity provider.
type CredentialStore interface {
	// Create stores a new credential. Emails are unique (case-insensitive).
	// Returns ErrEmailTaken if the email is already registered.
	Create(ctx context.Context, cred *models.Credential) error

	// Get retrieves a credential by identity ID.
	Get(ctx context.Context, identityID string) (*models.Credential, error)

	// GetByEmail retrieves a credential by email.
	GetByEmail(ctx context.Context, email string) (*models.Credential, error)

	// Delete removes a credential.
	// Returns ErrCredentialNotFound if it doesn't exist.
	Delete(ctx context.Context, identityID string) error
}
