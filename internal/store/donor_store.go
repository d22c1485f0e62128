package store

import (
	"context"
	"errors"

	"github.com/wolfeidau/donations/internal/models"
)

// Sentinel errors for donor store operations
var (
	ErrDonorNotFound      = errors.New("donor account not found")
	ErrDonorAlreadyExists = errors.New("donor account already exists")
)

// DonorStore manages donor accounts.
type DonorStore interface {
	// Create creates a donor account.
	// Returns ErrDonorAlreadyExists if the identity already has one.
	Create(ctx context.Context, donor *models.DonorAccount) error

	// GetByIdentity returns the donor account of an identity.
	// Returns ErrDonorNotFound if the identity has none.
	GetByIdentity(ctx context.Context, identityID string) (*models.DonorAccount, error)
}
