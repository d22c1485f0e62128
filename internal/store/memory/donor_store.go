package memory

import (
	"context"
	"sync"

	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
)

// DonorStore implements store.DonorStore using in-memory storage.
type DonorStore struct {
	mu sync.RWMutex

	donors map[string]*models.DonorAccount // identity_id -> DonorAccount
}

// NewDonorStore creates a new in-memory donor store.
func NewDonorStore() *DonorStore {
	return &DonorStore{
		donors: make(map[string]*models.DonorAccount),
	}
}

// Create creates a donor account.
func (s *DonorStore) Create(ctx context.Context, donor *models.DonorAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.donors[donor.IdentityID]; exists {
		return store.ErrDonorAlreadyExists
	}

	clone := *donor
	s.donors[donor.IdentityID] = &clone

	return nil
}

// GetByIdentity returns the donor account of an identity.
func (s *DonorStore) GetByIdentity(ctx context.Context, identityID string) (*models.DonorAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	donor, exists := s.donors[identityID]
	if !exists {
		return nil, store.ErrDonorNotFound
	}

	clone := *donor
	return &clone, nil
}
