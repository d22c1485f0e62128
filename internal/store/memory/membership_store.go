package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
)

type membershipKey struct {
	tenantID   uuid.UUID
	identityID string
}

// MembershipStore implements store.MembershipStore using in-memory storage.
// Memberships reference tenants in the given tenant store: creating a membership for a
// missing tenant fails, and memberships of deleted tenants are no longer visible.
type MembershipStore struct {
	mu sync.RWMutex

	tenants     store.TenantStore
	memberships map[membershipKey]*models.Membership
}

// NewMembershipStore creates a new in-memory membership store.
func NewMembershipStore(tenants store.TenantStore) *MembershipStore {
	return &MembershipStore{
		tenants:     tenants,
		memberships: make(map[membershipKey]*models.Membership),
	}
}

// Create links an identity to a tenant.
func (s *MembershipStore) Create(ctx context.Context, membership *models.Membership) error {
	if _, err := s.tenants.Get(ctx, membership.TenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{tenantID: membership.TenantID, identityID: membership.IdentityID}
	if _, exists := s.memberships[key]; exists {
		return store.ErrMembershipAlreadyExists
	}

	clone := *membership
	s.memberships[key] = &clone

	return nil
}

// Delete removes a membership.
func (s *MembershipStore) Delete(ctx context.Context, tenantID uuid.UUID, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{tenantID: tenantID, identityID: identityID}
	if _, exists := s.memberships[key]; !exists {
		return store.ErrMembershipNotFound
	}

	delete(s.memberships, key)

	return nil
}

// GetByIdentity returns the membership held by an identity.
func (s *MembershipStore) GetByIdentity(ctx context.Context, identityID string) (*models.Membership, error) {
	s.mu.RLock()
	var candidates []models.Membership
	for key, m := range s.memberships {
		if key.identityID == identityID {
			candidates = append(candidates, *m)
		}
	}
	s.mu.RUnlock()

	for i := range candidates {
		_, err := s.tenants.Get(ctx, candidates[i].TenantID)
		if errors.Is(err, store.ErrTenantNotFound) {
			continue // cascade-deleted with its tenant
		}
		if err != nil {
			return nil, err
		}
		return &candidates[i], nil
	}

	return nil, store.ErrMembershipNotFound
}

// Len returns the number of memberships whose tenant still exists.
func (s *MembershipStore) Len() int {
	s.mu.RLock()
	keys := make([]membershipKey, 0, len(s.memberships))
	for key := range s.memberships {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	count := 0
	for _, key := range keys {
		if _, err := s.tenants.Get(context.Background(), key.tenantID); err == nil {
			count++
		}
	}
	return count
}
