package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
)

// CredentialStore implements store.CredentialStore using in-memory storage.
type CredentialStore struct {
	mu sync.RWMutex

	credentials map[string]*models.Credential // identity_id -> Credential
	emails      map[string]string             // lower(email) -> identity_id
}

// NewCredentialStore creates a new in-memory credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		credentials: make(map[string]*models.Credential),
		emails:      make(map[string]string),
	}
}

// Create stores a new credential.
func (s *CredentialStore) Create(ctx context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(cred.Email)
	if _, exists := s.emails[email]; exists {
		return store.ErrEmailTaken
	}

	clone := *cred
	clone.Email = email
	s.credentials[cred.IdentityID] = &clone
	s.emails[email] = cred.IdentityID

	return nil
}

// Get retrieves a credential by identity ID.
func (s *CredentialStore) Get(ctx context.Context, identityID string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, exists := s.credentials[identityID]
	if !exists {
		return nil, store.ErrCredentialNotFound
	}

	clone := *cred
	return &clone, nil
}

// GetByEmail retrieves a credential by email.
func (s *CredentialStore) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identityID, exists := s.emails[strings.ToLower(email)]
	if !exists {
		return nil, store.ErrCredentialNotFound
	}

	clone := *s.credentials[identityID]
	return &clone, nil
}

// Delete removes a credential.
func (s *CredentialStore) Delete(ctx context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, exists := s.credentials[identityID]
	if !exists {
		return store.ErrCredentialNotFound
	}

	delete(s.emails, cred.Email)
	delete(s.credentials, identityID)

	return nil
}

// Len returns the number of stored credentials.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.credentials)
}
