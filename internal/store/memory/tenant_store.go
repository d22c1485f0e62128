package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
)

// TenantStore implements store.TenantStore using in-memory storage.
// The slug index mirrors the unique constraint of the postgres schema.
type TenantStore struct {
	mu sync.RWMutex

	tenants map[uuid.UUID]*models.Tenant // tenant_id -> Tenant
	slugs   map[string]uuid.UUID         // slug -> tenant_id
}

// NewTenantStore creates a new in-memory tenant store.
func NewTenantStore() *TenantStore {
	return &TenantStore{
		tenants: make(map[uuid.UUID]*models.Tenant),
		slugs:   make(map[string]uuid.UUID),
	}
}

// Exists reports whether a tenant uses the slug.
func (s *TenantStore) Exists(ctx context.Context, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.slugs[slug]
	return exists, nil
}

// Create stores a new tenant.
func (s *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.slugs[tenant.Slug]; exists {
		return store.ErrSlugTaken
	}

	clone := *tenant
	s.tenants[tenant.TenantID] = &clone
	s.slugs[tenant.Slug] = tenant.TenantID

	return nil
}

// Get retrieves a tenant by ID.
func (s *TenantStore) Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, exists := s.tenants[tenantID]
	if !exists {
		return nil, store.ErrTenantNotFound
	}

	clone := *tenant
	return &clone, nil
}

// GetBySlug retrieves a tenant by slug.
func (s *TenantStore) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenantID, exists := s.slugs[slug]
	if !exists {
		return nil, store.ErrTenantNotFound
	}

	clone := *s.tenants[tenantID]
	return &clone, nil
}

// Update updates an existing tenant. The slug is immutable.
func (s *TenantStore) Update(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.tenants[tenant.TenantID]
	if !exists {
		return store.ErrTenantNotFound
	}

	tenant.UpdatedAt = time.Now()

	clone := *tenant
	clone.Slug = existing.Slug
	clone.CreatedAt = existing.CreatedAt
	s.tenants[tenant.TenantID] = &clone

	return nil
}

// Delete deletes a tenant by ID.
func (s *TenantStore) Delete(ctx context.Context, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, exists := s.tenants[tenantID]
	if !exists {
		return store.ErrTenantNotFound
	}

	delete(s.slugs, tenant.Slug)
	delete(s.tenants, tenantID)

	return nil
}

// Len returns the number of stored tenants.
func (s *TenantStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tenants)
}
