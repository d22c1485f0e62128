package onboarding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/donations/internal/assets"
	"github.com/wolfeidau/donations/internal/identity"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
	"github.com/wolfeidau/donations/internal/store/memory"
)

type fakeGateway struct {
	mu         sync.Mutex
	identities map[string]string // id -> email
	nextID     int

	createErr error
	deleteErr error
	deletes   []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{identities: make(map[string]string)}
}

func (g *fakeGateway) CreateIdentity(ctx context.Context, email, password string) (*identity.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.createErr != nil {
		return nil, g.createErr
	}
	for _, existing := range g.identities {
		if strings.EqualFold(existing, email) {
			return nil, identity.ErrEmailTaken
		}
	}

	g.nextID++
	id := fmt.Sprintf("identity-%d", g.nextID)
	g.identities[id] = email
	return &identity.Identity{ID: id, Email: email}, nil
}

func (g *fakeGateway) DeleteIdentity(ctx context.Context, identityID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.deletes = append(g.deletes, identityID)
	if g.deleteErr != nil {
		return g.deleteErr
	}
	delete(g.identities, identityID)
	return nil
}

func (g *fakeGateway) Verify(ctx context.Context, token string) (*identity.Claims, error) {
	return nil, identity.ErrInvalidToken
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.identities)
}

// faultyTenants injects errors in front of a memory tenant store.
type faultyTenants struct {
	*memory.TenantStore

	mu         sync.Mutex
	createErrs  []error // consumed one per Create call
	updateErr   error
	deleteErr   error
	blockCreate bool
}

func (f *faultyTenants) Create(ctx context.Context, tenant *models.Tenant) error {
	if f.blockCreate {
		<-ctx.Done()
		return ctx.Err()
	}

	f.mu.Lock()
	var err error
	if len(f.createErrs) > 0 {
		err, f.createErrs = f.createErrs[0], f.createErrs[1:]
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return f.TenantStore.Create(ctx, tenant)
}

func (f *faultyTenants) Update(ctx context.Context, tenant *models.Tenant) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.TenantStore.Update(ctx, tenant)
}

func (f *faultyTenants) Delete(ctx context.Context, tenantID uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.TenantStore.Delete(ctx, tenantID)
}

type faultyMemberships struct {
	*memory.MembershipStore

	createErr   error
	blockCreate bool
}

func (f *faultyMemberships) Create(ctx context.Context, m *models.Membership) error {
	if f.blockCreate {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.createErr != nil {
		return f.createErr
	}
	return f.MembershipStore.Create(ctx, m)
}

type faultyAssets struct {
	*assets.MemoryStore

	uploadErr error
}

func (f *faultyAssets) Upload(ctx context.Context, key, contentType string, data []byte) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	return f.MemoryStore.Upload(ctx, key, contentType, data)
}

type harness struct {
	gateway     *fakeGateway
	tenants     *faultyTenants
	memberships *faultyMemberships
	assets      *faultyAssets
}

func newHarness() *harness {
	tenants := &faultyTenants{TenantStore: memory.NewTenantStore()}
	return &harness{
		gateway:     newFakeGateway(),
		tenants:     tenants,
		memberships: &faultyMemberships{MembershipStore: memory.NewMembershipStore(tenants)},
		assets:      &faultyAssets{MemoryStore: assets.NewMemoryStore("/assets")},
	}
}

var _ store.TenantStore = (*faultyTenants)(nil)
