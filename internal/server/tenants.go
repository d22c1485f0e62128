package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/donations/internal/assets"
	"github.com/wolfeidau/donations/internal/auth"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/onboarding"
	"github.com/wolfeidau/donations/internal/store"
)

type tenantResponse struct {
	TenantID  uuid.UUID           `json:"tenantId"`
	Name      string              `json:"name"`
	Email     string              `json:"email"`
	Slug      string              `json:"slug"`
	Status    models.TenantStatus `json:"status"`
	Verified  bool                `json:"verified"`
	Website   string              `json:"website,omitempty"`
	LogoURL   string              `json:"logoUrl,omitempty"`
	Country   string              `json:"country"`
	Currency  string              `json:"currency"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

func newTenantResponse(t *models.Tenant) tenantResponse {
	return tenantResponse{
		TenantID:  t.TenantID,
		Name:      t.Name,
		Email:     t.Email,
		Slug:      t.Slug,
		Status:    t.Status,
		Verified:  t.Verified,
		Website:   t.Website,
		LogoURL:   t.LogoURL,
		Country:   t.Country,
		Currency:  t.Currency,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// publicTenantResponse omits contact details.
type publicTenantResponse struct {
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Verified      bool   `json:"verified"`
	Website       string `json:"website,omitempty"`
	LogoURL       string `json:"logoUrl,omitempty"`
	Country       string `json:"country"`
	Currency      string `json:"currency"`
	ViewerIsAdmin bool   `json:"viewerIsAdmin"`
}

func (s *Server) handleCurrentTenant(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFromContext(r.Context())

	tenant, err := s.deps.Tenants.Get(r.Context(), *caller.TenantID)
	if err != nil {
		writeStoreError(w, r, err, "tenant not found")
		return
	}

	writeJSON(w, http.StatusOK, newTenantResponse(tenant))
}

// handleReplaceLogo takes the raw image as the request body.
func (s *Server) handleReplaceLogo(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFromContext(r.Context())

	data, err := io.ReadAll(io.LimitReader(r.Body, assets.MaxLogoBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read logo")
		return
	}

	tenant, err := s.deps.Onboarding.ReplaceLogo(r.Context(), *caller.TenantID, data)
	if oerr, ok := onboarding.AsError(err); ok {
		writeOnboardingError(w, r, oerr)
		return
	}
	if err != nil {
		writeStoreError(w, r, err, "tenant not found")
		return
	}

	writeJSON(w, http.StatusOK, newTenantResponse(tenant))
}

// handlePublicTenant shows an active tenant to anyone. Suspended tenants are
// only visible to their administrators.
func (s *Server) handlePublicTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.deps.Tenants.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeStoreError(w, r, err, "organization not found")
		return
	}

	var viewerIsAdmin bool
	if caller, ok := auth.CallerFromContext(r.Context()); ok && caller.TenantID != nil {
		viewerIsAdmin = *caller.TenantID == tenant.TenantID
	}

	if tenant.Status != models.TenantStatusActive && !viewerIsAdmin {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	writeJSON(w, http.StatusOK, publicTenantResponse{
		Name:          tenant.Name,
		Slug:          tenant.Slug,
		Verified:      tenant.Verified,
		Website:       tenant.Website,
		LogoURL:       tenant.LogoURL,
		Country:       tenant.Country,
		Currency:      tenant.Currency,
		ViewerIsAdmin: viewerIsAdmin,
	})
}

// writeStoreError maps store sentinels to responses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, store.ErrTenantNotFound), errors.Is(err, store.ErrDonorNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrUnavailable):
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Store unavailable")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service unavailable, please try again", Retryable: true})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Store operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
