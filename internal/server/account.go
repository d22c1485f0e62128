package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/donations/internal/auth"
	"github.com/wolfeidau/donations/internal/identity"
	"github.com/wolfeidau/donations/internal/models"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	token, err := s.deps.Authenticator.SignIn(r.Context(), email, req.Password)
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	case identity.IsRetryable(err):
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Sign in unavailable")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "sign in is unavailable, please try again", Retryable: true})
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Sign in failed")
		writeError(w, http.StatusInternalServerError, "sign in failed")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, token)
}

type meResponse struct {
	IdentityID     string          `json:"identityId"`
	Email          string          `json:"email,omitempty"`
	Capability     auth.Capability `json:"capability"`
	Route          auth.Route      `json:"route"`
	TenantID       *uuid.UUID      `json:"tenantId,omitempty"`
	TenantRole     models.Role     `json:"tenantRole,omitempty"`
	DonorAccountID *uuid.UUID      `json:"donorAccountId,omitempty"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFromContext(r.Context())
	capability := caller.Capability()

	writeJSON(w, http.StatusOK, meResponse{
		IdentityID:     caller.IdentityID,
		Email:          caller.Email,
		Capability:     capability,
		Route:          capability.Route(),
		TenantID:       caller.TenantID,
		TenantRole:     caller.TenantRole,
		DonorAccountID: caller.DonorAccountID,
	})
}
