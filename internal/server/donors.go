package server

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/donations/internal/auth"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
)

const maxDisplayNameRunes = 100

type createDonorRequest struct {
	DisplayName string `json:"displayName"`
}

type donorResponse struct {
	DonorID     uuid.UUID `json:"donorId"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newDonorResponse(d *models.DonorAccount) donorResponse {
	return donorResponse{
		DonorID:     d.DonorID,
		DisplayName: d.DisplayName,
		Email:       d.Email,
		CreatedAt:   d.CreatedAt,
	}
}

// handleCreateDonor gives the caller a donor account. An empty display name
// defaults to the local part of the caller's email.
func (s *Server) handleCreateDonor(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFromContext(r.Context())

	if caller.DonorAccountID != nil {
		writeError(w, http.StatusConflict, "donor profile already exists")
		return
	}

	var req createDonorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name, _, _ = strings.Cut(caller.Email, "@")
	}
	if name == "" || utf8.RuneCountInString(name) > maxDisplayNameRunes {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "display name must be 1 to 100 characters", Field: "displayName"})
		return
	}

	now := time.Now().UTC()
	donor := &models.DonorAccount{
		DonorID:     uuid.Must(uuid.NewV7()),
		IdentityID:  caller.IdentityID,
		DisplayName: name,
		Email:       caller.Email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.deps.Donors.Create(r.Context(), donor)
	if errors.Is(err, store.ErrDonorAlreadyExists) {
		writeError(w, http.StatusConflict, "donor profile already exists")
		return
	}
	if err != nil {
		writeStoreError(w, r, err, "donor profile not found")
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("donor_id", donor.DonorID.String()).Msg("Donor profile created")

	writeJSON(w, http.StatusCreated, newDonorResponse(donor))
}

func (s *Server) handleDonorMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFromContext(r.Context())

	donor, err := s.deps.Donors.GetByIdentity(r.Context(), caller.IdentityID)
	if err != nil {
		writeStoreError(w, r, err, "donor profile not found")
		return
	}

	writeJSON(w, http.StatusOK, newDonorResponse(donor))
}
