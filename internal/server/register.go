package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/donations/internal/assets"
	"github.com/wolfeidau/donations/internal/onboarding"
)

// multipartMemory is how much of a registration form is buffered in memory
// before parts spill to temporary files.
const multipartMemory = 1 << 20

type registerTenantResponse struct {
	TenantID uuid.UUID `json:"tenantId"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	LogoURL  string    `json:"logoUrl,omitempty"`
}

func (s *Server) handleRegisterTenant(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRegistrationBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "registration form is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	logo, err := readLogo(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read logo")
		return
	}

	result, err := s.deps.Onboarding.Onboard(r.Context(), onboarding.Request{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Website:  r.FormValue("website"),
		Logo:     logo,
	})
	if err != nil {
		writeOnboardingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerTenantResponse{
		TenantID: result.TenantID,
		Name:     result.Name,
		Slug:     result.Slug,
		LogoURL:  result.LogoURL,
	})
}

// readLogo returns the optional logo part. Reads stop one byte past the
// size limit so oversized files are rejected by validation.
func readLogo(r *http.Request) ([]byte, error) {
	f, _, err := r.FormFile("logo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(io.LimitReader(f, assets.MaxLogoBytes+1))
}

func onboardingStatus(kind onboarding.Kind) int {
	switch kind {
	case onboarding.KindInvalidInput, onboarding.KindEmailTaken, onboarding.KindSlugExhausted:
		return http.StatusBadRequest
	case onboarding.KindSlugConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeOnboardingError maps a classified failure to a response. Only the
// stable message of each kind reaches the client.
func writeOnboardingError(w http.ResponseWriter, r *http.Request, err error) {
	log := zerolog.Ctx(r.Context())

	oerr, ok := onboarding.AsError(err)
	if !ok {
		log.Error().Err(err).Msg("Unclassified onboarding failure")
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	status := onboardingStatus(oerr.Kind)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("kind", string(oerr.Kind)).Str("step", oerr.Step).Msg("Registration failed")
	}

	writeJSON(w, status, errorResponse{
		Error:     oerr.Message(),
		Code:      string(oerr.Kind),
		Field:     oerr.Field,
		Retryable: oerr.Retryable,
	})
}
