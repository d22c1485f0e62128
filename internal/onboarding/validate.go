package onboarding

import (
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/wolfeidau/donations/internal/assets"
)

const (
	minNameRunes     = 2
	maxNameRunes     = 200
	minPasswordRunes = 6
	maxPasswordBytes = 72 // bcrypt input limit
	maxEmailBytes    = 254
)

// Request is a tenant registration submitted from the signup form.
type Request struct {
	Name     string
	Email    string
	Password string
	Website  string // optional
	Logo     []byte // optional
}

// validated is a normalized request.
type validated struct {
	name     string
	email    string
	password string
	website  string
	logo     []byte
	logoType string
}

// validate checks a request without side effects.
func validate(req Request) (*validated, error) {
	v := &validated{
		name:     strings.TrimSpace(req.Name),
		email:    strings.TrimSpace(req.Email),
		password: req.Password,
		website:  strings.TrimSpace(req.Website),
		logo:     req.Logo,
	}

	if n := utf8.RuneCountInString(v.name); n < minNameRunes {
		return nil, invalidInput("name", "name must be at least %d characters", minNameRunes)
	} else if n > maxNameRunes {
		return nil, invalidInput("name", "name must be at most %d characters", maxNameRunes)
	}

	if !validEmail(v.email) {
		return nil, invalidInput("email", "email address is not valid")
	}

	if utf8.RuneCountInString(v.password) < minPasswordRunes {
		return nil, invalidInput("password", "password must be at least %d characters", minPasswordRunes)
	}
	if len(v.password) > maxPasswordBytes {
		return nil, invalidInput("password", "password must be at most %d bytes", maxPasswordBytes)
	}

	if v.website != "" {
		u, err := url.Parse(v.website)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, invalidInput("website", "website must be an absolute http or https URL")
		}
	}

	if len(v.logo) > 0 {
		contentType, err := validateLogo(v.logo)
		if err != nil {
			return nil, err
		}
		v.logoType = contentType
	}

	return v, nil
}

func validateLogo(data []byte) (string, error) {
	contentType, err := assets.ValidateImage(data)
	switch {
	case errors.Is(err, assets.ErrTooLarge):
		return "", invalidInput("logo", "logo must be at most %d MiB", assets.MaxLogoBytes>>20)
	case err != nil:
		return "", invalidInput("logo", "logo must be a PNG, JPEG or WebP image")
	}
	return contentType, nil
}

func validEmail(email string) bool {
	if len(email) > maxEmailBytes || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	local, domain, ok := strings.Cut(email, "@")
	return ok && local != "" && domain != ""
}
