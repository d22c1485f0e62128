package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var errMissingField = errors.New("missing required field")

// Registration is the file read by the register command. Relative logo paths
// resolve against the file's directory.
type Registration struct {
	Name     string `yaml:"name" json:"name"`
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"password"`
	Website  string `yaml:"website" json:"website"`
	Logo     string `yaml:"logo" json:"logo"`
}

// Validate checks the fields the server requires. Content rules stay with
// the server so both stay in agreement.
func (r *Registration) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name", errMissingField)
	case strings.TrimSpace(r.Email) == "":
		return fmt.Errorf("%w: email", errMissingField)
	case r.Password == "":
		return fmt.Errorf("%w: password", errMissingField)
	}
	return nil
}

// LoadRegistration reads a registration file, JSON for .json and YAML
// otherwise.
func LoadRegistration(path string) (*Registration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registration file: %w", err)
	}

	var reg Registration
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&reg)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&reg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse registration file %s: %w", path, err)
	}

	if reg.Logo != "" && !filepath.IsAbs(reg.Logo) {
		reg.Logo = filepath.Join(filepath.Dir(path), reg.Logo)
	}

	return &reg, nil
}

// encodeForm builds the multipart body once so retries resend the same bytes.
func (r *Registration) encodeForm() ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"name", r.Name},
		{"email", r.Email},
		{"password", r.Password},
		{"website", r.Website},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if r.Logo != "" {
		logo, err := os.ReadFile(r.Logo)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read logo: %w", err)
		}
		part, err := mw.CreateFormFile("logo", filepath.Base(r.Logo))
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(logo); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), mw.FormDataContentType(), nil
}

// RegisteredTenant is the server's reply to a successful registration.
type RegisteredTenant struct {
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	LogoURL  string `json:"logoUrl,omitempty"`
}

type RegisterCmd struct {
	File     string `arg:"" help:"Registration file (.yaml, .yml or .json)." type:"existingfile"`
	Password string `help:"Password used when the file has none." env:"DONATIONS_PASSWORD"`
	Login    bool   `help:"Sign in as the new admin and store the token."`
	JSON     bool   `help:"Print the result as JSON."`
}

func (cmd *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	reg, err := LoadRegistration(cmd.File)
	if err != nil {
		return err
	}
	if reg.Password == "" {
		reg.Password = cmd.Password
	}
	if err := reg.Validate(); err != nil {
		return err
	}

	body, contentType, err := reg.encodeForm()
	if err != nil {
		return err
	}

	client := newAPIClient(globals)

	log.Debug().Str("server", client.baseURL).Str("name", reg.Name).Msg("registering tenant")

	var tenant RegisteredTenant
	err = client.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/register-tenant",
		contentType: contentType,
		body:        body,
	}, &tenant)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	out := globals.out()
	if cmd.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tenant); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Registered %s\n", tenant.Name)
		fmt.Fprintf(out, "  Tenant ID: %s\n", tenant.TenantID)
		fmt.Fprintf(out, "  Slug:      %s\n", tenant.Slug)
		if tenant.LogoURL != "" {
			fmt.Fprintf(out, "  Logo:      %s\n", tenant.LogoURL)
		}
	}

	if !cmd.Login {
		return nil
	}

	session, err := signIn(ctx, client, reg.Email, reg.Password)
	if err != nil {
		return fmt.Errorf("tenant registered but sign in failed: %w", err)
	}

	store, err := globals.credentialStore()
	if err != nil {
		return err
	}
	session.Server = globals.Server

	return store.Save(*session)
}
