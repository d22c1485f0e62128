package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wolfeidau/donations/cmd/cli/internal/credentials"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// signIn exchanges a password for an access token. The returned session has
// no server set.
func signIn(ctx context.Context, client *apiClient, email, password string) (*credentials.Session, error) {
	req, err := jsonRequest(http.MethodPost, "/auth/token", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var tok tokenResponse
	if err := client.do(ctx, req, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errors.New("server returned no access token")
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}

	now := time.Now().UTC()

	return &credentials.Session{
		Email:       strings.ToLower(strings.TrimSpace(email)),
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresAt:   credentials.ExpiresAt(tok.AccessToken, tok.ExpiresIn, now),
		CreatedAt:   now,
	}, nil
}

type LoginCmd struct {
	Email    string `help:"Account email." required:""`
	Password string `help:"Account password." env:"DONATIONS_PASSWORD" required:""`
}

func (cmd *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	store, err := globals.credentialStore()
	if err != nil {
		return err
	}

	session, err := signIn(ctx, newAPIClient(globals), cmd.Email, cmd.Password)
	if err != nil {
		return fmt.Errorf("sign in failed: %w", err)
	}
	session.Server = globals.Server

	if err := store.Save(*session); err != nil {
		return err
	}

	fmt.Fprintf(globals.out(), "Signed in to %s as %s\n", globals.Server, session.Email)
	if !session.ExpiresAt.IsZero() {
		fmt.Fprintf(globals.out(), "  Expires: %s\n", session.ExpiresAt.Local().Format(time.RFC3339))
	}

	return nil
}

type LogoutCmd struct{}

func (cmd *LogoutCmd) Run(globals *Globals) error {
	setupLogging(globals)

	store, err := globals.credentialStore()
	if err != nil {
		return err
	}

	if err := store.Delete(globals.Server); err != nil {
		return err
	}

	fmt.Fprintf(globals.out(), "Signed out of %s\n", globals.Server)
	return nil
}
