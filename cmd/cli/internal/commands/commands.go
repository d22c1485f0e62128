package commands

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/donations/cmd/cli/internal/credentials"
	"github.com/wolfeidau/donations/internal/logger"
)

type Globals struct {
	Debug          bool
	Version        string
	Server         string
	CredentialsDir string

	// Out receives command output, stdout when nil.
	Out io.Writer
	// HTTPClient overrides the client used to call the API.
	HTTPClient *http.Client
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Globals) httpClient() *http.Client {
	if g.HTTPClient == nil {
		return &http.Client{Timeout: 30 * time.Second}
	}
	return g.HTTPClient
}

func (g *Globals) credentialStore() (*credentials.Store, error) {
	return credentials.NewStore(g.CredentialsDir)
}

func setupLogging(globals *Globals) {
	log.Logger = logger.Setup(globals.Debug)
}
