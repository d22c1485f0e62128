package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var (
	// ErrSessionNotFound is returned when no token is stored for a server.
	ErrSessionNotFound = errors.New("not signed in")

	// ErrSessionExpired is returned when the stored token has expired.
	ErrSessionExpired = errors.New("session expired")
)

const configFile = "credentials.json"

// Session is an access token obtained by signing in to a server.
type Session struct {
	Server      string    `json:"server"`
	Email       string    `json:"email"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expired reports whether the session token is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Config is the on disk layout of the credentials file.
type Config struct {
	Version  int                `json:"version"`
	Sessions map[string]Session `json:"sessions"`
}

// Store keeps one session per server in a JSON file only readable by the user.
type Store struct {
	baseDir string
	now     func() time.Time
}

// NewStore opens the store rooted at baseDir, defaulting to ~/.donations.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".donations")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("credential store initialized")

	return &Store{baseDir: baseDir, now: time.Now}, nil
}

// Save stores a session, replacing any previous session for the same server.
func (s *Store) Save(session Session) error {
	key, err := serverKey(session.Server)
	if err != nil {
		return err
	}

	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	session.Server = key
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now().UTC()
	}
	cfg.Sessions[key] = session

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	log.Debug().Str("server", key).Str("email", session.Email).Msg("session saved")

	return nil
}

// Get returns the session for a server, expired or not.
func (s *Store) Get(server string) (*Session, error) {
	key, err := serverKey(server)
	if err != nil {
		return nil, err
	}

	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	session, ok := cfg.Sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return &session, nil
}

// Delete forgets the session for a server. Missing sessions are not an error.
func (s *Store) Delete(server string) error {
	key, err := serverKey(server)
	if err != nil {
		return err
	}

	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Sessions[key]; !ok {
		return nil
	}
	delete(cfg.Sessions, key)

	return s.saveConfig(cfg)
}

// TokenSource returns the stored token for a server, failing once it expires.
func (s *Store) TokenSource(server string) oauth2.TokenSource {
	return &storeTokenSource{store: s, server: server}
}

type storeTokenSource struct {
	store  *Store
	server string
}

func (ts *storeTokenSource) Token() (*oauth2.Token, error) {
	session, err := ts.store.Get(ts.server)
	if err != nil {
		return nil, err
	}

	if session.Expired(ts.store.now()) {
		return nil, fmt.Errorf("%w for %s, run login again", ErrSessionExpired, session.Server)
	}

	return &oauth2.Token{
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		Expiry:      session.ExpiresAt,
	}, nil
}

func (s *Store) loadConfig() (*Config, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, configFile))
	if errors.Is(err, os.ErrNotExist) {
		return &Config{Version: 1, Sessions: map[string]Session{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	if cfg.Sessions == nil {
		cfg.Sessions = map[string]Session{}
	}

	return &cfg, nil
}

// saveConfig writes the file atomically with 0600 permissions.
func (s *Store) saveConfig(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	configPath := filepath.Join(s.baseDir, configFile)
	tempPath := configPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	return nil
}

// serverKey normalises a server URL to scheme://host so trailing paths and
// slashes map to the same session.
func serverKey(server string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid server url %q", server)
	}

	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}
