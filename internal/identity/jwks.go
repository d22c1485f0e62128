package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/rs/zerolog/log"
)

// JWK is an EC public key in JSON Web Key form.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Crv string `json:"crv"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// JWKS is a JSON Web Key Set document.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// PublicKey converts the JWK to an ECDSA P-256 public key.
func (k JWK) PublicKey() (*ecdsa.PublicKey, error) {
	if k.Kty != "EC" {
		return nil, fmt.Errorf("unsupported key type: %q", k.Kty)
	}
	if k.Crv != "P-256" {
		return nil, fmt.Errorf("unsupported curve: %q", k.Crv)
	}

	xBytes, err := decodeBase64URL(k.X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode x: %w", err)
	}

	yBytes, err := decodeBase64URL(k.Y)
	if err != nil {
		return nil, fmt.Errorf("failed to decode y: %w", err)
	}

	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, fmt.Errorf("point is not on curve")
	}

	return pub, nil
}

func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// JWKSHandler serves the key set at /.well-known/jwks.json.
func JWKSHandler(km *KeyManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if err := json.NewEncoder(w).Encode(JWKS{Keys: []JWK{km.JWK()}}); err != nil {
			log.Error().Err(err).Msg("Failed to encode JWKS response")
		}
	}
}

// KeySet resolves signing keys published by a remote JWKS endpoint. HTTP
// responses go through an httpcache transport so Cache-Control headers are
// honoured; parsed keys are additionally held for refreshInterval.
type KeySet struct {
	url             string
	client          *http.Client
	refreshInterval time.Duration

	mu        sync.RWMutex
	keys      map[string]*ecdsa.PublicKey
	fetchedAt time.Time
}

// NewCachingClient returns an HTTP client that honours Cache-Control on key
// set responses. Responses persist under cacheDir when set, otherwise in memory.
func NewCachingClient(cacheDir string) *http.Client {
	var cache httpcache.Cache = httpcache.NewMemoryCache()
	if cacheDir != "" {
		cache = diskcache.New(cacheDir)
	}

	return &http.Client{
		Transport: httpcache.NewTransport(cache),
		Timeout:   10 * time.Second,
	}
}

// NewKeySet creates a KeySet for url. A nil client uses an in-memory caching client.
func NewKeySet(url string, client *http.Client) *KeySet {
	if client == nil {
		client = NewCachingClient("")
	}

	return &KeySet{
		url:             url,
		client:          client,
		refreshInterval: time.Hour,
		keys:            make(map[string]*ecdsa.PublicKey),
	}
}

// Key returns the key with the given kid, refetching the set when the kid is
// unknown or the cached set is stale.
func (ks *KeySet) Key(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	ks.mu.RLock()
	key, ok := ks.keys[kid]
	fresh := time.Since(ks.fetchedAt) < ks.refreshInterval
	ks.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	keys, err := ks.fetch(ctx)
	if err != nil {
		return nil, err
	}

	key, ok = keys[kid]
	if !ok {
		return nil, fmt.Errorf("kid not found in JWKS: %s", kid)
	}

	return key, nil
}

func (ks *KeySet) fetch(ctx context.Context) (map[string]*ecdsa.PublicKey, error) {
	log.Debug().Str("jwks_url", ks.url).Msg("Fetching JWKS")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS request: %w", err)
	}

	resp, err := ks.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch JWKS: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: JWKS request failed: %s", ErrUnavailable, resp.Status)
	}

	// Read to EOF so the caching transport stores the response.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read JWKS: %w", ErrUnavailable, err)
	}

	var set JWKS
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	keys := make(map[string]*ecdsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kid == "" {
			log.Warn().Msg("JWK missing kid")
			continue
		}
		key, err := jwk.PublicKey()
		if err != nil {
			log.Warn().Err(err).Str("kid", jwk.Kid).Msg("Failed to parse JWK")
			continue
		}
		keys[jwk.Kid] = key
	}

	ks.mu.Lock()
	ks.keys = keys
	ks.fetchedAt = time.Now()
	ks.mu.Unlock()

	log.Info().Int("total_keys", len(keys)).Msg("Cached JWKS")
	return keys, nil
}
