package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

// KeyManager holds the ECDSA P-256 keypair the Local provider signs tokens with.
type KeyManager struct {
	privateKey *ecdsa.PrivateKey
	kid        string // base58(sha256(public key DER))
}

// NewKeyManager creates a KeyManager with a fresh keypair. Tokens signed with it
// stop verifying when the process restarts.
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	return newKeyManager(privateKey)
}

// LoadKeyManager reads a PEM encoded EC private key from path.
// An empty path generates an ephemeral key.
func LoadKeyManager(path string) (*KeyManager, error) {
	if path == "" {
		return NewKeyManager()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	privateKey, err := jwt.ParseECPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	if privateKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key must use the P-256 curve")
	}

	return newKeyManager(privateKey)
}

func newKeyManager(privateKey *ecdsa.PrivateKey) (*KeyManager, error) {
	kid, err := Fingerprint(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}

	return &KeyManager{privateKey: privateKey, kid: kid}, nil
}

// Fingerprint computes the key ID of a public key.
func Fingerprint(publicKey *ecdsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	hash := sha256.Sum256(der)
	return base58.Encode(hash[:]), nil
}

// Kid returns the key ID.
func (km *KeyManager) Kid() string {
	return km.kid
}

// PublicKey returns the verification key.
func (km *KeyManager) PublicKey() *ecdsa.PublicKey {
	return &km.privateKey.PublicKey
}

// Sign signs claims as an ES256 JWT carrying the kid header.
func (km *KeyManager) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = km.kid

	signed, err := token.SignedString(km.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signed, nil
}

// JWK returns the public key as a JSON Web Key.
func (km *KeyManager) JWK() JWK {
	pub := km.PublicKey()
	x := make([]byte, 32)
	y := make([]byte, 32)

	return JWK{
		Kty: "EC",
		Use: "sig",
		Crv: "P-256",
		Alg: "ES256",
		Kid: km.kid,
		X:   base64.RawURLEncoding.EncodeToString(pub.X.FillBytes(x)),
		Y:   base64.RawURLEncoding.EncodeToString(pub.Y.FillBytes(y)),
	}
}
