package credentials

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the fields the CLI reads from a server issued access token.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Inspect decodes a token without verifying its signature. The server is the
// only verifier; the CLI uses the claims to record the expiry and for display.
func Inspect(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	return claims, nil
}

// ExpiresAt returns the token expiry, falling back to now+expiresIn when the
// token carries no exp claim.
func ExpiresAt(token string, expiresIn int, now time.Time) time.Time {
	if claims, err := Inspect(token); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}

	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}

	return time.Time{}
}
