package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/donations/internal/store/memory"
	"golang.org/x/crypto/bcrypt"
)

const testIssuer = "https://donations.test"

func newTestLocal(t *testing.T) (*Local, *memory.CredentialStore) {
	t.Helper()

	km, err := NewKeyManager()
	require.NoError(t, err)

	creds := memory.NewCredentialStore()
	local, err := NewLocal(creds, km, LocalConfig{Issuer: testIssuer, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)

	return local, creds
}

func TestLocal_CreateIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("creates identity with hashed password", func(t *testing.T) {
		local, creds := newTestLocal(t)

		ident, err := local.CreateIdentity(ctx, " Admin@Ayuda.org ", "secret1")
		require.NoError(t, err)
		require.NotEmpty(t, ident.ID)
		require.Equal(t, "admin@ayuda.org", ident.Email)

		cred, err := creds.Get(ctx, ident.ID)
		require.NoError(t, err)
		require.NotEqual(t, []byte("secret1"), cred.PasswordHash)
		require.NoError(t, bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte("secret1")))
	})

	t.Run("duplicate email", func(t *testing.T) {
		local, _ := newTestLocal(t)

		_, err := local.CreateIdentity(ctx, "admin@ayuda.org", "secret1")
		require.NoError(t, err)

		_, err = local.CreateIdentity(ctx, "ADMIN@ayuda.org", "secret2")
		require.ErrorIs(t, err, ErrEmailTaken)
		require.False(t, IsRetryable(err))
	})
}

func TestLocal_DeleteIdentity(t *testing.T) {
	ctx := context.Background()
	local, creds := newTestLocal(t)

	ident, err := local.CreateIdentity(ctx, "admin@ayuda.org", "secret1")
	require.NoError(t, err)

	require.NoError(t, local.DeleteIdentity(ctx, ident.ID))
	require.Equal(t, 0, creds.Len())

	require.NoError(t, local.DeleteIdentity(ctx, ident.ID), "deleting twice succeeds")

	_, err = local.CreateIdentity(ctx, "admin@ayuda.org", "secret1")
	require.NoError(t, err, "email is free again after delete")
}

func TestLocal_SignInAndVerify(t *testing.T) {
	ctx := context.Background()
	local, _ := newTestLocal(t)

	ident, err := local.CreateIdentity(ctx, "admin@ayuda.org", "secret1")
	require.NoError(t, err)

	t.Run("sign in issues verifiable token", func(t *testing.T) {
		token, err := local.SignIn(ctx, "Admin@ayuda.org", "secret1")
		require.NoError(t, err)
		require.Equal(t, "Bearer", token.TokenType)
		require.Equal(t, 3600, token.ExpiresIn)

		claims, err := local.Verify(ctx, token.AccessToken)
		require.NoError(t, err)
		require.Equal(t, ident.ID, claims.IdentityID())
		require.Equal(t, "admin@ayuda.org", claims.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := local.SignIn(ctx, "admin@ayuda.org", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := local.SignIn(ctx, "nobody@ayuda.org", "secret1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLocal_VerifyRejects(t *testing.T) {
	ctx := context.Background()
	local, _ := newTestLocal(t)

	now := time.Now()
	claims := func(exp time.Time, issuer string) *Claims {
		return &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "identity-1",
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		}}
	}

	other, err := NewKeyManager()
	require.NoError(t, err)

	expired, err := local.Keys().Sign(claims(now.Add(-time.Hour), testIssuer))
	require.NoError(t, err)

	wrongIssuer, err := local.Keys().Sign(claims(now.Add(time.Hour), "https://elsewhere"))
	require.NoError(t, err)

	foreign, err := other.Sign(claims(now.Add(time.Hour), testIssuer))
	require.NoError(t, err)

	valid, err := local.Keys().Sign(claims(now.Add(time.Hour), testIssuer))
	require.NoError(t, err)

	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims(now.Add(time.Hour), testIssuer)).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "expired", token: expired},
		{name: "wrong issuer", token: wrongIssuer},
		{name: "signed by another key", token: foreign},
		{name: "tampered", token: valid[:len(valid)-4] + "AAAA"},
		{name: "hmac algorithm", token: hs256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := local.Verify(ctx, tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
