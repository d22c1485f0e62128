package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	keys *KeyManager

	createStatus []int // consumed per call, last one repeats
	createCalls  atomic.Int32
	deleteStatus int
	authHeader   atomic.Value
}

func (f *fakeProvider) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /admin/users", func(w http.ResponseWriter, r *http.Request) {
		f.authHeader.Store(r.Header.Get("Authorization"))
		n := int(f.createCalls.Add(1)) - 1
		status := f.createStatus[min(n, len(f.createStatus)-1)]

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		switch status {
		case http.StatusOK:
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "remote-1", "email": "admin@ayuda.org", "created_at": time.Now()})
		case http.StatusUnprocessableEntity:
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 422, "error_code": "email_exists", "msg": "A user with this email address has already been registered"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"msg": "boom"})
		}
	})

	mux.HandleFunc("DELETE /admin/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(f.deleteStatus)
	})

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))

		var body struct{ Email, Password string }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body.Password != "secret1" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
			return
		}

		signed, err := f.keys.Sign(&Claims{Email: body.Email, RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "remote-1",
			Issuer:    "remote-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}})
		require.NoError(t, err)

		_ = json.NewEncoder(w).Encode(Token{AccessToken: signed, TokenType: "bearer", ExpiresIn: 3600})
	})

	mux.Handle("GET /.well-known/jwks.json", JWKSHandler(f.keys))

	return mux
}

func newTestRemote(t *testing.T, f *fakeProvider) *Remote {
	t.Helper()

	km, err := NewKeyManager()
	require.NoError(t, err)
	f.keys = km

	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	remote, err := NewRemote(context.Background(), RemoteConfig{
		BaseURL:    srv.URL,
		ServiceKey: "service-key",
		Issuer:     "remote-issuer",
		MaxTries:   3,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	return remote
}

func TestRemote_CreateIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("created with service key", func(t *testing.T) {
		f := &fakeProvider{createStatus: []int{http.StatusOK}}
		remote := newTestRemote(t, f)

		ident, err := remote.CreateIdentity(ctx, "admin@ayuda.org", "secret1")
		require.NoError(t, err)
		require.Equal(t, "remote-1", ident.ID)
		require.Equal(t, "Bearer service-key", f.authHeader.Load())
	})

	t.Run("email taken is terminal", func(t *testing.T) {
		f := &fakeProvider{createStatus: []int{http.StatusUnprocessableEntity}}
		remote := newTestRemote(t, f)

		_, err := remote.CreateIdentity(ctx, "admin@ayuda.org", "secret1")
		require.ErrorIs(t, err, ErrEmailTaken)
		require.EqualValues(t, 1, f.createCalls.Load())
	})

	t.Run("server errors are retried", func(t *testing.T) {
		f := &fakeProvider{createStatus: []int{http.StatusServiceUnavailable, http.StatusOK}}
		remote := newTestRemote(t, f)

		ident, err := remote.CreateIdentity(ctx, "admin@ayuda.org", "secret1")
		require.NoError(t, err)
		require.Equal(t, "remote-1", ident.ID)
		require.EqualValues(t, 2, f.createCalls.Load())
	})

	t.Run("persistent unavailability is retryable", func(t *testing.T) {
		f := &fakeProvider{createStatus: []int{http.StatusServiceUnavailable}}
		remote := newTestRemote(t, f)

		_, err := remote.CreateIdentity(ctx, "admin@ayuda.org", "secret1")
		require.ErrorIs(t, err, ErrUnavailable)
		require.True(t, IsRetryable(err))
		require.EqualValues(t, 3, f.createCalls.Load())
	})

	t.Run("internal errors are returned without resending", func(t *testing.T) {
		f := &fakeProvider{createStatus: []int{http.StatusInternalServerError, http.StatusOK}}
		remote := newTestRemote(t, f)

		_, err := remote.CreateIdentity(ctx, "admin@ayuda.org", "secret1")
		require.ErrorIs(t, err, ErrUnavailable)
		require.True(t, IsRetryable(err))
		require.EqualValues(t, 1, f.createCalls.Load())
	})

	t.Run("lost response is not resent", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) > 1 {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_ = json.NewEncoder(w).Encode(map[string]any{"code": 422, "error_code": "email_exists", "msg": "already registered"})
				return
			}
			// the user is created but the connection drops before the reply
			conn, _, err := http.NewResponseController(w).Hijack()
			if err == nil {
				_ = conn.Close()
			}
		}))
		t.Cleanup(srv.Close)

		remote, err := NewRemote(ctx, RemoteConfig{BaseURL: srv.URL, ServiceKey: "service-key", MaxTries: 3, HTTPClient: srv.Client()})
		require.NoError(t, err)

		_, err = remote.CreateIdentity(ctx, "admin@ayuda.org", "secret1")
		require.ErrorIs(t, err, ErrUnavailable)
		require.NotErrorIs(t, err, ErrEmailTaken)
		require.True(t, IsRetryable(err))
		require.EqualValues(t, 1, calls.Load())
	})

	t.Run("unreachable provider is retried", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		remote, err := NewRemote(ctx, RemoteConfig{BaseURL: addr, ServiceKey: "service-key", MaxTries: 2})
		require.NoError(t, err)

		_, err = remote.CreateIdentity(ctx, "admin@ayuda.org", "secret1")
		require.ErrorIs(t, err, ErrUnavailable)
		require.True(t, isDialError(err))
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		f := &fakeProvider{createStatus: []int{http.StatusBadRequest}}
		remote := newTestRemote(t, f)

		_, err := remote.CreateIdentity(ctx, "admin@ayuda.org", "secret1")
		require.ErrorIs(t, err, ErrRejected)
		require.False(t, IsRetryable(err))
		require.EqualValues(t, 1, f.createCalls.Load())
	})
}

func TestRemote_DeleteIdentity(t *testing.T) {
	ctx := context.Background()

	for _, status := range []int{http.StatusOK, http.StatusNoContent, http.StatusNotFound} {
		f := &fakeProvider{deleteStatus: status}
		remote := newTestRemote(t, f)
		require.NoError(t, remote.DeleteIdentity(ctx, "remote-1"), "status %d", status)
	}

	f := &fakeProvider{deleteStatus: http.StatusForbidden}
	remote := newTestRemote(t, f)
	require.ErrorIs(t, remote.DeleteIdentity(ctx, "remote-1"), ErrRejected)

	t.Run("single attempt", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)

		remote, err := NewRemote(ctx, RemoteConfig{BaseURL: srv.URL, ServiceKey: "service-key", MaxTries: 3, HTTPClient: srv.Client()})
		require.NoError(t, err)

		err = remote.DeleteIdentity(ctx, "remote-1")
		require.ErrorIs(t, err, ErrUnavailable)
		require.EqualValues(t, 1, calls.Load())
	})
}

func TestRemote_SignInAndVerify(t *testing.T) {
	ctx := context.Background()
	f := &fakeProvider{}
	remote := newTestRemote(t, f)

	token, err := remote.SignIn(ctx, "admin@ayuda.org", "secret1")
	require.NoError(t, err)

	claims, err := remote.Verify(ctx, token.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "remote-1", claims.IdentityID())

	_, err = remote.SignIn(ctx, "admin@ayuda.org", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	other, err := NewKeyManager()
	require.NoError(t, err)
	forged, err := other.Sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "remote-1",
		Issuer:    "remote-issuer",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	require.NoError(t, err)

	_, err = remote.Verify(ctx, forged)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRemoteConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RemoteConfig
		wantErr bool
	}{
		{name: "service key", cfg: RemoteConfig{BaseURL: "https://id.example.com", ServiceKey: "k"}},
		{name: "client credentials", cfg: RemoteConfig{BaseURL: "https://id.example.com", ClientID: "c", ClientSecret: "s", TokenURL: "https://id.example.com/oauth/token"}},
		{name: "missing base url", cfg: RemoteConfig{ServiceKey: "k"}, wantErr: true},
		{name: "missing auth", cfg: RemoteConfig{BaseURL: "https://id.example.com"}, wantErr: true},
		{name: "incomplete client credentials", cfg: RemoteConfig{BaseURL: "https://id.example.com", ClientID: "c"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
