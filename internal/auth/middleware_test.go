package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func okHandler(_ *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if ok {
			w.Header().Set("X-Identity", caller.IdentityID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestRequired(t *testing.T) {
	f := newFixture(t)
	id, token := f.identity(t, "admin@x.org")
	h := f.resolver.Required()(okHandler(t))

	t.Run("missing token", func(t *testing.T) {
		rec := serve(h, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "unauthenticated", decodeError(t, rec)["error"])
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := serve(h, "garbage")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		rec := serve(h, token)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, id, rec.Header().Get("X-Identity"))
	})
}

func TestOptional(t *testing.T) {
	f := newFixture(t)
	id, token := f.identity(t, "admin@x.org")
	h := f.resolver.Optional()(okHandler(t))

	t.Run("anonymous", func(t *testing.T) {
		rec := serve(h, "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Header().Get("X-Identity"))
	})

	t.Run("invalid token passes anonymously", func(t *testing.T) {
		rec := serve(h, "garbage")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Header().Get("X-Identity"))
	})

	t.Run("valid token", func(t *testing.T) {
		rec := serve(h, token)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, id, rec.Header().Get("X-Identity"))
	})
}

func TestDonorRequired(t *testing.T) {
	f := newFixture(t)
	h := f.resolver.DonorRequired()(okHandler(t))

	t.Run("missing token is 401", func(t *testing.T) {
		rec := serve(h, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is no donor profile", func(t *testing.T) {
		rec := serve(h, "garbage")
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "NO_DONOR_PROFILE", decodeError(t, rec)["code"])
	})

	t.Run("valid token without donor account is 403", func(t *testing.T) {
		id, token := f.identity(t, "admin@x.org")
		f.makeAdmin(t, id, "ayuda")

		rec := serve(h, token)
		require.Equal(t, http.StatusForbidden, rec.Code)
		body := decodeError(t, rec)
		require.Equal(t, "NO_DONOR_PROFILE", body["code"])
		require.Equal(t, "no donor profile", body["error"])
	})

	t.Run("donor passes", func(t *testing.T) {
		id, token := f.identity(t, "ana@x.org")
		f.makeDonor(t, id)

		rec := serve(h, token)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireCapability(t *testing.T) {
	f := newFixture(t)
	adminID, adminToken := f.identity(t, "admin@x.org")
	f.makeAdmin(t, adminID, "ayuda")
	_, plainToken := f.identity(t, "plain@x.org")

	h := f.resolver.Required()(RequireCapability(CapabilityOrgAdmin)(okHandler(t)))

	t.Run("admin", func(t *testing.T) {
		require.Equal(t, http.StatusOK, serve(h, adminToken).Code)
	})

	t.Run("no capability", func(t *testing.T) {
		rec := serve(h, plainToken)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "forbidden", decodeError(t, rec)["error"])
	})

	t.Run("without Required in front", func(t *testing.T) {
		rec := serve(RequireCapability(CapabilityOrgAdmin)(okHandler(t)), adminToken)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	f := newFixture(t)
	adminID, adminToken := f.identity(t, "admin@x.org")
	f.makeAdmin(t, adminID, "ayuda")
	donorID, donorToken := f.identity(t, "ana@x.org")
	f.makeDonor(t, donorID)

	h := f.resolver.Required()(RequirePermission(PermTenantManage)(okHandler(t)))

	require.Equal(t, http.StatusOK, serve(h, adminToken).Code)
	require.Equal(t, http.StatusForbidden, serve(h, donorToken).Code)
	require.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header   string
		expected string
	}{
		{header: "Bearer abc", expected: "abc"},
		{header: "bearer abc", expected: "abc"},
		{header: "Basic abc", expected: ""},
		{header: "Bearer", expected: ""},
		{header: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			require.Equal(t, tt.expected, extractBearerToken(req))
		})
	}
}
