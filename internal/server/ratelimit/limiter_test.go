package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	httpmiddleware "github.com/wolfeidau/donations/internal/http"
)

func newTestLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()
	l, err := NewLimiter(cfg)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg Config
		cfg.ApplyDefaults()
		require.Equal(t, Config{Requests: 10, Window: time.Minute, Burst: 5}, cfg)
		require.NoError(t, cfg.Validate())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := NewLimiter(Config{Requests: -1, Window: time.Minute, Burst: 1})
		require.Error(t, err)
	})
}

func TestLimiter_Allow(t *testing.T) {
	l := newTestLimiter(t, Config{Requests: 5, Window: time.Minute, Burst: 5})

	for i := range 5 {
		result := l.Allow("ip:a")
		require.True(t, result.Allowed, "request %d", i+1)
		require.Equal(t, 5, result.Limit)
		require.Equal(t, 4-i, result.Remaining)
	}

	result := l.Allow("ip:a")
	require.False(t, result.Allowed)
	require.GreaterOrEqual(t, result.RetryAfter, time.Second)

	t.Run("keys are independent", func(t *testing.T) {
		require.True(t, l.Allow("ip:b").Allowed)
	})
}

func TestLimiter_Refill(t *testing.T) {
	l := newTestLimiter(t, Config{Requests: 60, Window: time.Minute, Burst: 1})

	now := time.Now()
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("k").Allowed)
	require.False(t, l.Allow("k").Allowed)

	now = now.Add(time.Second)
	require.True(t, l.Allow("k").Allowed)
}

func TestLimiter_Cleanup(t *testing.T) {
	l := newTestLimiter(t, Config{Requests: 60, Window: time.Minute, Burst: 1})

	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("idle")
	require.Equal(t, 1, l.Len())

	now = now.Add(staleAfter + time.Minute)
	l.cleanup()
	require.Equal(t, 0, l.Len())
}

func TestMiddleware(t *testing.T) {
	l := newTestLimiter(t, Config{Requests: 2, Window: time.Minute, Burst: 2})

	handler := httpmiddleware.ClientIPMiddleware(true)(Middleware(l, "register")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/register-tenant", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusCreated, send("203.0.113.1").Code)
	rec := send("203.0.113.1")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = send("203.0.113.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.JSONEq(t, `{"error":"too many requests","retryable":true}`, rec.Body.String())

	require.Equal(t, http.StatusCreated, send("203.0.113.2").Code)
}
