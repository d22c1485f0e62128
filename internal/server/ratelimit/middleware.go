package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	httpmiddleware "github.com/wolfeidau/donations/internal/http"
	"github.com/wolfeidau/donations/internal/telemetry"
	"go.opentelemetry.io/otel/metric"
)

// WriteHeaders sets the X-RateLimit headers, plus Retry-After when the
// request was rejected.
func WriteHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

	if !result.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
	}
}

// Middleware limits requests per client IP. name labels the bucket keys,
// logs and metrics so several limiters can share one process.
// The client IP comes from httpmiddleware.ClientIPMiddleware.
func Middleware(l *Limiter, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := httpmiddleware.ClientIPFromContext(r.Context())
			if ip == "" {
				ip = httpmiddleware.ExtractClientIP(r, false)
			}

			result := l.Allow(name + ":" + ip)
			WriteHeaders(w, result)

			if !result.Allowed {
				zerolog.Ctx(r.Context()).Warn().
					Str("limiter", name).
					Dur("retry_after", result.RetryAfter).
					Msg("Rate limit exceeded")
				telemetry.GetMetrics().RateLimitedTotal.Add(r.Context(), 1,
					metric.WithAttributes(telemetry.AttrLimiter.String(name)))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":     "too many requests",
					"retryable": true,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
