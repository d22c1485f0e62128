package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

type contextKey int

const (
	callerContextKey contextKey = iota
)

// WithCaller returns a context carrying caller.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext returns the caller resolved for the request, if any.
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(*Caller)
	return caller, ok && caller != nil
}

// Required rejects requests without a valid bearer token with 401.
func (r *Resolver) Required() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			caller, err := r.resolveRequest(req)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "")
				return
			}

			next.ServeHTTP(w, req.WithContext(WithCaller(req.Context(), caller)))
		})
	}
}

// Optional resolves the caller when a valid token is present and otherwise
// lets the request through anonymously.
func (r *Resolver) Optional() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			caller, err := r.resolveRequest(req)
			if err != nil {
				next.ServeHTTP(w, req)
				return
			}

			next.ServeHTTP(w, req.WithContext(WithCaller(req.Context(), caller)))
		})
	}
}

// DonorRequired admits callers with a donor account. A request without a
// token gets 401. Any presented token that does not lead to a donor account,
// including one that fails verification, gets 403 with code NO_DONOR_PROFILE
// so clients route to donor creation rather than sign in.
func (r *Resolver) DonorRequired() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if extractBearerToken(req) == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "")
				return
			}

			caller, err := r.resolveRequest(req)
			if err != nil || !caller.Capability().Has(CapabilityDonor) {
				writeError(w, http.StatusForbidden, ErrNoDonorProfile.Error(), "NO_DONOR_PROFILE")
				return
			}

			next.ServeHTTP(w, req.WithContext(WithCaller(req.Context(), caller)))
		})
	}
}

// RequireCapability admits callers holding want. It must run after Required.
func RequireCapability(want Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			caller, ok := CallerFromContext(req.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "")
				return
			}
			if !caller.Capability().Has(want) {
				writeError(w, http.StatusForbidden, "forbidden", "")
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// RequirePermission admits callers whose capability grants perm. It must run after Required.
func RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			err := CheckPermission(req.Context(), perm)
			switch {
			case errors.Is(err, ErrUnauthenticated):
				writeError(w, http.StatusUnauthorized, "unauthenticated", "")
				return
			case err != nil:
				writeError(w, http.StatusForbidden, "forbidden", "")
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

func (r *Resolver) resolveRequest(req *http.Request) (*Caller, error) {
	token := extractBearerToken(req)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	caller, err := r.Resolve(req.Context(), token)
	if err != nil {
		zerolog.Ctx(req.Context()).Debug().Err(err).Msg("Token rejected")
		return nil, err
	}

	zerolog.Ctx(req.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("identity_id", caller.IdentityID)
	})

	return caller, nil
}

// extractBearerToken returns the token of an "Authorization: Bearer" header.
func extractBearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	body := map[string]string{"error": msg}
	if code != "" {
		body["code"] = code
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
