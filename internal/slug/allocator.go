package slug

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxAttempts bounds how many candidates Allocate probes.
const DefaultMaxAttempts = 100

// ErrExhausted is returned when every probed candidate is taken.
var ErrExhausted = errors.New("no free slug within attempt limit")

// Prober reports whether a slug is in use.
type Prober interface {
	Exists(ctx context.Context, slug string) (bool, error)
}

// Allocator finds unused slugs. It only reads; the unique constraint in the
// store decides races between concurrent registrations.
type Allocator struct {
	prober      Prober
	maxAttempts int
}

// NewAllocator creates an allocator probing at most maxAttempts candidates.
// A non-positive maxAttempts uses DefaultMaxAttempts.
func NewAllocator(prober Prober, maxAttempts int) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Allocator{prober: prober, maxAttempts: maxAttempts}
}

// Allocate returns the first unused candidate starting at startSuffix, where
// suffix 0 is base itself and N is base-N, along with the suffix it used.
func (a *Allocator) Allocate(ctx context.Context, base string, startSuffix int) (string, int, error) {
	if base == "" {
		base = Fallback
	}
	if startSuffix < 0 {
		startSuffix = 0
	}

	for suffix := startSuffix; suffix < startSuffix+a.maxAttempts; suffix++ {
		candidate := WithSuffix(base, suffix)

		taken, err := a.prober.Exists(ctx, candidate)
		if err != nil {
			return "", 0, fmt.Errorf("failed to probe slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, suffix, nil
		}
	}

	return "", 0, fmt.Errorf("%w: %s after %d attempts", ErrExhausted, base, a.maxAttempts)
}
