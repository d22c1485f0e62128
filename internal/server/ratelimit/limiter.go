// Package ratelimit implements per-client token bucket rate limiting for
// unauthenticated endpoints.
package ratelimit

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	cleanupInterval = 10 * time.Minute
	staleAfter      = 10 * time.Minute
)

// Config describes a limit of Requests per Window with Burst capacity.
type Config struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// ApplyDefaults sets 10 requests per minute with a burst of 5.
func (c *Config) ApplyDefaults() {
	if c.Requests == 0 {
		c.Requests = 10
	}
	if c.Window == 0 {
		c.Window = time.Minute
	}
	if c.Burst == 0 {
		c.Burst = 5
	}
}

func (c *Config) Validate() error {
	if c.Requests < 1 {
		return errors.New("rate limit requests must be at least 1")
	}
	if c.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if c.Burst < 1 {
		return errors.New("rate limit burst must be at least 1")
	}
	return nil
}

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int           // requests per window
	Remaining  int           // tokens left in the bucket
	ResetAt    time.Time     // when the bucket is full again
	RetryAfter time.Duration // zero when allowed
}

// Limiter holds one token bucket per key.
type Limiter struct {
	cfg     Config
	limit   rate.Limit
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a limiter and starts its stale bucket sweeper. Call
// Close to stop it.
func NewLimiter(cfg Config) (*Limiter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		cfg:     cfg,
		limit:   rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}

	go l.cleanupLoop()

	return l, nil
}

// Allow consumes a token from the bucket of key if one is available.
func (l *Limiter) Allow(key string) Result {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	reservation := b.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	allowed := reservation.OK() && delay == 0
	if !allowed {
		reservation.CancelAt(now)
	}

	tokens := b.limiter.TokensAt(now)
	refill := time.Duration((float64(l.cfg.Burst) - tokens) / float64(l.limit) * float64(time.Second))

	result := Result{
		Allowed:   allowed,
		Limit:     l.cfg.Requests,
		Remaining: max(int(tokens), 0),
		ResetAt:   now.Add(refill),
	}
	if !allowed {
		result.RetryAfter = max(delay.Round(time.Second), time.Second)
	}

	return result
}

// Len returns the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

// cleanup drops buckets that are idle and full again.
func (l *Limiter) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > staleAfter && b.limiter.TokensAt(now) >= float64(l.cfg.Burst) {
			delete(l.buckets, key)
		}
	}
}

// Close stops the sweeper. It is safe to call more than once.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}
