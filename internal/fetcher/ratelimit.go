package fetcher

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/aleister1102/oerscout/internal/common/contextutils"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Clock returns the current time.
type Clock func() time.Time

// RateLimitState is a snapshot of one domain's token bucket.
type RateLimitState struct {
	Tokens     float64   `json:"tokens"`
	MaxTokens  float64   `json:"max_tokens"`
	RefillRate float64   `json:"refill_rate"` // tokens per second
	LastRefill time.Time `json:"last_refill"`
}

type domainBucket struct {
	limiter    *rate.Limiter
	perMinute  int
	lastRefill time.Time
}

// RateLimiter keeps one token bucket per domain key. Buckets are created on
// first use with the default rate and start full.
type RateLimiter struct {
	mu               sync.Mutex
	buckets          map[string]*domainBucket
	defaultPerMinute int
	burst            int
	now              Clock
	sleep            contextutils.SleepFunc
	logger           zerolog.Logger
}

// NewRateLimiter creates a limiter. burst caps the bucket size; a domain whose
// rate is below burst per minute is capped at its rate instead.
func NewRateLimiter(defaultPerMinute, burst int, logger zerolog.Logger) *RateLimiter {
	if defaultPerMinute < 1 {
		defaultPerMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets:          make(map[string]*domainBucket),
		defaultPerMinute: defaultPerMinute,
		burst:            burst,
		now:              time.Now,
		sleep:            contextutils.Sleep,
		logger:           logger.With().Str("component", "RateLimiter").Logger(),
	}
}

// WithClock replaces the time source.
func (rl *RateLimiter) WithClock(now Clock) *RateLimiter {
	rl.now = now
	return rl
}

// WithSleeper replaces the wait function.
func (rl *RateLimiter) WithSleeper(sleep contextutils.SleepFunc) *RateLimiter {
	rl.sleep = sleep
	return rl
}

// WaitDuration is the time needed for a bucket holding tokens to reach one full
// token at refill tokens per second, rounded up to the millisecond.
func WaitDuration(tokens, refill float64) time.Duration {
	if tokens >= 1 || refill <= 0 {
		return 0
	}
	ms := math.Ceil((1 - tokens) / refill * 1000)
	return time.Duration(ms) * time.Millisecond
}

func (rl *RateLimiter) maxTokens(perMinute int) int {
	m := rl.burst
	if perMinute < m {
		m = perMinute
	}
	if m < 1 {
		m = 1
	}
	return m
}

func perSecond(perMinute int) rate.Limit {
	return rate.Limit(float64(perMinute) / 60.0)
}

// bucketLocked returns the bucket for key, creating it. rl.mu must be held.
func (rl *RateLimiter) bucketLocked(key string, now time.Time) *domainBucket {
	b, ok := rl.buckets[key]
	if !ok {
		b = &domainBucket{
			limiter:    rate.NewLimiter(perSecond(rl.defaultPerMinute), rl.maxTokens(rl.defaultPerMinute)),
			perMinute:  rl.defaultPerMinute,
			lastRefill: now,
		}
		rl.buckets[key] = b
	}
	return b
}

// SetRateLimit sets the requests-per-minute for key. Tokens already accrued are kept
// but clamped to the new bucket size.
func (rl *RateLimiter) SetRateLimit(key string, perMinute int) {
	if perMinute < 1 {
		perMinute = 1
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b := rl.bucketLocked(key, now)
	b.limiter.SetLimitAt(now, perSecond(perMinute))
	b.limiter.SetBurstAt(now, rl.maxTokens(perMinute))
	b.perMinute = perMinute

	rl.logger.Debug().Str("domain", key).Int("per_minute", perMinute).Msg("Rate limit set")
}

// ApplyCeiling lowers the rate for key to perMinute if it is currently higher.
func (rl *RateLimiter) ApplyCeiling(key string, perMinute int) {
	rl.mu.Lock()
	current := rl.bucketLocked(key, rl.now()).perMinute
	rl.mu.Unlock()

	if perMinute < current {
		rl.SetRateLimit(key, perMinute)
	}
}

// Acquire takes one token for key, waiting first if less than one token is
// available. It returns the time waited.
func (rl *RateLimiter) Acquire(ctx context.Context, key string) (time.Duration, error) {
	rl.mu.Lock()
	now := rl.now()
	b := rl.bucketLocked(key, now)

	// Earlier callers may already hold reservations in the future.
	base := now
	if b.lastRefill.After(base) {
		base = b.lastRefill
	}
	tokens := b.limiter.TokensAt(base)
	wait := base.Sub(now) + WaitDuration(tokens, float64(b.limiter.Limit()))

	at := now.Add(wait)
	reservation := b.limiter.ReserveN(at, 1)
	b.lastRefill = at
	rl.mu.Unlock()

	if wait <= 0 {
		return 0, nil
	}

	rl.logger.Debug().Str("domain", key).Dur("wait", wait).Float64("tokens", tokens).Msg("Rate limit wait")
	if err := rl.sleep(ctx, wait); err != nil {
		reservation.CancelAt(rl.now())
		return wait, err
	}
	return wait, nil
}

// State returns the bucket snapshot for key.
func (rl *RateLimiter) State(key string) (RateLimitState, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		return RateLimitState{}, false
	}
	now := rl.now()
	return RateLimitState{
		Tokens:     b.limiter.TokensAt(now),
		MaxTokens:  float64(b.limiter.Burst()),
		RefillRate: float64(b.limiter.Limit()),
		LastRefill: b.lastRefill,
	}, true
}

// PerMinute returns the configured rate for key, or the default.
func (rl *RateLimiter) PerMinute(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok := rl.buckets[key]; ok {
		return b.perMinute
	}
	return rl.defaultPerMinute
}

// Reset drops every bucket.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.buckets = make(map[string]*domainBucket)
}
