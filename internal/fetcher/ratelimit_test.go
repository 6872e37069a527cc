package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(perMinute, burst int) (*RateLimiter, *fakeTime) {
	ft := newFakeTime()
	rl := NewRateLimiter(perMinute, burst, zerolog.Nop()).WithClock(ft.Now).WithSleeper(ft.Sleep)
	return rl, ft
}

func TestWaitDuration(t *testing.T) {
	tests := []struct {
		name   string
		tokens float64
		refill float64
		want   time.Duration
	}{
		{"full token", 1, 0.5, 0},
		{"empty at 30 per minute", 0, 0.5, 2000 * time.Millisecond},
		{"quarter token at 1 per second", 0.25, 1, 750 * time.Millisecond},
		{"rounds up", 0, 0.3, 3334 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WaitDuration(tt.tokens, tt.refill))
		})
	}
}

func TestRateLimiter_RefillIsCapped(t *testing.T) {
	rl, ft := newTestLimiter(30, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		wait, err := rl.Acquire(ctx, "openstax.org")
		require.NoError(t, err)
		assert.Zero(t, wait)
	}

	state, ok := rl.State("openstax.org")
	require.True(t, ok)
	assert.InDelta(t, 0, state.Tokens, 1e-9)
	assert.Equal(t, 3.0, state.MaxTokens)
	assert.Equal(t, 0.5, state.RefillRate)

	for _, step := range []struct {
		advance time.Duration
		want    float64
	}{
		{1 * time.Second, 0.5},
		{1 * time.Second, 1.0},
		{3 * time.Second, 2.5},
		{10 * time.Second, 3.0},
	} {
		ft.Advance(step.advance)
		state, _ = rl.State("openstax.org")
		assert.InDelta(t, step.want, state.Tokens, 1e-9)
	}
}

func TestRateLimiter_WaitsForNextToken(t *testing.T) {
	rl, ft := newTestLimiter(60, 1)
	ctx := context.Background()

	_, err := rl.Acquire(ctx, "docs.python.org")
	require.NoError(t, err)

	ft.Advance(250 * time.Millisecond)
	wait, err := rl.Acquire(ctx, "docs.python.org")
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, wait)
	assert.Equal(t, []time.Duration{750 * time.Millisecond}, ft.Sleeps())

	state, _ := rl.State("docs.python.org")
	assert.InDelta(t, 0, state.Tokens, 1e-9, "exactly one token consumed per acquire")
}

func TestRateLimiter_DomainsAreIndependent(t *testing.T) {
	rl, ft := newTestLimiter(60, 1)
	ctx := context.Background()

	_, _ = rl.Acquire(ctx, "a.example")
	wait, err := rl.Acquire(ctx, "b.example")
	require.NoError(t, err)
	assert.Zero(t, wait)
	assert.Empty(t, ft.Sleeps())
}

func TestRateLimiter_SetRateLimitAndCeiling(t *testing.T) {
	rl, _ := newTestLimiter(30, 3)

	rl.SetRateLimit("ocw.mit.edu", 2)
	state, ok := rl.State("ocw.mit.edu")
	require.True(t, ok)
	assert.InDelta(t, 2.0/60.0, state.RefillRate, 1e-9)
	assert.Equal(t, 2.0, state.MaxTokens, "bucket is capped at the per-minute rate")
	assert.LessOrEqual(t, state.Tokens, 2.0)

	rl.ApplyCeiling("ocw.mit.edu", 6)
	assert.Equal(t, 2, rl.PerMinute("ocw.mit.edu"), "ceiling never raises the rate")

	rl.ApplyCeiling("openstax.org", 6)
	assert.Equal(t, 6, rl.PerMinute("openstax.org"))

	rl.Reset()
	_, ok = rl.State("ocw.mit.edu")
	assert.False(t, ok)
	assert.Equal(t, 30, rl.PerMinute("ocw.mit.edu"))
}

func TestRateLimiter_CancelledWait(t *testing.T) {
	rl := NewRateLimiter(60, 1, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	_, err := rl.Acquire(ctx, "example.org")
	require.NoError(t, err)

	cancel()
	_, err = rl.Acquire(ctx, "example.org")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelay(t *testing.T) {
	base := 1000 * time.Millisecond
	assert.Equal(t, 1000*time.Millisecond, BackoffDelay(base, 0))
	assert.Equal(t, 2000*time.Millisecond, BackoffDelay(base, 1))
	assert.Equal(t, 4000*time.Millisecond, BackoffDelay(base, 2))
}
