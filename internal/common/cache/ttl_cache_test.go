package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTTLCache_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string, int](time.Hour).WithClock(clock.Now)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clock.Advance(59 * time.Minute)
	_, ok = c.Get("a")
	assert.True(t, ok, "entry should still be live before the TTL elapses")

	clock.Advance(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry should expire exactly at the TTL")
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_PurgeAndClear(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := New[string, string](time.Minute).WithClock(clock.Now)

	c.Set("old", "x")
	clock.Advance(2 * time.Minute)
	c.Set("new", "y")

	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_GetOrRefresh(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := New[string, []string](time.Hour).WithClock(clock.Now)
	calls := 0
	load := func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"book"}, nil
	}

	v, err := c.GetOrRefresh(context.Background(), "openstax", load)
	require.NoError(t, err)
	assert.Equal(t, []string{"book"}, v)

	_, err = c.GetOrRefresh(context.Background(), "openstax", load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second call should hit the cache")

	clock.Advance(time.Hour)
	_, err = c.GetOrRefresh(context.Background(), "openstax", load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "expired entry should be reloaded")
}

func TestTTLCache_GetOrRefreshDoesNotCacheErrors(t *testing.T) {
	c := New[string, int](time.Hour)
	boom := errors.New("boom")

	_, err := c.GetOrRefresh(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("k")
	assert.False(t, ok)
}
