package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventhour-gateway/middleware/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisWindow(t *testing.T, policy domain.Policy, clock *fakeClock) (*RedisSlidingWindow, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	w, err := NewRedisSlidingWindow(rdb, policy, WithRedisClock(clock.Now))
	require.NoError(t, err)
	return w, mr
}

func TestRedisSlidingWindow_AllowsUpToMaxThenDenies(t *testing.T) {
	clock := newFakeClock()
	w, mr := setupRedisWindow(t, domain.Policy{Name: "login", Window: time.Second, MaxRequests: 5}, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		dec, err := w.Take(ctx, "ip1")
		require.NoError(t, err)
		assert.True(t, dec.Allowed, "request %d", i+1)
		assert.Equal(t, 4-i, dec.Remaining)
		clock.Advance(10 * time.Millisecond)
	}

	dec, err := w.Take(ctx, "ip1")
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 950*time.Millisecond, dec.RetryAfter)

	members, err := mr.ZMembers("ratelimit:window:login:ip1")
	require.NoError(t, err)
	assert.Len(t, members, 5, "denied request must not be recorded")
}

func TestRedisSlidingWindow_WindowExpiry(t *testing.T) {
	clock := newFakeClock()
	w, _ := setupRedisWindow(t, domain.Policy{Name: "search", Window: time.Second, MaxRequests: 2}, clock)
	ctx := context.Background()

	_, _ = w.Take(ctx, "ip1")
	_, _ = w.Take(ctx, "ip1")
	dec, err := w.Take(ctx, "ip1")
	require.NoError(t, err)
	require.False(t, dec.Allowed)

	clock.Advance(1001 * time.Millisecond)
	dec, err = w.Take(ctx, "ip1")
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestRedisSlidingWindow_IsolationAndReset(t *testing.T) {
	clock := newFakeClock()
	w, mr := setupRedisWindow(t, domain.Policy{Name: "upload", Window: time.Minute, MaxRequests: 1}, clock)
	ctx := context.Background()

	dec, _ := w.Take(ctx, "ip1")
	require.True(t, dec.Allowed)
	dec, _ = w.Take(ctx, "ip1")
	require.False(t, dec.Allowed)

	dec, _ = w.Take(ctx, "ip2")
	assert.True(t, dec.Allowed, "ip2 must not be affected by ip1")

	require.NoError(t, w.Reset(ctx, "ip1"))
	assert.False(t, mr.Exists("ratelimit:window:upload:ip1"))

	dec, _ = w.Take(ctx, "ip1")
	assert.True(t, dec.Allowed)
}

func TestRedisSlidingWindow_SetsExpiry(t *testing.T) {
	clock := newFakeClock()
	w, mr := setupRedisWindow(t, domain.Policy{Name: "login", Window: 15 * time.Minute, MaxRequests: 5}, clock)

	_, err := w.Take(context.Background(), "ip1")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, mr.TTL("ratelimit:window:login:ip1"))
}

func TestRedisSlidingWindow_ErrorWhenRedisDown(t *testing.T) {
	clock := newFakeClock()
	w, mr := setupRedisWindow(t, domain.Policy{Name: "login", Window: time.Second, MaxRequests: 1}, clock)
	mr.Close()

	_, err := w.Take(context.Background(), "ip1")
	assert.Error(t, err)
}

func TestNewRedisSlidingWindow_RejectsInvalidPolicy(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer func() { _ = rdb.Close() }()

	_, err := NewRedisSlidingWindow(rdb, domain.Policy{Name: "login", Window: time.Second})
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
}
