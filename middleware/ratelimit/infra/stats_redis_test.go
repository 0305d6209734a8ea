package infra

import (
	"context"
	"testing"
	"time"

	"eventhour-gateway/middleware/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStatsStore_RecordsAllSeries(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	s := NewRedisStatsStore(rdb, WithStatsPrefix("rl:stats:"), WithStatsTTL(time.Hour), WithStatsTrackKeys(true))
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "ip1", Policy: "login", Allowed: false, Method: "POST", Path: "/api/auth/login", At: at}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "ip1", Policy: "login", Allowed: true, Method: "POST", Path: "/api/auth/login", At: at}))

	assert.Equal(t, "1", mr.HGet("rl:stats:total", "denied"))
	assert.Equal(t, "1", mr.HGet("rl:stats:total", "allowed"))
	assert.Equal(t, "1", mr.HGet("rl:stats:minute:202403011230", "denied"))
	assert.Equal(t, time.Hour, mr.TTL("rl:stats:minute:202403011230"))
	assert.Equal(t, "1", mr.HGet("rl:stats:route", "POST /api/auth/login:denied"))
	assert.Equal(t, "1", mr.HGet("rl:stats:policy", "login:allowed"))
	assert.Equal(t, "1", mr.HGet("rl:stats:key:ip1", "denied"))
	assert.Equal(t, time.Duration(0), mr.TTL("rl:stats:total"), "total must not expire")
}

func TestRedisStatsStore_NoMinuteBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	s := NewRedisStatsStore(rdb, WithStatsBucket(" NONE "))
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Key: "ip1", Allowed: true}))

	keys := mr.Keys()
	assert.Equal(t, []string{"ratelimit:stats:total"}, keys)
}

func TestRedisStatsStore_NilIsNoop(t *testing.T) {
	var s *RedisStatsStore
	assert.NoError(t, s.Record(context.Background(), domain.StatsEvent{}))
}
