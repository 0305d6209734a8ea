package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventhour-gateway/middleware/ratelimit/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript faz trim/contagem/registro atomicamente.
// Scores em milissegundos Unix. Retorna {allowed, count, oldest}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {0, count, tonumber(oldest[2])}
end

redis.call('ZADD', key, ARGV[1], ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1, 0}
`)

// RedisSlidingWindow é a mesma janela deslizante do SlidingWindow, mas com os
// instantes num sorted set do Redis, compartilhado entre instâncias do gateway.
//
// O PEXPIRE no registro faz o próprio Redis descartar identificadores inativos.
type RedisSlidingWindow struct {
	rdb redis.Cmdable

	prefix      string
	policy      string
	window      time.Duration
	maxRequests int
	now         func() time.Time
}

type RedisWindowOption func(*RedisSlidingWindow)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisSlidingWindow) { s.prefix = strings.Trim(prefix, ":") }
}

func WithRedisClock(now func() time.Time) RedisWindowOption {
	return func(s *RedisSlidingWindow) { s.now = now }
}

func NewRedisSlidingWindow(rdb redis.Cmdable, policy domain.Policy, opts ...RedisWindowOption) (*RedisSlidingWindow, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if rdb == nil {
		return nil, fmt.Errorf("%w: redis client is required", domain.ErrInvalidConfig)
	}

	s := &RedisSlidingWindow{
		rdb:         rdb,
		prefix:      "ratelimit:window",
		policy:      policy.Name,
		window:      policy.Window,
		maxRequests: policy.MaxRequests,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisSlidingWindow) Take(ctx context.Context, key domain.Key) (domain.Decision, error) {
	now := s.now()
	nowMs := now.UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	res, err := slidingWindowScript.Run(ctx, s.rdb,
		[]string{s.redisKey(key)},
		nowMs, s.window.Milliseconds(), s.maxRequests, member,
	).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(res) != 3 {
		return domain.Decision{}, fmt.Errorf("redis sliding window: unexpected reply %v", res)
	}

	count := int(res[1])
	if res[0] == 1 {
		return domain.Decision{
			Allowed:   true,
			Limit:     s.maxRequests,
			Remaining: s.maxRequests - count,
		}, nil
	}

	retry := time.Duration(res[2]+s.window.Milliseconds()-nowMs) * time.Millisecond
	if retry < 0 {
		retry = 0
	}
	return domain.Decision{
		Allowed:    false,
		Limit:      s.maxRequests,
		Remaining:  0,
		RetryAfter: retry,
	}, nil
}

func (s *RedisSlidingWindow) Reset(ctx context.Context, key domain.Key) error {
	if err := s.rdb.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis sliding window reset: %w", err)
	}
	return nil
}

func (s *RedisSlidingWindow) redisKey(key domain.Key) string {
	parts := []string{s.prefix}
	if s.policy != "" {
		parts = append(parts, s.policy)
	}
	parts = append(parts, strings.TrimSpace(string(key)))
	return strings.Join(parts, ":")
}
