package infra

import (
	"context"
	"strings"
	"time"

	"eventhour-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

const (
	StatsBucketMinute = "minute"
	StatsBucketNone   = "none"
)

// RedisStatsStore grava contadores em hashes:
//
//	<prefix>:total           allowed/denied (cumulativo, sem TTL)
//	<prefix>:minute:<yyyymmddhhmm>
//	<prefix>:route           "<METHOD> <path>:<allowed|denied>"
//	<prefix>:policy          "<policy>:<allowed|denied>"
//	<prefix>:key:<key>       só com trackKeys
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix string
	// ttl vale para as séries por minuto e por key.
	ttl time.Duration

	bucket string

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: StatsBucketMinute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if s.bucket == StatsBucketMinute {
		bucketKey := s.prefix + ":minute:" + at.UTC().Format("200601021504")
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	if p := strings.TrimSpace(ev.Policy); p != "" {
		pipe.HIncrBy(ctx, s.prefix+":policy", p+":"+field, 1)
	}

	if s.trackKeys {
		if k := strings.TrimSpace(string(ev.Key)); k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
