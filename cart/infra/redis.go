package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventhour-gateway/cart/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStorage guarda cada snapshot como string. Com ttl > 0 a chave expira
// depois de ttl sem gravações.
type RedisStorage struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStorage(rdb redis.Cmdable, ttl time.Duration) *RedisStorage {
	return &RedisStorage{rdb: rdb, ttl: ttl}
}

func (s *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return b, nil
}

func (s *RedisStorage) Save(ctx context.Context, key string, data []byte) error {
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}
