package lockout

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "workbench:mfa:fail:"

// RedisLimiter keeps one counter per key that expires a window after the
// first failure, so every instance behind a load balancer sees the same
// budget.
type RedisLimiter struct {
	client redis.UniversalClient
	cfg    Config
}

func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg.withDefaults()}
}

func (l *RedisLimiter) key(k string) string { return redisKeyPrefix + k }

func (l *RedisLimiter) Check(ctx context.Context, key string) error {
	count, err := l.client.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= int64(l.cfg.MaxFailures) {
		return ErrLocked
	}
	return nil
}

// RecordFailure increments the counter and arms its expiry in one
// transaction. ExpireNX only sets a TTL the key does not already have, so
// the window runs from the first failure and a counter left without one is
// healed on the next failure.
func (l *RedisLimiter) RecordFailure(ctx context.Context, key string) error {
	k := l.key(key)
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.cfg.Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if incr.Val() >= int64(l.cfg.MaxFailures) {
		return ErrLocked
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping backs the readiness check.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// NewRedisClient parses a redis:// or rediss:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("lockout: parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
