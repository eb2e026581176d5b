package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clubops/platform/internal"
)

// RedisLoginLimiter throttles failed logins per identifier using a Redis
// counter with a cooldown TTL. Redis outages fail open: availability of
// login beats the throttle, and every failure is still audited.
type RedisLoginLimiter struct {
	client      redis.UniversalClient
	prefix      string
	maxAttempts int
	cooldown    time.Duration
}

func NewRedisLoginLimiter(client redis.UniversalClient, maxAttempts int, cooldown time.Duration) *RedisLoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	return &RedisLoginLimiter{
		client:      client,
		prefix:      "authfail",
		maxAttempts: maxAttempts,
		cooldown:    cooldown,
	}
}

func (l *RedisLoginLimiter) key(identifier string) string {
	return fmt.Sprintf("%s:%s", l.prefix, identifier)
}

func (l *RedisLoginLimiter) Check(ctx context.Context, identifier string) error {
	val, err := l.client.Get(ctx, l.key(identifier)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return nil // fail open
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return nil
	}
	if count >= l.maxAttempts {
		return internal.ErrTooManyAttempts
	}
	return nil
}

func (l *RedisLoginLimiter) RecordFailure(ctx context.Context, identifier string) error {
	key := l.key(identifier)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.cooldown).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (l *RedisLoginLimiter) Reset(ctx context.Context, identifier string) error {
	return l.client.Del(ctx, l.key(identifier)).Err()
}
