package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces limiter counters in Redis.
const KeyPrefix = "agritracker:ratelimit:"

var allowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RedisLimiter shares fixed windows between server instances.
type RedisLimiter struct {
	client redis.Scripter
	now    func() time.Time
}

// NewRedisLimiter connects to the Redis server at addr.
func NewRedisLimiter(addr, password string, db int, now func() time.Time) (*RedisLimiter, error) {
	if addr == "" {
		return nil, errors.New("ratelimit: redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return newRedisLimiter(client, now), nil
}

func newRedisLimiter(client redis.Scripter, now func() time.Time) *RedisLimiter {
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{client: client, now: now}
}

// Ping checks the connection.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	c, ok := r.client.(*redis.Client)
	if !ok {
		return nil
	}
	return c.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisLimiter) Close() error {
	if c, ok := r.client.(*redis.Client); ok {
		return c.Close()
	}
	return nil
}

// Allow records a hit for key.
func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1000
	}
	res, err := allowScript.Run(ctx, r.client, []string{KeyPrefix + key}, ms).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: run script: %w", err)
	}
	return decide(res, limit, r.now())
}

// decide converts the script reply {count, pttl} into a Decision.
func decide(res any, limit int, now time.Time) (Decision, error) {
	values, ok := res.([]any)
	if !ok || len(values) < 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected reply %v", res)
	}
	count, ok := values[0].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("ratelimit: bad counter %v", values[0])
	}
	resetAt := now
	if ttl, _ := values[1].(int64); ttl > 0 {
		resetAt = now.Add(time.Duration(ttl) * time.Millisecond)
	}
	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: max(limit-int(count), 0),
		ResetAt:   resetAt,
	}, nil
}
