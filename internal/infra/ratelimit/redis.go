package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"signet/internal/domain"
)

// Redis is a fixed-window limiter whose counters live in Redis. The
// count-and-expire step runs as one Lua script so concurrent requests
// hitting different nodes agree on the window.
type Redis struct {
	client redis.Cmdable
	clock  func() time.Time
}

var incrWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

func NewRedis(client redis.Cmdable, clock func() time.Time) *Redis {
	if clock == nil {
		clock = time.Now
	}
	return &Redis{client: client, clock: clock}
}

func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	millis := window.Milliseconds()
	if millis <= 0 {
		millis = time.Second.Milliseconds()
	}

	raw, err := incrWindowScript.Run(ctx, r.client, []string{"ratelimit:" + key}, millis).Result()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit script: %w", err)
	}
	values, ok := raw.([]any)
	if !ok || len(values) != 2 {
		return domain.RateLimitDecision{}, errors.New("unexpected rate limit script reply")
	}
	count, ok := values[0].(int64)
	if !ok {
		return domain.RateLimitDecision{}, errors.New("unexpected rate limit counter reply")
	}
	ttl, _ := values[1].(int64)

	resetAt := r.clock()
	if ttl > 0 {
		resetAt = resetAt.Add(time.Duration(ttl) * time.Millisecond)
	}
	decision := domain.RateLimitDecision{
		Allowed: count <= int64(limit),
		Limit:   limit,
		ResetAt: resetAt,
	}
	if remaining := int64(limit) - count; remaining > 0 {
		decision.Remaining = int(remaining)
	}
	return decision, nil
}
