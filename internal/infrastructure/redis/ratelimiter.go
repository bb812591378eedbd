package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// reserveScript counts one attempt unless the window is already full. Check
// and increment are a single server-side step.
// KEYS[1] counter key, ARGV[1] max attempts, ARGV[2] window in milliseconds.
var reserveScript = goredis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
	return 0
end
redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// RateLimiter is a fixed-window attempt counter. The window of a key opens on
// its first hit and the key expires when the window closes.
type RateLimiter struct {
	client goredis.Cmdable
}

func NewRateLimiter(client goredis.Cmdable) *RateLimiter {
	return &RateLimiter{client: client}
}

// Reserve counts one attempt against key and reports whether it fits within
// max. A rejected reservation leaves the counter and its window unchanged.
func (l *RateLimiter) Reserve(ctx context.Context, key string, max int, decay time.Duration) (bool, error) {
	ok, err := reserveScript.Run(ctx, l.client, []string{rateLimitPrefix + key}, max, decay.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return ok == 1, nil
}

func (l *RateLimiter) AvailableIn(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.client.PTTL(ctx, rateLimitPrefix+key).Result()
	if err != nil {
		return 0, err
	}
	// Missing keys and keys without expiry report negative values.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (l *RateLimiter) Clear(ctx context.Context, key string) error {
	return l.client.Del(ctx, rateLimitPrefix+key).Err()
}
