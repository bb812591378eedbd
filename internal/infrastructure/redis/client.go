// Package redis holds the shared Redis adapters: the fixed-window attempt
// limiter used by the two-factor gate and the record lookup cache.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Connect accepts a redis:// URL or a bare host:port and pings the server.
func Connect(ctx context.Context, redisURL string) (*goredis.Client, error) {
	var opt *goredis.Options
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := goredis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &goredis.Options{Addr: redisURL}
	}

	client := goredis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
