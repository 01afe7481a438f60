package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWithTTL increments a counter and sets its TTL on first use, so rate
// windows expire on their own.
func incrWithTTL(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}
