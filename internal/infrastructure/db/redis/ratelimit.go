package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/empireo/brain/internal/core/ports"
)

// incrWithWindow increments the counter and starts its window on the first
// hit, in one round trip.
var incrWithWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RateLimiter is a fixed-window counter shared by every API instance.
// Key format: rate:<key>
type RateLimiter struct {
	client *redis.Client
	log    zerolog.Logger
}

var _ ports.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates a RateLimiter wrapping the given Redis client.
func NewRateLimiter(client *redis.Client, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{client: client, log: log}
}

// Allow counts a hit for key and reports whether the count is still within
// limit. A Redis failure lets the request through.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if key == "" {
		return false, errors.New("rate limit: empty key")
	}
	if limit <= 0 || window <= 0 {
		return false, fmt.Errorf("rate limit: invalid limit %d/%s", limit, window)
	}

	n, err := incrWithWindow.Run(ctx, r.client, []string{r.key(key)}, window.Milliseconds()).Int64()
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
		return true, nil
	}
	return n <= int64(limit), nil
}

func (r *RateLimiter) key(key string) string {
	return "rate:" + key
}
