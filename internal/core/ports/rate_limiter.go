package ports

import (
	"context"
	"time"
)

// RateLimiter counts hits per key in a shared store. The counter expires
// window after the first hit.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
