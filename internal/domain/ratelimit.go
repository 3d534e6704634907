package domain

import (
	"context"
	"time"
)

// RateLimitDecision is the outcome of one Allow call. Limit, Remaining
// and ResetAt describe the fixed window the key landed in, whether the
// call was admitted or not, so handlers can always emit rate headers.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter admits or rejects a key within a fixed window. The
// public verification route keys on client IP; backends may evict old
// keys, which at worst grants a caller a fresh window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
