package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides fixed-window rate limit checks. Implementations count
// requests per source key within a window of the given duration; the count
// resets at window boundaries, so bursts straddling a boundary may briefly
// exceed the limit. That imprecision is inherent to the fixed-window
// algorithm and accepted here.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}
