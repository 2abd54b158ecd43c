package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often expired counters are purged.
const sweepInterval = 5 * time.Minute

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter implements a fixed-window in-memory rate limiter. Counters
// are process-local: restarts reset them and horizontally scaled instances
// each keep their own buckets.
type MemoryLimiter struct {
	mu        sync.Mutex
	counters  map[string]*memoryEntry
	nextSweep time.Time
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[string]*memoryEntry),
	}
}

// Allow checks whether the request should be allowed in the current window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	if window <= 0 {
		window = time.Minute
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	entry := l.counters[key]
	if entry == nil || !now.Before(entry.resetAt) {
		entry = &memoryEntry{count: 1, resetAt: now.Add(window)}
		l.counters[key] = entry
		return Result{Allowed: true, Remaining: limit - 1, Reset: entry.resetAt}, nil
	}
	if entry.count >= limit {
		return Result{Allowed: false, Remaining: 0, Reset: entry.resetAt}, nil
	}
	entry.count++
	return Result{Allowed: true, Remaining: limit - entry.count, Reset: entry.resetAt}, nil
}

// Sweep removes expired counters so the map stays bounded by the number of
// distinct sources seen within one window.
func (l *MemoryLimiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.counters {
		if !now.Before(entry.resetAt) {
			delete(l.counters, key)
		}
	}
	l.nextSweep = now.Add(sweepInterval)
}

func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for key, entry := range l.counters {
		if !now.Before(entry.resetAt) {
			delete(l.counters, key)
		}
	}
	l.nextSweep = now.Add(sweepInterval)
}
