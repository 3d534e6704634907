// Package ratelimit provides fixed-window rate limiting for the public
// verification endpoint: an in-process limiter for single-node and dev
// deployments, and a Redis-backed one so multi-node deployments share
// one counter space.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"signet/internal/domain"
)

// ErrCapacity reports that the in-process limiter tracks its maximum
// number of distinct keys and none could be evicted.
var ErrCapacity = errors.New("rate limiter key capacity exceeded")

type Memory struct {
	clock   func() time.Time
	maxKeys int

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count int
	reset time.Time
}

func NewMemory(maxKeys int, clock func() time.Time) *Memory {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	if clock == nil {
		clock = time.Now
	}
	return &Memory{
		clock:   clock,
		maxKeys: maxKeys,
		windows: make(map[string]*window),
	}
}

func (m *Memory) Allow(_ context.Context, key string, limit int, size time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	if size <= 0 {
		size = time.Second
	}
	now := m.clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if ok && !now.Before(w.reset) {
		delete(m.windows, key)
		ok = false
	}
	if !ok {
		if len(m.windows) >= m.maxKeys {
			m.evictExpired(now)
		}
		if len(m.windows) >= m.maxKeys {
			return domain.RateLimitDecision{}, ErrCapacity
		}
		w = &window{reset: now.Add(size)}
		m.windows[key] = w
	}

	// Counting past the limit mirrors the Redis limiter, which INCRs
	// unconditionally.
	w.count++
	decision := domain.RateLimitDecision{
		Allowed: w.count <= limit,
		Limit:   limit,
		ResetAt: w.reset,
	}
	if remaining := limit - w.count; remaining > 0 {
		decision.Remaining = remaining
	}
	return decision, nil
}

func (m *Memory) evictExpired(now time.Time) {
	for key, w := range m.windows {
		if !now.Before(w.reset) {
			delete(m.windows, key)
		}
	}
}
