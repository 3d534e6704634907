// Package cachemem caches certificate verification verdicts in process
// memory. Only the cryptographic verdict is cached; revocation state is
// always read fresh, so entries never go stale in a dangerous way.
package cachemem

import (
	"context"
	"sync"
	"time"

	"signet/internal/usecase"
)

type Cache struct {
	clock func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	valid     bool
	expiresAt time.Time
	hasExpiry bool
}

func New(clock func() time.Time) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		clock:   clock,
		entries: make(map[string]entry),
	}
}

func (c *Cache) Get(_ context.Context, key string) (bool, bool, error) {
	if c == nil {
		return false, false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false, false, nil
	}
	if e.hasExpiry && c.clock().After(e.expiresAt) {
		delete(c.entries, key)
		return false, false, nil
	}
	return e.valid, true, nil
}

func (c *Cache) Put(_ context.Context, key string, valid bool, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{valid: valid}
	if ttl > 0 {
		e.hasExpiry = true
		e.expiresAt = c.clock().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

var _ usecase.VerificationCache = (*Cache)(nil)
