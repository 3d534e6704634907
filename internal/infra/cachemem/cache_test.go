package cachemem

import (
	"context"
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	if _, ok, _ := c.Get(ctx, "missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	if err := c.Put(ctx, "cert-1", true, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.Put(ctx, "cert-2", false, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}

	valid, ok, err := c.Get(ctx, "cert-1")
	if err != nil || !ok || !valid {
		t.Fatalf("Get cert-1 = (%v, %v, %v), want (true, true, nil)", valid, ok, err)
	}
	valid, ok, err = c.Get(ctx, "cert-2")
	if err != nil || !ok || valid {
		t.Fatalf("Get cert-2 = (%v, %v, %v), want (false, true, nil)", valid, ok, err)
	}
}

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := New(func() time.Time { return now })
	ctx := context.Background()

	c.Put(ctx, "cert-1", true, time.Minute)

	if _, ok, _ := c.Get(ctx, "cert-1"); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(time.Minute + time.Second)
	if _, ok, _ := c.Get(ctx, "cert-1"); ok {
		t.Fatal("expected miss after expiry")
	}
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := New(func() time.Time { return now })
	ctx := context.Background()

	c.Put(ctx, "cert-1", true, 0)
	now = now.Add(365 * 24 * time.Hour)

	if _, ok, _ := c.Get(ctx, "cert-1"); !ok {
		t.Fatal("zero TTL entry should not expire")
	}
}

func TestCacheOverwrite(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	c.Put(ctx, "cert-1", true, 0)
	c.Put(ctx, "cert-1", false, 0)

	valid, ok, _ := c.Get(ctx, "cert-1")
	if !ok || valid {
		t.Fatalf("Get = (%v, %v), want (false, true)", valid, ok)
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	if err := c.Put(ctx, "k", true, 0); err != nil {
		t.Fatalf("Put on nil cache: %v", err)
	}
	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("Get on nil cache = (ok=%v, err=%v)", ok, err)
	}
}
