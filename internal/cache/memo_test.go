package cache

import (
	"testing"
	"time"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New[int](time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("unexpected hit on empty cache")
	}

	c.Set("a", 42)
	v, ok := c.Get("a")
	if !ok || v != 42 {
		t.Errorf("Get(a) = %v, %v; want 42, true", v, ok)
	}
}

func TestLazyExpiry(t *testing.T) {
	c := New[string](10 * time.Millisecond)
	c.Set("k", "v")
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry returned")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not deleted on read, len = %d", c.Len())
	}
}

func TestGetWithTTLOverride(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("k", "v")
	time.Sleep(15 * time.Millisecond)

	if _, ok := c.Get("k"); !ok {
		t.Error("entry expired under default TTL")
	}
	if _, ok := c.GetWithTTL("k", 10*time.Millisecond); ok {
		t.Error("entry survived a tighter TTL override")
	}
}

func TestInvalidate(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("a", 1)
	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("invalidated entry returned")
	}
}

func TestInvalidatePattern(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("price:BTC", 1)
	c.Set("price:ETH", 2)
	c.Set("meta:BTC", 3)

	n, err := c.InvalidatePattern(`^price:`)
	if err != nil {
		t.Fatalf("InvalidatePattern: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d entries, want 2", n)
	}
	if _, ok := c.Get("meta:BTC"); !ok {
		t.Error("non-matching entry removed")
	}

	if _, err := c.InvalidatePattern(`[`); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestSweep(t *testing.T) {
	c := New[int](10 * time.Millisecond)
	c.Set("old", 1)
	time.Sleep(20 * time.Millisecond)
	c.Set("fresh", 2)

	c.Sweep()
	if c.Len() != 1 {
		t.Errorf("len after sweep = %d, want 1", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry swept")
	}
}
