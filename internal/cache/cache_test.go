package cache

import (
	"sync"
	"testing"
	"time"
)

func TestTTLGetSet(t *testing.T) {
	c := NewTTL[string, int](time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get = (%d, %v), want (1, true)", v, ok)
	}

	c.Set("a", 2)
	v, _ = c.Get("a")
	if v != 2 {
		t.Fatalf("Get after overwrite = %d, want 2", v)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewTTL[string, string](time.Minute)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Set("k", "v")

	now = base.Add(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired before TTL elapsed")
	}

	now = base.Add(61 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry still readable after TTL elapsed")
	}
}

func TestTTLSweep(t *testing.T) {
	c := NewTTL[int, int](time.Minute)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		c.Set(i, i)
	}
	now = base.Add(30 * time.Second)
	c.Set(99, 99)

	now = base.Add(90 * time.Second)
	removed := c.Sweep()
	if removed != 5 {
		t.Fatalf("Sweep removed %d, want 5", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d after sweep, want 1", c.Len())
	}
	if _, ok := c.Get(99); !ok {
		t.Fatal("unexpired entry swept")
	}
}

func TestTTLDelete(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	c.Set("k", 1)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry readable after Delete")
	}
	c.Delete("k") // deleting absent key is a no-op
}

func TestTTLConcurrent(t *testing.T) {
	c := NewTTL[int, int](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(j%10, n)
				c.Get(j % 10)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 10 {
		t.Fatalf("Len = %d, want 10", c.Len())
	}
}
