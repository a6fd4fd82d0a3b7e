package cache

import (
	"sync"
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string](2, 0)

	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache returned a value")
	}

	c.Set("a", "1")
	c.Set("b", "2")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}

	// "b" is now least recently used
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	c.Set("a", "updated")
	if v, _ := c.Get("a"); v != "updated" {
		t.Errorf("Get(a) after overwrite = %q", v)
	}

	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
	if stats.Hits != 2 || stats.Misses != 2 {
		t.Errorf("Hits/Misses = %d/%d, want 2/2", stats.Hits, stats.Misses)
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", 42)
	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Fatalf("Get(k) = %d, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry still counted: %d", c.Size())
	}
}

func TestLRUCache_MinimumSize(t *testing.T) {
	c := NewLRUCache[int](0, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := NewLRUCache[int](64, 0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a' + (i+j)%26))
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if c.Size() > 26 {
		t.Errorf("Size() = %d, want at most 26", c.Size())
	}
}

func TestStats_HitRatio(t *testing.T) {
	if got := (Stats{}).HitRatio(); got != 0 {
		t.Errorf("empty HitRatio() = %v", got)
	}
	if got := (Stats{Hits: 3, Misses: 1}).HitRatio(); got != 0.75 {
		t.Errorf("HitRatio() = %v, want 0.75", got)
	}
}
