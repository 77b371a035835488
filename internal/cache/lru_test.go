package cache

import (
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Error("empty cache should miss")
	}

	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d %v", v, ok)
	}

	// "a" was just touched, so adding "c" evicts "b".
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive eviction")
	}
	if c.Size() != 2 {
		t.Errorf("Size = %d, want 2", c.Size())
	}
}

func TestLRUCacheDeleteAndPurge(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	c.Set("x", "1")
	c.Set("y", "2")

	c.Delete("x")
	if _, ok := c.Get("x"); ok {
		t.Error("deleted key still present")
	}

	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size after purge = %d", c.Size())
	}
	if _, ok := c.Get("y"); ok {
		t.Error("purged key still present")
	}
}

func TestLRUCacheTTL(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expired entry should miss")
	}
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired = %d, want 1", n)
	}
}
