package cache

import (
	"testing"
	"time"
)

func TestGetSetAndEviction(t *testing.T) {
	c := NewLRU[string](2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")

	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("get a: %q ok=%v", v, ok)
	}

	// "b" is now least recently used and evicted by the third insert.
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should survive eviction")
	}
	if c.Size() != 2 {
		t.Fatalf("size: %d", c.Size())
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewLRU[int](10, 10*time.Millisecond)
	c.Set("k", 42)

	if _, ok := c.Get("k"); !ok {
		t.Fatalf("fresh entry missing")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expired entry returned")
	}
}

func TestCleanExpired(t *testing.T) {
	c := NewLRU[int](10, 10*time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)

	time.Sleep(20 * time.Millisecond)
	c.Set("c", 3)

	if cleaned := c.CleanExpired(); cleaned != 2 {
		t.Fatalf("cleaned %d, want 2", cleaned)
	}
	if c.Size() != 1 {
		t.Fatalf("size after clean: %d", c.Size())
	}
}

func TestKeyChangesWithVersion(t *testing.T) {
	if Key("u1", "year", 1) == Key("u1", "year", 2) {
		t.Fatalf("version should change the key")
	}
	if Key("u1", "year", 1) == Key("u2", "year", 1) {
		t.Fatalf("uid should change the key")
	}
}
