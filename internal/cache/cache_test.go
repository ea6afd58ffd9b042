package cache

import (
	"testing"

	lru "github.com/hashicorp/golang-lru/v2"
)

func TestPeekDoesNotPopulate(t *testing.T) {
	c := New()
	if _, ok := c.Peek("deadbeef"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	if c.Len() != 0 {
		t.Fatalf("peek on a miss must not populate the cache, got len=%d", c.Len())
	}
}

func TestPutThenPeek(t *testing.T) {
	c := New()
	c.Put("deadbeef", BlockBase{ID: 7, Height: 3})

	got, ok := c.Peek("deadbeef")
	if !ok {
		t.Fatalf("expected hit after put")
	}
	if got.ID != 7 || got.Height != 3 {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestClear(t *testing.T) {
	c := New()
	c.Put("a", BlockBase{ID: 1})
	c.Put("b", BlockBase{ID: 2})
	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, got len=%d", c.Len())
	}
	if _, ok := c.Peek("a"); ok {
		t.Fatalf("expected miss after Clear")
	}
}

func TestPeekDoesNotDisturbEvictionOrder(t *testing.T) {
	// Regression guard for the "peek must not update recency" contract:
	// repeatedly peeking the oldest entry must not save it from eviction
	// once the cache is driven past capacity by new, distinct keys. The
	// production capacity (400k) is too large to fill here, so the cache
	// wraps a two-entry LRU built with the underlying library directly.
	small, err := lru.New[string, BlockBase](2)
	if err != nil {
		t.Fatalf("build small lru: %v", err)
	}
	c := &BlockCache{lru: small}
	c.Put("oldest", BlockBase{ID: 1})
	c.Put("second", BlockBase{ID: 2})
	for i := 0; i < 1000; i++ {
		c.Peek("oldest")
	}
	c.Put("third", BlockBase{ID: 3})

	if _, ok := c.Peek("oldest"); ok {
		t.Fatalf("repeated peeks must not save the oldest entry from eviction")
	}
	if _, ok := c.Peek("second"); !ok {
		t.Fatalf("expected the more recently put entry to survive eviction")
	}
	if c.Len() != 2 {
		t.Fatalf("peek must be non-mutating, got len=%d", c.Len())
	}
}
