package lru

import (
	"testing"
)

func TestCache_Get(t *testing.T) {
	lru := New[string, int](0, nil)
	lru.Set("key1", 1)
	if v, ok := lru.Get("key1"); !ok || v != 1 {
		t.Fatalf("cache hit key1=1 failed, got %v %v\n", v, ok)
	}
	if _, ok := lru.Get("key2"); ok {
		t.Fatalf("hit not cache key=key2\n")
	}
}

func TestCache_SetReturnsPrevious(t *testing.T) {
	lru := New[string, int](0, nil)
	if _, ok := lru.Set("k", 1); ok {
		t.Fatalf("first set should not report a previous value\n")
	}
	if v, ok := lru.Set("k", 2); !ok || v != 1 {
		t.Fatalf("expected previous value 1, got %v %v\n", v, ok)
	}
	if v, _ := lru.Get("k"); v != 2 {
		t.Fatalf("expected 2, got %v\n", v)
	}
}

func TestCache_EvictOldest(t *testing.T) {
	lru := New[string, int](2, nil)
	lru.Set("key1", 1)
	lru.Set("key2", 2)
	// 访问key1，key2成为最久未访问
	lru.Get("key1")
	lru.Set("key3", 3)

	if _, ok := lru.Get("key2"); ok || lru.Len() != 2 {
		t.Fatalf("evict oldest key2 failed, len=%d\n", lru.Len())
	}
	if _, ok := lru.Get("key1"); !ok {
		t.Fatalf("key1 should remain\n")
	}
}

func TestCache_Del(t *testing.T) {
	lru := New[string, int](0, nil)
	lru.Set("key1", 1)
	lru.Set("key2", 2)
	if v, ok := lru.Del("key1"); !ok || v != 1 {
		t.Fatalf("del key1 failed, got %v %v\n", v, ok)
	}
	if _, ok := lru.Del("key1"); ok {
		t.Fatalf("second del of key1 should miss\n")
	}
	if _, ok := lru.Get("key1"); ok || lru.Len() != 1 {
		t.Fatalf("remove key1 failed, len=%d\n", lru.Len())
	}
}

func TestCache_OnEvicted(t *testing.T) {
	var evictedKey string
	var evictedValue int
	lru := New(2, func(key string, value int) {
		evictedKey = key
		evictedValue = value
	})
	lru.Set("key1", 1)
	lru.Set("key2", 2)
	lru.Set("key3", 3)
	if evictedKey != "key1" || evictedValue != 1 {
		t.Fatalf("evicted failed; evicted key = %v, value = %v\n", evictedKey, evictedValue)
	}
}

func TestCache_Clear(t *testing.T) {
	evictions := 0
	lru := New(0, func(string, int) { evictions++ })
	lru.Set("key1", 1)
	lru.Set("key2", 2)
	lru.Clear()
	if lru.Len() != 0 || evictions != 0 {
		t.Fatalf("clear failed, len=%d evictions=%d\n", lru.Len(), evictions)
	}
	if _, _, ok := lru.Evict(); ok {
		t.Fatalf("evict on empty cache should report false\n")
	}
}
