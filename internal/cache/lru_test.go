// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLRU_BasicOperations(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, float64](3, 0)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	for key, want := range map[string]float64{"a": 1, "b": 2, "c": 3} {
		got, ok := c.Get(key)
		if !ok {
			t.Errorf("Get(%q) missing", key)
			continue
		}
		if got != want {
			t.Errorf("Get(%q) = %v, want %v", key, got, want)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestLRU_Eviction(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, int](3, 0)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// touch a so b becomes the eviction candidate
	c.Get("a")

	if evicted := c.Add("d", 4); !evicted {
		t.Error("expected Add to report an eviction at capacity")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("expected %q to be present", key)
		}
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestLRU_TTLExpiration(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	c := NewLRU[string, int](10, time.Minute)
	c.SetNow(func() time.Time { return now })

	c.Add("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Peek("a"); ok {
		t.Error("Peek returned an expired entry")
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Get returned an expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after expiry, want 0", c.Len())
	}
}

func TestLRU_ZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	c := NewLRU[string, int](10, 0)
	c.SetNow(func() time.Time { return now })

	c.Add("a", 1)
	now = now.Add(1000 * time.Hour)
	if _, ok := c.Get("a"); !ok {
		t.Error("entry expired with TTL disabled")
	}
}

func TestLRU_PeekDoesNotTouch(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, int](2, 0)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Peek("a")
	c.Add("c", 3)

	if _, ok := c.Peek("a"); ok {
		t.Error("Peek must not refresh recency; a should have been evicted")
	}
	stats := c.Stats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Peek changed stats: %+v", stats)
	}
}

func TestLRU_Clear(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, int](10, 0)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)
	c.Get("a")

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Get after Clear found a")
	}
}

func TestLRU_DefaultCapacity(t *testing.T) {
	t.Parallel()

	c := NewLRU[int, int](0, -time.Second)
	if got := c.Stats().Capacity; got != DefaultLRUCapacity {
		t.Errorf("Capacity = %d, want %d", got, DefaultLRUCapacity)
	}
}

func TestLRU_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, int](100, 0)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", (g*i)%150)
				c.Add(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("Len() = %d exceeds capacity 100", c.Len())
	}
}
