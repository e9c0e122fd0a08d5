package synthcache

import (
	"fmt"
	"testing"
)

func entry(s string) *Entry {
	return &Entry{Audio: []byte(s), ContentType: "audio/mpeg"}
}

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU(2)
	c.Put("a", entry("a"))
	c.Put("b", entry("b"))
	c.Put("c", entry("c"))

	if _, ok := c.Get("a"); ok {
		t.Fatal("oldest entry survived eviction")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("entry b evicted too early")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("newest entry missing")
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
}

func TestLRUGetRefreshesRecency(t *testing.T) {
	c := NewLRU(2)
	c.Put("a", entry("a"))
	c.Put("b", entry("b"))

	// Touch a so that b becomes the eviction candidate.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry a missing")
	}
	c.Put("c", entry("c"))

	if _, ok := c.Get("a"); !ok {
		t.Fatal("recently accessed entry was evicted")
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal("least recently accessed entry survived")
	}
}

func TestLRUPutSameKeyRefreshes(t *testing.T) {
	c := NewLRU(2)
	c.Put("a", entry("a1"))
	c.Put("a", entry("a2"))

	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
	got, _ := c.Get("a")
	if string(got.Audio) != "a2" {
		t.Fatalf("audio = %q, want a2", got.Audio)
	}
}

func TestLRUConcurrentAccess(t *testing.T) {
	c := NewLRU(16)
	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%32)
				c.Put(key, entry(key))
				c.Get(key)
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}
	if c.Len() > 16 {
		t.Fatalf("len = %d exceeds capacity", c.Len())
	}
}
