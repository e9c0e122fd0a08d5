package synthcache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKeyNormalization(t *testing.T) {
	base := Key("Hello World", "alloy", 1.0, "tts-1")

	same := []string{
		"hello world",
		"  Hello   World  ",
		"HELLO\tWORLD",
	}
	for _, text := range same {
		if got := Key(text, "alloy", 1.0, "tts-1"); got != base {
			t.Fatalf("Key(%q) = %s, want %s", text, got, base)
		}
	}

	diff := []struct {
		text  string
		voice string
		speed float64
		model string
	}{
		{"hello worlds", "alloy", 1.0, "tts-1"},
		{"hello world", "nova", 1.0, "tts-1"},
		{"hello world", "alloy", 1.25, "tts-1"},
		{"hello world", "alloy", 1.0, "tts-1-hd"},
	}
	for _, d := range diff {
		if got := Key(d.text, d.voice, d.speed, d.model); got == base {
			t.Fatalf("Key(%+v) collided with base", d)
		}
	}
}

type fakeDurable struct {
	entries map[string]*Entry
	err     error
	gets    int
	puts    chan string
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{entries: map[string]*Entry{}, puts: make(chan string, 8)}
}

func (f *fakeDurable) Get(ctx context.Context, key string) (*Entry, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (f *fakeDurable) Put(ctx context.Context, key string, entry *Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries[key] = entry
	f.puts <- key
	return nil
}

func TestCacheDurableHitBackfillsMemory(t *testing.T) {
	durable := newFakeDurable()
	durable.entries["k"] = entry("from-durable")
	c := New(4, durable)

	got, ok := c.Lookup(context.Background(), "k")
	if !ok || string(got.Audio) != "from-durable" {
		t.Fatalf("lookup = %v %v", got, ok)
	}

	// Second lookup is served from memory.
	before := durable.gets
	if _, ok := c.Lookup(context.Background(), "k"); !ok {
		t.Fatal("backfilled entry missing")
	}
	if durable.gets != before {
		t.Fatal("memory tier not consulted first after backfill")
	}
}

func TestCacheStoreWritesThroughAsync(t *testing.T) {
	durable := newFakeDurable()
	c := New(4, durable)

	c.Store(context.Background(), "k", entry("bytes"))

	if _, ok := c.Lookup(context.Background(), "k"); !ok {
		t.Fatal("entry not in memory immediately after store")
	}

	select {
	case key := <-durable.puts:
		if key != "k" {
			t.Fatalf("durable write key = %s", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("durable write never happened")
	}
}

func TestCacheDurableErrorIsMiss(t *testing.T) {
	durable := newFakeDurable()
	durable.err = errors.New("redis gone")
	c := New(4, durable)

	if _, ok := c.Lookup(context.Background(), "k"); ok {
		t.Fatal("error treated as hit")
	}
}

func TestCacheWithoutDurableTier(t *testing.T) {
	c := New(4, nil)
	c.Store(context.Background(), "k", entry("x"))
	if _, ok := c.Lookup(context.Background(), "k"); !ok {
		t.Fatal("memory-only cache lost its entry")
	}
	if _, ok := c.Lookup(context.Background(), "missing"); ok {
		t.Fatal("phantom hit")
	}
}
