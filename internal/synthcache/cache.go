// Package synthcache caches synthesized audio across two tiers: a bounded
// in-process LRU and a durable store shared by all instances. Entries are
// content-addressed by a hash of the normalized synthesis inputs, so the
// same reply spoken by the same voice is synthesized once.
package synthcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Entry is one cached synthesis result.
type Entry struct {
	Audio       []byte    `json:"audio"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// DurableStore is the shared second tier. It owns its own eviction (age
// based); the in-memory tier's recency eviction never touches it. A store
// error is a degraded cache, never a pipeline failure.
type DurableStore interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, entry *Entry) error
}

// ErrNotFound is returned by durable stores for missing keys.
var ErrNotFound = fmt.Errorf("synthcache: entry not found")

// Key derives the deterministic cache key for one synthesis input tuple.
// Text is case- and whitespace-normalized first: "Hello World" and
// "hello world" address the same entry.
func Key(text, voice string, speed float64, model string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%.2f|%s", normalized, voice, speed, model)
	return hex.EncodeToString(h.Sum(nil))
}

// Cache is the two-tier façade consulted by the synthesis stage.
type Cache struct {
	memory  *LRU
	durable DurableStore
}

func New(capacity int, durable DurableStore) *Cache {
	return &Cache{
		memory:  NewLRU(capacity),
		durable: durable,
	}
}

// Lookup checks the in-memory tier, then the durable tier. A durable hit
// backfills the in-memory tier before returning. A durable-store error is
// logged and treated as a miss.
func (c *Cache) Lookup(ctx context.Context, key string) (*Entry, bool) {
	if entry, ok := c.memory.Get(key); ok {
		return entry, true
	}

	if c.durable == nil {
		return nil, false
	}

	entry, err := c.durable.Get(ctx, key)
	if err != nil {
		if err != ErrNotFound {
			slog.Warn("durable cache unavailable, treating as miss", "error", err)
		}
		return nil, false
	}

	c.memory.Put(key, entry)
	return entry, true
}

// Store writes the entry to the in-memory tier synchronously and to the
// durable tier in the background; callers never wait on the durable
// write. Writes are idempotent: concurrent stores of one key race
// harmlessly because the content for a key is identical.
func (c *Cache) Store(ctx context.Context, key string, entry *Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	c.memory.Put(key, entry)

	if c.durable == nil {
		return
	}

	// The write must survive the request context: a client disconnect
	// right after synthesis should not lose the cache entry.
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		writeCtx, cancel := context.WithTimeout(bgCtx, 10*time.Second)
		defer cancel()
		if err := c.durable.Put(writeCtx, key, entry); err != nil {
			slog.Warn("durable cache write failed", "key", key, "error", err)
		}
	}()
}
