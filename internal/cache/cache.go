// Package cache is the similarity-indexed result cache: a capacity-bounded
// store of prior verdicts keyed by feature vector. A lookup that finds a
// sufficiently similar prior entry short-circuits recomputation.
package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"veracity/internal/feature"
	"veracity/internal/scoring"
	"veracity/internal/store"
)

const (
	// DefaultCapacity bounds the number of retained entries.
	DefaultCapacity = 10000

	// DefaultThreshold is the minimum cosine similarity for a lookup hit.
	DefaultThreshold = 0.8

	keyPrefix = "cache/"
)

// Entry is a stored prior verdict. Entries are immutable once created and are
// destroyed only by eviction or Clear.
type Entry struct {
	ID        string          `json:"id"`
	Vector    feature.Vector  `json:"vector"`
	Verdict   scoring.Verdict `json:"verdict"`
	CreatedAt time.Time       `json:"created_at"`
}

// Cache wraps the durable store with an in-memory similarity index. The index
// mirrors the persisted cache range and is rebuilt on open by prefix scan.
//
// Mutations hold the exclusive lock (single-writer discipline); lookups take
// the shared lock and see a consistent snapshot.
type Cache struct {
	kv        store.KV
	capacity  int
	threshold float64
	log       *zap.Logger

	mu sync.RWMutex
	// entries is kept in creation order, oldest first, which makes FIFO
	// eviction and earliest-wins tie-breaking cheap.
	entries []*Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithCapacity overrides the entry bound.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithThreshold overrides the similarity threshold.
func WithThreshold(t float64) Option {
	return func(c *Cache) {
		if t > 0 {
			c.threshold = t
		}
	}
}

// Open loads the persisted cache range into memory and returns the cache.
func Open(kv store.KV, log *zap.Logger, opts ...Option) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cache{
		kv:        kv,
		capacity:  DefaultCapacity,
		threshold: DefaultThreshold,
		log:       log.Named("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}

	pairs, err := kv.Scan(keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load cache range: %w", err)
	}
	for _, p := range pairs {
		var e Entry
		if err := json.Unmarshal(p.Value, &e); err != nil {
			// A corrupt entry degrades to a miss; drop it rather than fail.
			c.log.Warn("dropping corrupt cache entry", zap.String("key", p.Key), zap.Error(err))
			_ = kv.Delete(p.Key)
			continue
		}
		c.entries = append(c.entries, &e)
	}
	sort.SliceStable(c.entries, func(i, j int) bool {
		if !c.entries[i].CreatedAt.Equal(c.entries[j].CreatedAt) {
			return c.entries[i].CreatedAt.Before(c.entries[j].CreatedAt)
		}
		return c.entries[i].ID < c.entries[j].ID
	})

	c.log.Debug("cache loaded", zap.Int("entries", len(c.entries)))
	return c, nil
}

// Insert stores a verdict under a fresh identifier, evicting oldest entries
// first when the capacity bound would be exceeded.
func (c *Cache) Insert(vec feature.Vector, verdict scoring.Verdict) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &Entry{
		ID:        uuid.NewString(),
		Vector:    vec,
		Verdict:   verdict,
		CreatedAt: time.Now().UTC(),
	}

	// FIFO eviction: make room before the insert so the bound holds.
	for len(c.entries) >= c.capacity {
		oldest := c.entries[0]
		if err := c.kv.Delete(keyPrefix + oldest.ID); err != nil {
			return "", fmt.Errorf("failed to evict entry %s: %w", oldest.ID, err)
		}
		c.entries = c.entries[1:]
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.kv.Set(keyPrefix+entry.ID, data); err != nil {
		return "", fmt.Errorf("failed to persist cache entry: %w", err)
	}

	c.entries = append(c.entries, entry)
	return entry.ID, nil
}

// Lookup returns the entry most similar to vec if its cosine similarity meets
// the threshold. Ties on equal similarity go to the earliest-created entry.
func (c *Cache) Lookup(vec feature.Vector) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *Entry
	bestSim := 0.0
	for _, e := range c.entries {
		// Strictly-greater keeps the earliest entry on ties: entries are in
		// creation order.
		if sim := feature.Cosine(vec, e.Vector); sim > bestSim {
			bestSim = sim
			best = e
		}
	}
	if best == nil || bestSim < c.threshold {
		return nil, false
	}

	// Copy-on-read: callers never alias the index's entry.
	out := *best
	return &out, true
}

// Clear removes all entries. Administrative and test use only.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.DeletePrefix(keyPrefix); err != nil {
		return fmt.Errorf("failed to clear cache range: %w", err)
	}
	c.entries = nil
	return nil
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
