// Package answercache guards expensive answer synthesis with a
// content-addressed in-memory cache keyed on the query and the exact
// result set, with TTL expiry and bounded LRU eviction.
package answercache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config holds the cache sizing and expiry settings.
type Config struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
	// EvictionFraction is the share of capacity evicted per sweep when
	// the cache is full.
	EvictionFraction float64 `yaml:"eviction_fraction"`
}

// DefaultConfig returns the standard cache settings.
func DefaultConfig() Config {
	return Config{
		MaxEntries:       1000,
		TTL:              time.Hour,
		EvictionFraction: 0.10,
	}
}

// Stats is a read-only snapshot of cache counters.
type Stats struct {
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	Size       int     `json:"size"`
	MaxSize    int     `json:"max_size"`
	TTLSeconds int     `json:"ttl_seconds"`
}

type entry struct {
	answer         string
	cachedAt       time.Time
	lastAccessedAt time.Time
	accessCount    int
}

// Cache is the process-wide answer cache. All mutations are serialized;
// safe for concurrent use.
type Cache struct {
	cfg        Config
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	hits    uint64
	misses  uint64
}

// New creates an answer cache. cacheTotal is a counter vec with label
// "result" ("hit"/"miss"), may be nil.
func New(cfg Config, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.EvictionFraction <= 0 || cfg.EvictionFraction > 1 {
		cfg.EvictionFraction = DefaultConfig().EvictionFraction
	}
	return &Cache{
		cfg:        cfg,
		cacheTotal: cacheTotal,
		logger:     logger,
		now:        time.Now,
		entries:    map[string]*entry{},
	}
}

// WithClock overrides the cache clock (tests).
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the cached answer for the query and result set. Result IDs
// and filters are order-insensitive. Expired entries are evicted lazily
// and counted as misses.
func (c *Cache) Get(query string, resultIDs []string, filters map[string]string) (string, bool) {
	key := cacheKey(query, resultIDs, filters)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.miss()
		return "", false
	}

	now := c.now()
	if now.Sub(e.cachedAt) > c.cfg.TTL {
		delete(c.entries, key)
		c.miss()
		return "", false
	}

	e.lastAccessedAt = now
	e.accessCount++
	c.hits++
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues("hit").Inc()
	}
	return e.answer, true
}

// Set stores an answer, evicting a least-recently-accessed batch first
// when the cache is at capacity.
func (c *Cache) Set(query string, resultIDs []string, answer string, filters map[string]string) {
	key := cacheKey(query, resultIDs, filters)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		evicted := c.evictLRU()
		c.logger.Debug("Answer cache eviction sweep",
			zap.Int("evicted", evicted),
			zap.Int("size", len(c.entries)))
	}

	now := c.now()
	c.entries[key] = &entry{
		answer:         answer,
		cachedAt:       now,
		lastAccessedAt: now,
	}
}

// Clear drops every entry. Counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]*entry{}
}

// RemoveExpired sweeps out entries older than the TTL and returns the count.
func (c *Cache) RemoveExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.cachedAt) > c.cfg.TTL {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the counters without mutating state.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:       c.hits,
		Misses:     c.misses,
		HitRate:    rate,
		Size:       len(c.entries),
		MaxSize:    c.cfg.MaxEntries,
		TTLSeconds: int(c.cfg.TTL.Seconds()),
	}
}

func (c *Cache) miss() {
	c.misses++
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues("miss").Inc()
	}
}

// evictLRU removes the least-recently-accessed batch. Caller holds the lock.
func (c *Cache) evictLRU() int {
	batch := int(float64(c.cfg.MaxEntries) * c.cfg.EvictionFraction)
	if batch < 1 {
		batch = 1
	}

	type victim struct {
		key  string
		last time.Time
	}
	victims := make([]victim, 0, len(c.entries))
	for key, e := range c.entries {
		victims = append(victims, victim{key: key, last: e.lastAccessedAt})
	}
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].last.Before(victims[j].last)
	})

	if batch > len(victims) {
		batch = len(victims)
	}
	for _, v := range victims[:batch] {
		delete(c.entries, v.key)
	}
	return batch
}

// cacheKey hashes the query, the sorted result IDs and the sorted filter
// entries, so equivalent result sets share a cache line regardless of order.
func cacheKey(query string, resultIDs []string, filters map[string]string) string {
	ids := make([]string, len(resultIDs))
	copy(ids, resultIDs)
	sort.Strings(ids)

	kvs := make([]string, 0, len(filters))
	for k, v := range filters {
		kvs = append(kvs, k+"="+v)
	}
	sort.Strings(kvs)

	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(ids, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(kvs, ",")))
	return hex.EncodeToString(h.Sum(nil))
}
