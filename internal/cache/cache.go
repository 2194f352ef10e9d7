// Package cache provides the result cache: a bounded, TTL-aware store of
// completed reviews keyed by artifact fingerprint plus configuration
// digest. Identical resubmissions are answered without re-running the
// judge.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/Iron-Ham/gavel/internal/errors"
	"github.com/Iron-Ham/gavel/internal/logging"
	"github.com/Iron-Ham/gavel/internal/review"
)

// Default sizing for the result cache.
const (
	DefaultCapacity = 256
	DefaultTTL      = 30 * time.Minute
)

// Entry is one cached review. Entries are shared-immutable: the stored
// review is never mutated after insertion, and callers receive copies.
type Entry struct {
	Key        string
	Review     review.StructuredReview
	InsertedAt time.Time
	TTL        time.Duration
}

// expired reports whether the entry is past its TTL at the given instant.
func (e *Entry) expired(now time.Time) bool {
	return now.Sub(e.InsertedAt) >= e.TTL
}

// Cache is an LRU result cache with lazy TTL eviction. It is safe for
// concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element // key -> element whose Value is *Entry
	lru      *list.List               // front = most recently used
	logger   *logging.Logger

	// now is swappable for tests.
	now func() time.Time

	hits   uint64
	misses uint64
}

// New creates a result cache with the given capacity and TTL. Non-positive
// values fall back to the defaults.
func New(capacity int, ttl time.Duration, logger *logging.Logger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
		logger:   logger.WithComponent("cache"),
		now:      time.Now,
	}
}

// Get returns a copy of the cached review for key. Expired entries are
// dropped on access and reported as misses. A hit refreshes recency.
func (c *Cache) Get(key string) (review.StructuredReview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return review.StructuredReview{}, errors.ErrCacheMiss
	}

	entry := elem.Value.(*Entry)
	if entry.expired(c.now()) {
		c.removeLocked(elem)
		c.misses++
		c.logger.Debug("cache entry expired", "key", key)
		return review.StructuredReview{}, errors.ErrCacheMiss
	}

	c.lru.MoveToFront(elem)
	c.hits++
	return entry.Review, nil
}

// Put stores a review under key, overwriting any existing entry and
// evicting the least-recently-used entry when over capacity.
func (c *Cache) Put(key string, r review.StructuredReview) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*Entry)
		entry.Review = r
		entry.InsertedAt = c.now()
		c.lru.MoveToFront(elem)
		return
	}

	entry := &Entry{Key: key, Review: r, InsertedAt: c.now(), TTL: c.ttl}
	c.entries[key] = c.lru.PushFront(entry)

	for len(c.entries) > c.capacity {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*Entry)
		c.removeLocked(oldest)
		c.logger.Debug("cache entry evicted", "key", evicted.Key)
	}
}

// Invalidate removes all entries matching the predicate and returns the
// number removed.
func (c *Cache) Invalidate(predicate func(*Entry) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if predicate(elem.Value.(*Entry)) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeLocked(elem)
	}
	return len(toRemove)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}

// Len returns the number of live entries, including any that are expired
// but not yet lazily evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counters since construction.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// removeLocked deletes an element from both structures. Caller holds mu.
func (c *Cache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*Entry)
	delete(c.entries, entry.Key)
	c.lru.Remove(elem)
}
