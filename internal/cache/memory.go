package cache

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"emilia-bot/internal/models"
)

// MemorySubscriptionCache is the no-Redis fallback. Entries still carry
// a TTL; a stale-forever map would hide unsubscribes from the gate.
type MemorySubscriptionCache struct {
	mu      sync.Mutex
	entries map[int64]subscriptionEntry
	ttl     time.Duration
	now     func() time.Time
}

type subscriptionEntry struct {
	subscribed bool
	expires    time.Time
}

func NewMemorySubscriptionCache(ttl time.Duration) *MemorySubscriptionCache {
	return &MemorySubscriptionCache{
		entries: make(map[int64]subscriptionEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemorySubscriptionCache) Get(_ context.Context, userID int64) (subscribed, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[userID]
	if !ok {
		return false, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, userID)
		return false, false
	}
	return entry.subscribed, true
}

func (c *MemorySubscriptionCache) Set(_ context.Context, userID int64, subscribed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[userID] = subscriptionEntry{
		subscribed: subscribed,
		expires:    c.now().Add(c.ttl),
	}
}

func (c *MemorySubscriptionCache) Invalidate(_ context.Context, userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, userID)
}

// MemoryMediaCache mirrors RedisMediaCache for single-process runs.
type MemoryMediaCache struct {
	mu      sync.Mutex
	buckets map[string]mediaBucket
	ttl     time.Duration
	now     func() time.Time
}

type mediaBucket struct {
	items   []models.MediaItem
	expires time.Time
}

func NewMemoryMediaCache(ttl time.Duration) *MemoryMediaCache {
	return &MemoryMediaCache{
		buckets: make(map[string]mediaBucket),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryMediaCache) Add(_ context.Context, subreddit string, item *models.MediaItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := mediaKey(subreddit, item.NSFW)
	bucket := c.buckets[key]
	if c.now().After(bucket.expires) {
		bucket.items = nil
	}
	for _, existing := range bucket.items {
		if existing.URL == item.URL {
			return nil
		}
	}
	bucket.items = append(bucket.items, *item)
	bucket.expires = c.now().Add(c.ttl)
	c.buckets[key] = bucket
	return nil
}

func (c *MemoryMediaCache) Random(_ context.Context, subreddit string, nsfw bool) (*models.MediaItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.buckets[mediaKey(subreddit, nsfw)]
	if !ok || len(bucket.items) == 0 {
		return nil, false
	}
	if c.now().After(bucket.expires) {
		delete(c.buckets, mediaKey(subreddit, nsfw))
		return nil, false
	}
	item := bucket.items[rand.IntN(len(bucket.items))]
	return &item, true
}
