package stats

import (
	"sync"
	"time"

	"github.com/chat-stats-bot/internal/models"
)

// rankedCache holds materialized ranked member lists per chat. Entries are
// derived data: disposable, rebuilt from the store on any miss. Reads may
// run concurrently with writes to other chats; staleness is bounded by TTL.
type rankedCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[int64]cacheEntry
}

type cacheEntry struct {
	members    []models.CounterRecord
	capturedAt time.Time
}

func newRankedCache(ttl time.Duration) *rankedCache {
	return &rankedCache{
		ttl:     ttl,
		entries: make(map[int64]cacheEntry),
	}
}

// get returns the cached ranked list for a chat if it is younger than TTL.
func (c *rankedCache) get(chatID int64, now time.Time) ([]models.CounterRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[chatID]
	if !ok || now.Sub(entry.capturedAt) >= c.ttl {
		return nil, false
	}
	return entry.members, true
}

// put stores a freshly computed ranked list for a chat.
func (c *rankedCache) put(chatID int64, members []models.CounterRecord, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[chatID] = cacheEntry{members: members, capturedAt: now}
}

// invalidate drops the entry for one chat. Called on every counter write
// for that chat.
func (c *rankedCache) invalidate(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, chatID)
}

// clear drops every entry. Called after a rollover, which touches all records.
func (c *rankedCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[int64]cacheEntry)
}

// size returns the number of live entries.
func (c *rankedCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
