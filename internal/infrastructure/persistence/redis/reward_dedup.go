package redis

import (
	"context"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD DEDUPLICATION
// Implements command.RewardDeduper. A reward event id is claimed with SET NX;
// the first caller wins, replays see the existing marker and skip crediting.
// ══════════════════════════════════════════════════════════════════════════════

// RewardDeduper marks reward event ids in Redis.
type RewardDeduper struct {
	cache *Cache
}

// NewRewardDeduper creates a new RewardDeduper.
func NewRewardDeduper(cache *Cache) *RewardDeduper {
	return &RewardDeduper{cache: cache}
}

// MarkProcessed records the event id. Returns false if the id was already
// recorded.
func (d *RewardDeduper) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = TTLRewardDedup
	}
	return d.cache.SetNX(ctx, RewardKey(eventID), 1, ttl)
}

// Release drops the marker so the same logical event can be credited again.
// Called when crediting fails after the claim; the reward stays retryable.
func (d *RewardDeduper) Release(ctx context.Context, eventID string) error {
	return d.cache.Delete(ctx, RewardKey(eventID))
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FALLBACK
// ══════════════════════════════════════════════════════════════════════════════

// MemoryRewardDeduper is an in-process RewardDeduper for tests and for
// running without Redis. Markers expire lazily on access.
type MemoryRewardDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryRewardDeduper creates a new MemoryRewardDeduper.
func NewMemoryRewardDeduper() *MemoryRewardDeduper {
	return &MemoryRewardDeduper{seen: make(map[string]time.Time)}
}

// MarkProcessed records the event id in memory.
func (d *MemoryRewardDeduper) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = TTLRewardDedup
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if expiry, ok := d.seen[eventID]; ok && expiry.After(now) {
		return false, nil
	}
	d.seen[eventID] = now.Add(ttl)
	return true, nil
}

// Release drops the marker from memory.
func (d *MemoryRewardDeduper) Release(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}
