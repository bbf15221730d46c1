// Package redis implements Redis caching for EcoQuest.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/leaderboard"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// Implements leaderboard.Cache.
//
// Layout:
//   - String "ecoquest:leaderboard:top"        cached top-N page, JSON, TTL
//   - String "ecoquest:leaderboard:rank:{id}"  per-user cached row, JSON, TTL
//   - ZSET   "ecoquest:leaderboard:scores"     userID -> points, live updates
//
// The ZSET absorbs UpdateScore calls between snapshot rebuilds; the rebuild
// job replaces the cached pages wholesale. Cache misses are not errors, the
// read path falls back to the persisted snapshot.
// ══════════════════════════════════════════════════════════════════════════════

// Leaderboard cache keys.
const (
	keyLeaderboardTop    = PrefixLeaderboard + "top"
	keyLeaderboardRank   = PrefixLeaderboard + "rank:"
	keyLeaderboardScores = PrefixLeaderboard + "scores"
)

// cachedEntry is the JSON shape of one cached leaderboard row.
type cachedEntry struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Points      int       `json:"points"`
	Level       int       `json:"level"`
	BadgeCount  int       `json:"badge_count"`
	Streak      int       `json:"streak,omitempty"`
	RankChange  int       `json:"rank_change"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCachedEntry(e *leaderboard.Entry) cachedEntry {
	return cachedEntry{
		Rank:        int(e.Rank),
		UserID:      e.UserID.String(),
		DisplayName: e.DisplayName,
		AvatarURL:   e.AvatarURL,
		Points:      e.Points.Int(),
		Level:       int(e.Level),
		BadgeCount:  e.BadgeCount,
		Streak:      e.Streak,
		RankChange:  int(e.RankChange),
		UpdatedAt:   e.UpdatedAt,
	}
}

func (ce cachedEntry) toDomain() *leaderboard.Entry {
	return &leaderboard.Entry{
		Rank:        leaderboard.Rank(ce.Rank),
		UserID:      shared.UserID(ce.UserID),
		DisplayName: ce.DisplayName,
		AvatarURL:   ce.AvatarURL,
		Points:      shared.Points(ce.Points),
		Level:       shared.Level(ce.Level),
		BadgeCount:  ce.BadgeCount,
		Streak:      ce.Streak,
		RankChange:  leaderboard.RankChange(ce.RankChange),
		UpdatedAt:   ce.UpdatedAt,
	}
}

// LeaderboardCache implements leaderboard.Cache on Redis.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// GetCachedTop returns the cached top-N entries.
// Returns nil without error when the cache is cold.
func (l *LeaderboardCache) GetCachedTop(ctx context.Context, limit int) ([]*leaderboard.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	var records []cachedEntry
	if err := l.cache.Get(ctx, keyLeaderboardTop, &records); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}

	if limit > len(records) {
		limit = len(records)
	}
	entries := make([]*leaderboard.Entry, 0, limit)
	for _, rec := range records[:limit] {
		entries = append(entries, rec.toDomain())
	}
	return entries, nil
}

// SetCachedTop replaces the cached top-N page.
func (l *LeaderboardCache) SetCachedTop(ctx context.Context, entries []*leaderboard.Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLLeaderboardTop
	}

	records := make([]cachedEntry, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		records = append(records, toCachedEntry(e))
	}

	return l.cache.Set(ctx, keyLeaderboardTop, records, ttl)
}

// GetCachedRank returns the cached row for a user.
// Returns nil without error when the row is not cached.
func (l *LeaderboardCache) GetCachedRank(ctx context.Context, userID shared.UserID) (*leaderboard.Entry, error) {
	var rec cachedEntry
	if err := l.cache.Get(ctx, keyLeaderboardRank+userID.String(), &rec); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return rec.toDomain(), nil
}

// SetCachedRank caches a single user's row.
func (l *LeaderboardCache) SetCachedRank(ctx context.Context, entry *leaderboard.Entry, ttl time.Duration) error {
	if entry == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = TTLCachedRank
	}

	return l.cache.Set(ctx, keyLeaderboardRank+entry.UserID.String(), toCachedEntry(entry), ttl)
}

// UpdateScore updates a user's points in the live ZSET without a full rebuild.
// The cached top page is dropped so the next read reflects the new score.
func (l *LeaderboardCache) UpdateScore(ctx context.Context, userID shared.UserID, points shared.Points) error {
	pipe := l.cache.Client().Pipeline()

	pipe.ZAdd(ctx, keyLeaderboardScores, redis.Z{
		Score:  float64(points.Int()),
		Member: userID.String(),
	})
	pipe.Del(ctx, keyLeaderboardTop, keyLeaderboardRank+userID.String())

	_, err := pipe.Exec(ctx)
	return err
}

// InvalidateAll drops the entire leaderboard cache.
func (l *LeaderboardCache) InvalidateAll(ctx context.Context) error {
	if err := l.cache.Delete(ctx, keyLeaderboardTop, keyLeaderboardScores); err != nil {
		return err
	}
	return l.cache.DeleteByPattern(ctx, keyLeaderboardRank+"*")
}

// ══════════════════════════════════════════════════════════════════════════════
// LIVE SCORES
// ══════════════════════════════════════════════════════════════════════════════

// GetLiveRank returns the user's 1-based rank in the live ZSET, or 0 when
// the user is not present. The live rank ignores badge-count tie-breaks and
// is only used for freshness hints between rebuilds.
func (l *LeaderboardCache) GetLiveRank(ctx context.Context, userID shared.UserID) (int, error) {
	rank, err := l.cache.Client().ZRevRank(ctx, keyLeaderboardScores, userID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return int(rank) + 1, nil
}

// SeedScores replaces the live ZSET from snapshot entries. Called by the
// rebuild job so UpdateScore deltas apply on top of a fresh base.
func (l *LeaderboardCache) SeedScores(ctx context.Context, entries []*leaderboard.Entry) error {
	members := make([]redis.Z, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		members = append(members, redis.Z{
			Score:  float64(e.Points.Int()),
			Member: e.UserID.String(),
		})
	}

	pipe := l.cache.Client().TxPipeline()
	pipe.Del(ctx, keyLeaderboardScores)
	if len(members) > 0 {
		pipe.ZAdd(ctx, keyLeaderboardScores, members...)
	}

	_, err := pipe.Exec(ctx)
	return err
}
