// Package jobs contains the scheduled jobs of the EcoQuest worker:
// leaderboard snapshot rebuilds, streak audits and snapshot retention.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/leaderboard"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/profile"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// Builds a fresh ranking from the denormalized profile columns, diffs it
// against the previous snapshot to compute rank movement, persists it and
// warms the cache.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreSeeder is implemented by caches that maintain a live score set
// alongside the cached top page.
type ScoreSeeder interface {
	SeedScores(ctx context.Context, entries []*leaderboard.Entry) error
}

// RebuildLeaderboardConfig contains the tunables of the rebuild job.
type RebuildLeaderboardConfig struct {
	// MaxParticipants caps the ranking size (default 1000).
	MaxParticipants int

	// CachedTopSize is how many entries to warm into the cache (default 100).
	CachedTopSize int

	// CacheTTL is the lifetime of the warmed top page (default 10m).
	CacheTTL time.Duration

	// SignificantChange is the rank movement threshold for RankChanged
	// events (default 3).
	SignificantChange int
}

func (c RebuildLeaderboardConfig) normalize() RebuildLeaderboardConfig {
	if c.MaxParticipants <= 0 {
		c.MaxParticipants = 1000
	}
	if c.CachedTopSize <= 0 {
		c.CachedTopSize = 100
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 10 * time.Minute
	}
	if c.SignificantChange <= 0 {
		c.SignificantChange = 3
	}
	return c
}

// RebuildLeaderboardJob rebuilds the leaderboard snapshot.
type RebuildLeaderboardJob struct {
	profiles  profile.Repository
	streaks   ledger.StreakAuditRepository
	repo      leaderboard.Repository
	cache     leaderboard.Cache
	seeder    ScoreSeeder
	publisher shared.EventPublisher
	cfg       RebuildLeaderboardConfig
	logger    *slog.Logger
}

// NewRebuildLeaderboardJob creates the rebuild job. The cache, seeder and
// publisher are optional; the job degrades to persist-only when they are nil.
func NewRebuildLeaderboardJob(
	profiles profile.Repository,
	streaks ledger.StreakAuditRepository,
	repo leaderboard.Repository,
	cache leaderboard.Cache,
	seeder ScoreSeeder,
	publisher shared.EventPublisher,
	cfg RebuildLeaderboardConfig,
	logger *slog.Logger,
) *RebuildLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RebuildLeaderboardJob{
		profiles:  profiles,
		streaks:   streaks,
		repo:      repo,
		cache:     cache,
		seeder:    seeder,
		publisher: publisher,
		cfg:       cfg.normalize(),
		logger:    logger,
	}
}

// Name implements scheduler.Job.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description implements scheduler.Job.
func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds the leaderboard snapshot, computes rank movement and warms the cache"
}

// Run implements scheduler.Job.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	participants, err := j.profiles.ListForLeaderboard(ctx, j.cfg.MaxParticipants)
	if err != nil {
		return fmt.Errorf("rebuild_leaderboard: list participants: %w", err)
	}

	ranking, err := j.buildRanking(ctx, participants)
	if err != nil {
		return err
	}
	ranking.Sort()

	newSnapshot := leaderboard.NewSnapshot(uuid.NewString(), ranking)

	previous, err := j.repo.GetLatestSnapshot(ctx)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("rebuild_leaderboard: load previous snapshot: %w", err)
		}
		previous = nil
	}

	diff := leaderboard.CalculateDiff(previous, newSnapshot)

	if err := j.repo.SaveSnapshot(ctx, newSnapshot); err != nil {
		return fmt.Errorf("rebuild_leaderboard: save snapshot: %w", err)
	}

	j.warmCache(ctx, newSnapshot)
	j.publishEvents(previous, newSnapshot, diff)

	j.logger.Info("leaderboard rebuilt",
		"snapshot_id", newSnapshot.ID,
		"total_users", newSnapshot.TotalUsers,
		"rank_changes", len(diff.RankChanges),
		"new_entries", len(diff.NewEntries),
	)
	return nil
}

// buildRanking converts profiles into leaderboard entries. Streaks live in
// game_state, not on the profile, so they are fetched in one bulk query.
func (j *RebuildLeaderboardJob) buildRanking(ctx context.Context, participants []*profile.Profile) (*leaderboard.Ranking, error) {
	userIDs := make([]shared.UserID, len(participants))
	for i, p := range participants {
		userIDs[i] = p.ID
	}

	streaks := map[shared.UserID]int{}
	if j.streaks != nil {
		loaded, err := j.streaks.Streaks(ctx, userIDs)
		if err != nil {
			// Streaks are display-only on the board; a failed lookup must
			// not block the rebuild.
			j.logger.Warn("streak lookup failed, entries will show zero streaks", "error", err)
		} else {
			streaks = loaded
		}
	}

	ranking := leaderboard.NewRanking()
	for i, p := range participants {
		entry, err := leaderboard.NewEntry(leaderboard.Rank(i+1), p.ID, p.FullName, p.Points, p.BadgeCount)
		if err != nil {
			j.logger.Warn("skipping invalid participant", "user_id", p.ID, "error", err)
			continue
		}
		entry.AvatarURL = p.AvatarURL
		entry.Streak = streaks[p.ID]
		entry.UpdatedAt = p.UpdatedAt

		if err := ranking.Add(entry); err != nil {
			j.logger.Warn("skipping duplicate participant", "user_id", p.ID, "error", err)
		}
	}
	return ranking, nil
}

// warmCache refreshes the cached top page and the live score set.
// Cache failures are logged, not returned: the snapshot is already persisted.
func (j *RebuildLeaderboardJob) warmCache(ctx context.Context, snap *leaderboard.Snapshot) {
	if j.cache != nil {
		if err := j.cache.SetCachedTop(ctx, snap.Top(j.cfg.CachedTopSize), j.cfg.CacheTTL); err != nil {
			j.logger.Warn("failed to warm leaderboard cache", "error", err)
		}
	}
	if j.seeder != nil {
		if err := j.seeder.SeedScores(ctx, snap.Entries); err != nil {
			j.logger.Warn("failed to seed live scores", "error", err)
		}
	}
}

// publishEvents emits RankChanged for significant moves and one
// LeaderboardRebuilt summary event.
func (j *RebuildLeaderboardJob) publishEvents(previous, current *leaderboard.Snapshot, diff *leaderboard.Diff) {
	if j.publisher == nil {
		return
	}

	for _, userID := range diff.SignificantChanges(j.cfg.SignificantChange) {
		oldRank := 0
		if previous != nil {
			oldRank = int(previous.GetRank(userID))
		}
		event := shared.NewRankChangedEvent(userID.String(), oldRank, int(current.GetRank(userID)))
		if err := j.publisher.Publish(event); err != nil {
			j.logger.Warn("failed to publish rank change", "user_id", userID, "error", err)
		}
	}

	summary := shared.NewLeaderboardRebuiltEvent(current.ID, current.TotalUsers, len(diff.RankChanges))
	if err := j.publisher.Publish(summary); err != nil {
		j.logger.Warn("failed to publish rebuild event", "error", err)
	}
}
