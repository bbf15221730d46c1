package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
	"github.com/ecoquest-hub/ecoquest-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK AUDIT JOB
// Runs shortly after the UTC day boundary. Without it a broken streak would
// only reset lazily on the user's next activity, so the leaderboard and
// profile screens would keep showing stale streaks for absent users.
// ══════════════════════════════════════════════════════════════════════════════

// StreakAuditJob finds users who missed a full day and applies the streak
// policy proactively.
type StreakAuditJob struct {
	repo      ledger.StreakAuditRepository
	policy    ledger.StreakPolicy
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewStreakAuditJob creates the streak audit job. The policy defaults to
// ledger.ResetToZero; the publisher is optional.
func NewStreakAuditJob(
	repo ledger.StreakAuditRepository,
	policy ledger.StreakPolicy,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *StreakAuditJob {
	if policy == nil {
		policy = ledger.ResetToZero
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreakAuditJob{
		repo:      repo,
		policy:    policy,
		publisher: publisher,
		logger:    logger,
	}
}

// Name implements scheduler.Job.
func (j *StreakAuditJob) Name() string {
	return "streak_audit"
}

// Description implements scheduler.Job.
func (j *StreakAuditJob) Description() string {
	return "Resets streaks of users who missed a full day, per the configured policy"
}

// Run implements scheduler.Job.
func (j *StreakAuditJob) Run(ctx context.Context) error {
	today := timeutil.Now()

	// Anyone last active before yesterday has missed at least one full day.
	cutoff := timeutil.StartOfDay(today.AddDate(0, 0, -1))

	snaps, err := j.repo.ListBrokenStreaks(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("streak_audit: list broken streaks: %w", err)
	}

	var reset, skipped int
	for _, snap := range snaps {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		change, broken := ledger.AuditStreak(snap, j.policy, today)
		if !broken {
			continue
		}

		applied, err := j.repo.ResetStreak(ctx, snap.UserID, change.OldStreak, change.NewStreak)
		if err != nil {
			j.logger.Error("failed to reset streak", "user_id", snap.UserID, "error", err)
			continue
		}
		if !applied {
			// The user was active between the read and the write; their
			// streak is being handled by the activity path.
			skipped++
			continue
		}

		reset++
		j.publishBroken(snap.UserID, change)
	}

	j.logger.Info("streak audit completed",
		"candidates", len(snaps),
		"reset", reset,
		"skipped", skipped,
		"audit_day", timeutil.FormatDateStr(today),
	)
	return nil
}

func (j *StreakAuditJob) publishBroken(userID shared.UserID, change ledger.StreakChange) {
	if j.publisher == nil {
		return
	}
	event := shared.NewStreakBrokenEvent(userID.String(), change.OldStreak, change.DaysMissed, change.NewStreak)
	if err := j.publisher.Publish(event); err != nil {
		j.logger.Warn("failed to publish streak broken", "user_id", userID, "error", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT CLEANUP JOB
// ══════════════════════════════════════════════════════════════════════════════

// CleanupSnapshotsJob deletes leaderboard snapshots older than the retention
// window. Only the latest snapshot is read at serve time; older ones exist
// for rank-movement history and can be dropped after the window.
type CleanupSnapshotsJob struct {
	repo      snapshotDeleter
	retention time.Duration
	logger    *slog.Logger
}

// snapshotDeleter is the slice of leaderboard.Repository the cleanup needs.
type snapshotDeleter interface {
	DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int, error)
}

// NewCleanupSnapshotsJob creates the cleanup job. Retention defaults to 30 days.
func NewCleanupSnapshotsJob(repo snapshotDeleter, retention time.Duration, logger *slog.Logger) *CleanupSnapshotsJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupSnapshotsJob{repo: repo, retention: retention, logger: logger}
}

// Name implements scheduler.Job.
func (j *CleanupSnapshotsJob) Name() string {
	return "cleanup_snapshots"
}

// Description implements scheduler.Job.
func (j *CleanupSnapshotsJob) Description() string {
	return "Deletes leaderboard snapshots past the retention window"
}

// Run implements scheduler.Job.
func (j *CleanupSnapshotsJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.retention)

	deleted, err := j.repo.DeleteOldSnapshots(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup_snapshots: %w", err)
	}

	j.logger.Info("snapshot cleanup completed", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	return nil
}
