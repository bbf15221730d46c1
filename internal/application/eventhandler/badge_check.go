// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ecoquest-hub/ecoquest-hub/internal/application/command"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// BADGE AWARDER
// Re-evaluates badge criteria after any event that can move a criterion
// (points, level, streak, task count) and unlocks whatever is newly earned.
// Evaluation is read-only; the actual unlock goes through the unlock command
// so the ledger mutation stays serialized and duplicate-safe.
// ═══════════════════════════════════════════════════════════════════════════

type badgeAwarder struct {
	snapshots   ledger.SnapshotRepository
	catalog     ledger.BadgeCatalog
	tasks       content.TaskRepository
	unlockBadge *command.UnlockBadgeHandler
	cfg         ledger.Config
	logger      *slog.Logger
}

func newBadgeAwarder(
	snapshots ledger.SnapshotRepository,
	catalog ledger.BadgeCatalog,
	tasks content.TaskRepository,
	unlockBadge *command.UnlockBadgeHandler,
	cfg ledger.Config,
	logger *slog.Logger,
) *badgeAwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &badgeAwarder{
		snapshots:   snapshots,
		catalog:     catalog,
		tasks:       tasks,
		unlockBadge: unlockBadge,
		cfg:         cfg,
		logger:      logger,
	}
}

// award unlocks every badge whose criterion the user now meets.
func (a *badgeAwarder) award(ctx context.Context, userID shared.UserID, correlationID string) error {
	defs, err := a.catalog.ListDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("list badge definitions: %w", err)
	}
	if len(defs) == 0 {
		return nil
	}

	l, err := ledger.NewLedger(userID, a.cfg)
	if err != nil {
		return fmt.Errorf("new ledger: %w", err)
	}

	snap, err := a.snapshots.Load(ctx, userID)
	switch {
	case err == nil:
		if err := l.Hydrate(*snap); err != nil {
			return fmt.Errorf("hydrate: %w", err)
		}
	case errors.Is(err, shared.ErrNotFound):
		if err := l.HydrateEmpty(); err != nil {
			return fmt.Errorf("hydrate empty: %w", err)
		}
	default:
		return fmt.Errorf("load snapshot: %w", err)
	}

	completions, err := a.tasks.CountCompleted(ctx, userID)
	if err != nil {
		a.logger.Warn("badge check without completion count",
			"user_id", userID,
			"error", err,
		)
		completions = 0
	}

	var checker ledger.Checker
	earned := checker.NewlyEarned(defs, l, completions)
	for _, def := range earned {
		_, err := a.unlockBadge.Handle(ctx, command.UnlockBadgeCommand{
			UserID:        userID,
			BadgeID:       def.ID,
			CorrelationID: correlationID,
		})
		if err != nil {
			a.logger.Error("failed to unlock earned badge",
				"user_id", userID,
				"badge_id", def.ID,
				"error", err,
			)
			continue
		}
		a.logger.Info("badge unlocked by criteria check",
			"user_id", userID,
			"badge_id", def.ID,
		)
	}

	return nil
}
