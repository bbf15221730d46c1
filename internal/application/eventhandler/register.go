package eventhandler

import (
	"fmt"
	"log/slog"

	"github.com/ecoquest-hub/ecoquest-hub/internal/application/command"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/leaderboard"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// REGISTRATION
// ═══════════════════════════════════════════════════════════════════════════

// Registrar is the slice of the event dispatcher the handlers need.
type Registrar interface {
	Register(eventType shared.EventType, name string, handler shared.EventHandler) error
}

// Dependencies are the collaborators of the event handlers.
type Dependencies struct {
	Snapshots   ledger.SnapshotRepository
	Catalog     ledger.BadgeCatalog
	Tasks       content.TaskRepository
	UnlockBadge *command.UnlockBadgeHandler

	// Cache is optional; without it the live score updates are skipped.
	Cache leaderboard.Cache

	LedgerConfig ledger.Config
	Logger       *slog.Logger
}

// RegisterAll wires every event handler into the dispatcher.
func RegisterAll(r Registrar, deps Dependencies) error {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	var awarder *badgeAwarder
	if deps.Snapshots != nil && deps.Catalog != nil && deps.Tasks != nil && deps.UnlockBadge != nil {
		awarder = newBadgeAwarder(deps.Snapshots, deps.Catalog, deps.Tasks, deps.UnlockBadge, deps.LedgerConfig, deps.Logger)
	}

	onPoints := NewOnPointsAddedHandler(deps.Cache, awarder, deps.Logger)
	if err := r.Register(onPoints.EventType(), "on_points_added", onPoints.Handle); err != nil {
		return fmt.Errorf("register on_points_added: %w", err)
	}

	onStreak := NewOnStreakUpdatedHandler(awarder, deps.Logger)
	if err := r.Register(onStreak.EventType(), "on_streak_updated", onStreak.Handle); err != nil {
		return fmt.Errorf("register on_streak_updated: %w", err)
	}

	onPersistenceFailed := NewOnPersistenceFailedHandler(deps.Logger)
	if err := r.Register(onPersistenceFailed.EventType(), "on_persistence_failed", onPersistenceFailed.Handle); err != nil {
		return fmt.Errorf("register on_persistence_failed: %w", err)
	}

	return nil
}
