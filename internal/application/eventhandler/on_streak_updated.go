package eventhandler

import (
	"context"
	"log/slog"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STREAK UPDATED HANDLER
// A longer streak can cross a streak-days badge criterion, so every streak
// change triggers the same criteria check the points path uses.
// ═══════════════════════════════════════════════════════════════════════════

// OnStreakUpdatedHandler handles StreakUpdatedEvent.
type OnStreakUpdatedHandler struct {
	awarder *badgeAwarder
	logger  *slog.Logger
}

// NewOnStreakUpdatedHandler creates a new OnStreakUpdatedHandler.
func NewOnStreakUpdatedHandler(awarder *badgeAwarder, logger *slog.Logger) *OnStreakUpdatedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnStreakUpdatedHandler{
		awarder: awarder,
		logger:  logger.With("handler", "on_streak_updated"),
	}
}

// Handle implements shared.EventHandler.
func (h *OnStreakUpdatedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	streakEvent, ok := event.(shared.StreakUpdatedEvent)
	if !ok {
		h.logger.Warn("received non-StreakUpdatedEvent", "event_type", event.EventType())
		return nil
	}

	userID, err := shared.NewUserID(streakEvent.UserID)
	if err != nil {
		h.logger.Error("invalid user id on event", "user_id", streakEvent.UserID, "error", err)
		return nil
	}

	if h.awarder == nil {
		return nil
	}
	if err := h.awarder.award(ctx, userID, streakEvent.CorrelationID); err != nil {
		h.logger.Error("badge criteria check failed",
			"user_id", streakEvent.UserID,
			"error", err,
		)
	}

	return nil
}

// EventType returns the event type this handler processes.
func (h *OnStreakUpdatedHandler) EventType() shared.EventType {
	return shared.EventStreakUpdated
}
