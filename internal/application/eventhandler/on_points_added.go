package eventhandler

import (
	"context"
	"log/slog"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/leaderboard"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON POINTS ADDED HANDLER
// Reacts to a points credit:
// 1. Pushes the new score into the leaderboard cache so the board moves
//    between snapshot rebuilds.
// 2. Re-runs the badge criteria check, since points and level criteria may
//    have just been crossed.
// ═══════════════════════════════════════════════════════════════════════════

// OnPointsAddedHandler handles PointsAddedEvent.
type OnPointsAddedHandler struct {
	cache   leaderboard.Cache
	awarder *badgeAwarder
	logger  *slog.Logger
}

// NewOnPointsAddedHandler creates a new OnPointsAddedHandler.
func NewOnPointsAddedHandler(cache leaderboard.Cache, awarder *badgeAwarder, logger *slog.Logger) *OnPointsAddedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnPointsAddedHandler{
		cache:   cache,
		awarder: awarder,
		logger:  logger.With("handler", "on_points_added"),
	}
}

// Handle implements shared.EventHandler.
func (h *OnPointsAddedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	pointsEvent, ok := event.(shared.PointsAddedEvent)
	if !ok {
		h.logger.Warn("received non-PointsAddedEvent", "event_type", event.EventType())
		return nil
	}

	userID, err := shared.NewUserID(pointsEvent.UserID)
	if err != nil {
		h.logger.Error("invalid user id on event", "user_id", pointsEvent.UserID, "error", err)
		return nil
	}

	h.logger.Info("processing points added event",
		"user_id", pointsEvent.UserID,
		"amount", pointsEvent.Amount,
		"new_total", pointsEvent.NewTotal,
		"source", pointsEvent.Source,
	)

	// Keep the live board warm. The snapshot rebuild job remains the
	// source of truth, so a cache miss here is not fatal.
	if h.cache != nil {
		if err := h.cache.UpdateScore(ctx, userID, shared.Points(pointsEvent.NewTotal)); err != nil {
			h.logger.Warn("failed to update cached score",
				"user_id", pointsEvent.UserID,
				"error", err,
			)
		}
	}

	if h.awarder != nil {
		if err := h.awarder.award(ctx, userID, pointsEvent.CorrelationID); err != nil {
			h.logger.Error("badge criteria check failed",
				"user_id", pointsEvent.UserID,
				"error", err,
			)
		}
	}

	return nil
}

// EventType returns the event type this handler processes.
func (h *OnPointsAddedHandler) EventType() shared.EventType {
	return shared.EventPointsAdded
}
