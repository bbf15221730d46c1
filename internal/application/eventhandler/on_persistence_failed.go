package eventhandler

import (
	"log/slog"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PERSISTENCE FAILED HANDLER
// A write-through failure means the in-memory game state and storage have
// diverged for that user. There is no automatic repair, the next hydrate
// re-reads storage, so the job here is to make the divergence loud.
// ═══════════════════════════════════════════════════════════════════════════

// OnPersistenceFailedHandler handles PersistenceFailedEvent.
type OnPersistenceFailedHandler struct {
	logger *slog.Logger
}

// NewOnPersistenceFailedHandler creates a new OnPersistenceFailedHandler.
func NewOnPersistenceFailedHandler(logger *slog.Logger) *OnPersistenceFailedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnPersistenceFailedHandler{logger: logger.With("handler", "on_persistence_failed")}
}

// Handle implements shared.EventHandler.
func (h *OnPersistenceFailedHandler) Handle(event shared.Event) error {
	failEvent, ok := event.(shared.PersistenceFailedEvent)
	if !ok {
		h.logger.Warn("received non-PersistenceFailedEvent", "event_type", event.EventType())
		return nil
	}

	h.logger.Error("game state diverged from storage",
		"user_id", failEvent.UserID,
		"op", failEvent.Op,
		"reason", failEvent.Reason,
		"correlation_id", failEvent.CorrelationID,
	)

	return nil
}

// EventType returns the event type this handler processes.
func (h *OnPersistenceFailedHandler) EventType() shared.EventType {
	return shared.EventPersistenceFailed
}
