package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK BADGE COMMAND
// Appends a badge from the catalog to the user's collection. Unlocking a
// badge the user already owns is a reported no-op, not a failure: the UI
// shows "already earned" instead of an error toast.
// ══════════════════════════════════════════════════════════════════════════════

// UnlockBadgeCommand contains the data to unlock a badge.
type UnlockBadgeCommand struct {
	UserID  shared.UserID
	BadgeID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UnlockBadgeCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return shared.NewDomainError("command", "UnlockBadge", shared.ErrInvalidID, "user_id is required")
	}
	if c.BadgeID == "" {
		return shared.NewDomainError("command", "UnlockBadge", shared.ErrEmptyValue, "badge_id is required")
	}
	return nil
}

// UnlockBadgeResult contains the result of the unlock.
type UnlockBadgeResult struct {
	UserID shared.UserID
	Badge  ledger.Badge

	// AlreadyOwned is true when the badge was unlocked earlier and the
	// command was a no-op.
	AlreadyOwned bool

	Events []shared.Event
}

// UnlockBadgeHandler handles the UnlockBadgeCommand.
type UnlockBadgeHandler struct {
	sessions       *LedgerSessions
	catalog        ledger.BadgeCatalog
	eventPublisher shared.EventPublisher
}

// NewUnlockBadgeHandler creates a new UnlockBadgeHandler.
func NewUnlockBadgeHandler(
	sessions *LedgerSessions,
	catalog ledger.BadgeCatalog,
	eventPublisher shared.EventPublisher,
) *UnlockBadgeHandler {
	return &UnlockBadgeHandler{
		sessions:       sessions,
		catalog:        catalog,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the unlock badge command.
func (h *UnlockBadgeHandler) Handle(ctx context.Context, cmd UnlockBadgeCommand) (*UnlockBadgeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("unlock_badge: validation failed: %w", err)
	}

	def, err := h.findDefinition(ctx, cmd.BadgeID)
	if err != nil {
		return nil, fmt.Errorf("unlock_badge: %w", err)
	}

	unlock := h.sessions.Lock(cmd.UserID)
	defer unlock()

	l, _, err := h.sessions.Load(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("unlock_badge: %w", err)
	}

	// Zero UnlockedAt lets the ledger stamp the unlock time itself.
	badge, err := l.UnlockBadge(def.Badge(time.Time{}))
	if errors.Is(err, shared.ErrDuplicateBadge) {
		return &UnlockBadgeResult{UserID: cmd.UserID, AlreadyOwned: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unlock_badge: %w", err)
	}

	if err := h.sessions.Persist(ctx, l); err != nil {
		_ = h.eventPublisher.Publish(shared.NewPersistenceFailedEvent(
			cmd.UserID.String(), "UnlockBadge", err.Error(),
		))
		return nil, fmt.Errorf("unlock_badge: %w", err)
	}

	event := shared.NewBadgeUnlockedEvent(
		cmd.UserID.String(), badge.ID, badge.Name, badge.Tier.String(),
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &UnlockBadgeResult{
		UserID: cmd.UserID,
		Badge:  badge,
		Events: []shared.Event{event},
	}, nil
}

// findDefinition looks the badge up in the catalog.
func (h *UnlockBadgeHandler) findDefinition(ctx context.Context, badgeID string) (ledger.BadgeDefinition, error) {
	defs, err := h.catalog.ListDefinitions(ctx)
	if err != nil {
		return ledger.BadgeDefinition{}, err
	}
	for _, def := range defs {
		if def.ID == badgeID {
			return def, nil
		}
	}
	return ledger.BadgeDefinition{}, shared.ErrInvalidBadge
}
