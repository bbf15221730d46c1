package command

import (
	"context"
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD DAILY ACTIVITY COMMAND
// Counts a user's first qualifying activity of the calendar day toward the
// streak. Repeated calls within the same day are no-ops; the ledger applies
// the configured reset policy on missed days.
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityCommand contains the data to record daily activity.
type RecordActivityCommand struct {
	UserID shared.UserID

	// ActivityAt is when the activity occurred (defaults to now if zero).
	ActivityAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordActivityCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return shared.NewDomainError("command", "RecordActivity", shared.ErrInvalidID, "user_id is required")
	}
	return nil
}

// RecordActivityResult contains the result of recording activity.
type RecordActivityResult struct {
	UserID shared.UserID

	OldStreak int
	NewStreak int

	// StreakUpdated is true when the streak value changed.
	StreakUpdated bool

	// StreakBroken is true when missed days reset the streak.
	StreakBroken bool
	DaysMissed   int

	Events []shared.Event
}

// RecordActivityHandler handles the RecordActivityCommand.
type RecordActivityHandler struct {
	sessions       *LedgerSessions
	eventPublisher shared.EventPublisher
}

// NewRecordActivityHandler creates a new RecordActivityHandler.
func NewRecordActivityHandler(sessions *LedgerSessions, eventPublisher shared.EventPublisher) *RecordActivityHandler {
	return &RecordActivityHandler{
		sessions:       sessions,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the record activity command.
func (h *RecordActivityHandler) Handle(ctx context.Context, cmd RecordActivityCommand) (*RecordActivityResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_activity: validation failed: %w", err)
	}

	activityAt := cmd.ActivityAt
	if activityAt.IsZero() {
		activityAt = time.Now().UTC()
	}

	unlock := h.sessions.Lock(cmd.UserID)
	defer unlock()

	l, _, err := h.sessions.Load(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("record_activity: %w", err)
	}

	change, err := l.RecordDailyActivity(activityAt)
	if err != nil {
		return nil, fmt.Errorf("record_activity: %w", err)
	}

	result := &RecordActivityResult{
		UserID:        cmd.UserID,
		OldStreak:     change.OldStreak,
		NewStreak:     change.NewStreak,
		StreakUpdated: change.NewStreak != change.OldStreak,
		StreakBroken:  change.Broken(),
		DaysMissed:    change.DaysMissed,
	}

	// Same-day repeat: nothing changed, nothing to persist.
	if !result.StreakUpdated {
		return result, nil
	}

	if err := h.sessions.Persist(ctx, l); err != nil {
		_ = h.eventPublisher.Publish(shared.NewPersistenceFailedEvent(
			cmd.UserID.String(), "RecordActivity", err.Error(),
		))
		return nil, fmt.Errorf("record_activity: %w", err)
	}

	if change.Broken() {
		result.Events = append(result.Events, shared.NewStreakBrokenEvent(
			cmd.UserID.String(), change.OldStreak, change.DaysMissed, change.NewStreak,
		))
	}
	streakEvent := shared.NewStreakUpdatedEvent(cmd.UserID.String(), change.OldStreak, change.NewStreak)
	if cmd.CorrelationID != "" {
		streakEvent.BaseEvent = streakEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, streakEvent)

	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}
