package command

import (
	"context"
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/profile"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD POINTS COMMAND
// Credits a reward to the user's ledger. The ledger mutation is additive and
// not replay-safe, so every reward carries a logical event id that is
// deduplicated before crediting. The durable snapshot and the denormalized
// profile columns are written through after the in-memory mutation.
// ══════════════════════════════════════════════════════════════════════════════

// rewardDedupTTL bounds the dedup set; a reward replayed later than this is
// indistinguishable from a new reward.
const rewardDedupTTL = 48 * time.Hour

// AddPointsCommand contains the data to credit points.
type AddPointsCommand struct {
	UserID shared.UserID

	// Amount may be negative for corrections but must not drive the
	// balance below zero.
	Amount int

	// Source names what earned the reward: "task", "episode", "challenge".
	Source string

	// SourceID is the id of the task/episode/challenge.
	SourceID string

	// EventID is the logical id of this reward event, used for dedup.
	EventID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AddPointsCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return shared.NewDomainError("command", "AddPoints", shared.ErrInvalidID, "user_id is required")
	}
	if c.EventID == "" {
		return shared.NewDomainError("command", "AddPoints", shared.ErrEmptyValue, "event_id is required for reward dedup")
	}
	if c.Source == "" {
		return shared.NewDomainError("command", "AddPoints", shared.ErrEmptyValue, "source is required")
	}
	return nil
}

// AddPointsResult contains the result of crediting points.
type AddPointsResult struct {
	UserID shared.UserID

	OldPoints shared.Points
	NewPoints shared.Points
	OldLevel  shared.Level
	NewLevel  shared.Level
	LeveledUp bool

	// Deduplicated is true when the event id was already credited and the
	// command was a no-op.
	Deduplicated bool

	// Events contains domain events generated.
	Events []shared.Event
}

// AddPointsHandler handles the AddPointsCommand.
type AddPointsHandler struct {
	sessions       *LedgerSessions
	profiles       profile.Repository
	deduper        RewardDeduper
	eventPublisher shared.EventPublisher
}

// NewAddPointsHandler creates a new AddPointsHandler.
func NewAddPointsHandler(
	sessions *LedgerSessions,
	profiles profile.Repository,
	deduper RewardDeduper,
	eventPublisher shared.EventPublisher,
) *AddPointsHandler {
	return &AddPointsHandler{
		sessions:       sessions,
		profiles:       profiles,
		deduper:        deduper,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the add points command.
func (h *AddPointsHandler) Handle(ctx context.Context, cmd AddPointsCommand) (*AddPointsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("add_points: validation failed: %w", err)
	}

	unlock := h.sessions.Lock(cmd.UserID)
	defer unlock()

	// Dedup before touching the ledger. The claim is provisional until the
	// write-through lands: any failure past this point releases the marker,
	// otherwise a retry of the same logical event would look like a replay
	// and the reward would be lost.
	fresh, err := h.deduper.MarkProcessed(ctx, cmd.EventID, rewardDedupTTL)
	if err != nil {
		return nil, fmt.Errorf("add_points: dedup check failed: %w", err)
	}
	if !fresh {
		return &AddPointsResult{UserID: cmd.UserID, Deduplicated: true}, nil
	}

	l, _, err := h.sessions.Load(ctx, cmd.UserID)
	if err != nil {
		_ = h.deduper.Release(ctx, cmd.EventID)
		return nil, fmt.Errorf("add_points: %w", err)
	}

	mutation, err := l.AddPoints(cmd.Amount)
	if err != nil {
		_ = h.deduper.Release(ctx, cmd.EventID)
		return nil, fmt.Errorf("add_points: %w", err)
	}

	if err := h.sessions.Persist(ctx, l); err != nil {
		// In-memory state and storage diverged. Report it, free the event
		// id and let the caller retry the whole command.
		_ = h.deduper.Release(ctx, cmd.EventID)
		_ = h.eventPublisher.Publish(shared.NewPersistenceFailedEvent(
			cmd.UserID.String(), "AddPoints", err.Error(),
		))
		return nil, fmt.Errorf("add_points: %w", err)
	}

	h.syncProfile(ctx, l)

	result := &AddPointsResult{
		UserID:    cmd.UserID,
		OldPoints: mutation.OldPoints,
		NewPoints: mutation.NewPoints,
		OldLevel:  mutation.OldLevel,
		NewLevel:  mutation.NewLevel,
		LeveledUp: mutation.LeveledUp(),
	}

	pointsEvent := shared.NewPointsAddedEvent(
		cmd.UserID.String(), cmd.Amount, mutation.NewPoints.Int(), cmd.Source, cmd.SourceID,
	)
	if cmd.CorrelationID != "" {
		pointsEvent.BaseEvent = pointsEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, pointsEvent)

	if mutation.LeveledUp() {
		result.Events = append(result.Events, shared.NewLevelUpEvent(
			cmd.UserID.String(), mutation.OldLevel.Int(), mutation.NewLevel.Int(), mutation.NewPoints.Int(),
		))
	}

	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

// syncProfile updates the denormalized points/badge-count columns used by
// the leaderboard. A failure here is non-fatal: ranking catches up on the
// next scheduled rebuild.
func (h *AddPointsHandler) syncProfile(ctx context.Context, l *ledger.Ledger) {
	p, err := h.profiles.FindByID(ctx, l.UserID)
	if err != nil {
		return
	}
	points, _ := l.Points()
	badges, _ := l.Badges()
	if err := p.SyncGameState(points, len(badges)); err != nil {
		return
	}
	_ = h.profiles.Save(ctx, p)
}
