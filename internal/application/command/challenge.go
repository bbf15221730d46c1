package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY CHALLENGE COMMANDS
// Join -> advance -> complete. Completion credits reward + bonus through
// the ledger, deduplicated by a per-user-per-challenge event id.
// ══════════════════════════════════════════════════════════════════════════════

// JoinChallengeCommand contains the data to join a challenge.
type JoinChallengeCommand struct {
	UserID      shared.UserID
	ChallengeID shared.ContentID

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c JoinChallengeCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return shared.NewDomainError("command", "JoinChallenge", shared.ErrInvalidID, "user_id is required")
	}
	if !c.ChallengeID.IsValid() {
		return shared.NewDomainError("command", "JoinChallenge", shared.ErrInvalidID, "challenge_id is required")
	}
	return nil
}

// JoinChallengeResult contains the result of joining.
type JoinChallengeResult struct {
	UserID      shared.UserID
	ChallengeID shared.ContentID

	// AlreadyJoined is true when the user had joined earlier.
	AlreadyJoined bool

	MaxProgress int
	EndsAt      time.Time
}

// JoinChallengeHandler handles the JoinChallengeCommand.
type JoinChallengeHandler struct {
	challenges     content.ChallengeRepository
	eventPublisher shared.EventPublisher
	now            func() time.Time
}

// NewJoinChallengeHandler creates a new JoinChallengeHandler.
func NewJoinChallengeHandler(challenges content.ChallengeRepository, eventPublisher shared.EventPublisher) *JoinChallengeHandler {
	return &JoinChallengeHandler{
		challenges:     challenges,
		eventPublisher: eventPublisher,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the join challenge command.
func (h *JoinChallengeHandler) Handle(ctx context.Context, cmd JoinChallengeCommand) (*JoinChallengeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("join_challenge: validation failed: %w", err)
	}

	challenge, err := h.challenges.FindByID(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("join_challenge: %w", err)
	}

	// Idempotent join: an existing progress row wins.
	if _, err := h.challenges.FindProgress(ctx, cmd.UserID, cmd.ChallengeID); err == nil {
		return &JoinChallengeResult{
			UserID:        cmd.UserID,
			ChallengeID:   cmd.ChallengeID,
			AlreadyJoined: true,
			MaxProgress:   challenge.MaxProgress,
			EndsAt:        challenge.Window.To,
		}, nil
	}

	progress, err := content.NewChallengeProgress(cmd.UserID, *challenge, h.now())
	if err != nil {
		return nil, fmt.Errorf("join_challenge: %w", err)
	}
	if err := h.challenges.SaveProgress(ctx, progress); err != nil {
		return nil, fmt.Errorf("join_challenge: failed to save progress: %w", err)
	}

	return &JoinChallengeResult{
		UserID:      cmd.UserID,
		ChallengeID: cmd.ChallengeID,
		MaxProgress: challenge.MaxProgress,
		EndsAt:      challenge.Window.To,
	}, nil
}

// AdvanceChallengeCommand contains the data to advance challenge progress.
type AdvanceChallengeCommand struct {
	UserID      shared.UserID
	ChallengeID shared.ContentID

	// Steps defaults to 1 when zero.
	Steps int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AdvanceChallengeCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return shared.NewDomainError("command", "AdvanceChallenge", shared.ErrInvalidID, "user_id is required")
	}
	if !c.ChallengeID.IsValid() {
		return shared.NewDomainError("command", "AdvanceChallenge", shared.ErrInvalidID, "challenge_id is required")
	}
	if c.Steps < 0 {
		return shared.NewDomainError("command", "AdvanceChallenge", shared.ErrNegativeValue, "steps cannot be negative")
	}
	return nil
}

// AdvanceChallengeResult contains the result of advancing.
type AdvanceChallengeResult struct {
	UserID      shared.UserID
	ChallengeID shared.ContentID

	Progress    int
	MaxProgress int

	// Completed is true when this advance finished the challenge.
	Completed    bool
	PointsEarned int
	NewPoints    shared.Points
	NewLevel     shared.Level

	Events []shared.Event
}

// AdvanceChallengeHandler handles the AdvanceChallengeCommand.
type AdvanceChallengeHandler struct {
	challenges     content.ChallengeRepository
	addPoints      *AddPointsHandler
	eventPublisher shared.EventPublisher
	now            func() time.Time
}

// NewAdvanceChallengeHandler creates a new AdvanceChallengeHandler.
func NewAdvanceChallengeHandler(
	challenges content.ChallengeRepository,
	addPoints *AddPointsHandler,
	eventPublisher shared.EventPublisher,
) *AdvanceChallengeHandler {
	return &AdvanceChallengeHandler{
		challenges:     challenges,
		addPoints:      addPoints,
		eventPublisher: eventPublisher,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the advance challenge command.
func (h *AdvanceChallengeHandler) Handle(ctx context.Context, cmd AdvanceChallengeCommand) (*AdvanceChallengeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("advance_challenge: validation failed: %w", err)
	}

	challenge, err := h.challenges.FindByID(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("advance_challenge: %w", err)
	}

	progress, err := h.challenges.FindProgress(ctx, cmd.UserID, cmd.ChallengeID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrInvalidState) {
			return nil, fmt.Errorf("advance_challenge: %w", shared.ErrChallengeNotJoined)
		}
		return nil, fmt.Errorf("advance_challenge: %w", err)
	}

	steps := cmd.Steps
	if steps == 0 {
		steps = 1
	}

	completed, err := progress.Advance(*challenge, steps, h.now())
	if err != nil {
		return nil, fmt.Errorf("advance_challenge: %w", err)
	}
	if err := h.challenges.SaveProgress(ctx, progress); err != nil {
		return nil, fmt.Errorf("advance_challenge: failed to save progress: %w", err)
	}

	result := &AdvanceChallengeResult{
		UserID:      cmd.UserID,
		ChallengeID: cmd.ChallengeID,
		Progress:    progress.Progress,
		MaxProgress: challenge.MaxProgress,
		Completed:   completed,
	}
	if !completed {
		return result, nil
	}

	result.PointsEarned = challenge.TotalReward()
	credit, err := h.addPoints.Handle(ctx, AddPointsCommand{
		UserID:        cmd.UserID,
		Amount:        challenge.TotalReward(),
		Source:        "challenge",
		SourceID:      cmd.ChallengeID.String(),
		EventID:       fmt.Sprintf("challenge:%s:%s", cmd.UserID, cmd.ChallengeID),
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return nil, fmt.Errorf("advance_challenge: %w", err)
	}
	result.NewPoints = credit.NewPoints
	result.NewLevel = credit.NewLevel

	event := shared.NewChallengeCompletedEvent(
		cmd.UserID.String(), cmd.ChallengeID.String(), challenge.RewardPoints, challenge.BonusPoints,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, event)
	_ = h.eventPublisher.Publish(event)

	return result, nil
}
