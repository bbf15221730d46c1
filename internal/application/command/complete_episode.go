package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE EPISODE COMMAND
// Finishes a story episode: re-checks the unlock gate against the current
// completion count (unlock state is never stored, always recomputed), marks
// the episode done and credits its reward. Re-completing is a reported
// no-op so replays cannot double-credit.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteEpisodeCommand contains the data to complete an episode.
type CompleteEpisodeCommand struct {
	UserID    shared.UserID
	EpisodeID shared.ContentID

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteEpisodeCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return shared.NewDomainError("command", "CompleteEpisode", shared.ErrInvalidID, "user_id is required")
	}
	if !c.EpisodeID.IsValid() {
		return shared.NewDomainError("command", "CompleteEpisode", shared.ErrInvalidID, "episode_id is required")
	}
	return nil
}

// CompleteEpisodeResult contains the result of completing an episode.
type CompleteEpisodeResult struct {
	UserID    shared.UserID
	EpisodeID shared.ContentID

	PointsEarned int
	NewPoints    shared.Points
	NewLevel     shared.Level
	LeveledUp    bool

	// AlreadyCompleted is true when the episode was finished earlier and
	// the command was a no-op.
	AlreadyCompleted bool

	Events []shared.Event
}

// CompleteEpisodeHandler handles the CompleteEpisodeCommand.
type CompleteEpisodeHandler struct {
	episodes       content.EpisodeRepository
	tasks          content.TaskRepository
	addPoints      *AddPointsHandler
	eventPublisher shared.EventPublisher
}

// NewCompleteEpisodeHandler creates a new CompleteEpisodeHandler.
func NewCompleteEpisodeHandler(
	episodes content.EpisodeRepository,
	tasks content.TaskRepository,
	addPoints *AddPointsHandler,
	eventPublisher shared.EventPublisher,
) *CompleteEpisodeHandler {
	return &CompleteEpisodeHandler{
		episodes:       episodes,
		tasks:          tasks,
		addPoints:      addPoints,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the complete episode command.
func (h *CompleteEpisodeHandler) Handle(ctx context.Context, cmd CompleteEpisodeCommand) (*CompleteEpisodeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_episode: validation failed: %w", err)
	}

	episode, err := h.episodes.FindByID(ctx, cmd.EpisodeID)
	if err != nil {
		return nil, fmt.Errorf("complete_episode: %w", err)
	}

	// The gate decides, never a stored flag.
	completions, err := h.tasks.CountCompleted(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("complete_episode: failed to count completions: %w", err)
	}
	unlocks := content.Evaluate([]content.Unlockable{episode.Unlockable()}, completions)
	if !unlocks[episode.ID].IsUnlocked {
		return nil, fmt.Errorf("complete_episode: %w", shared.ErrContentLocked)
	}

	err = h.episodes.MarkCompleted(ctx, cmd.UserID, cmd.EpisodeID)
	if errors.Is(err, shared.ErrAlreadyCompleted) {
		return &CompleteEpisodeResult{
			UserID:           cmd.UserID,
			EpisodeID:        cmd.EpisodeID,
			AlreadyCompleted: true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("complete_episode: %w", err)
	}

	result := &CompleteEpisodeResult{
		UserID:       cmd.UserID,
		EpisodeID:    cmd.EpisodeID,
		PointsEarned: episode.PointsReward,
	}

	if episode.PointsReward > 0 {
		credit, err := h.addPoints.Handle(ctx, AddPointsCommand{
			UserID:        cmd.UserID,
			Amount:        episode.PointsReward,
			Source:        "episode",
			SourceID:      cmd.EpisodeID.String(),
			EventID:       fmt.Sprintf("episode:%s:%s", cmd.UserID, cmd.EpisodeID),
			CorrelationID: cmd.CorrelationID,
		})
		if err != nil {
			return nil, fmt.Errorf("complete_episode: %w", err)
		}
		result.NewPoints = credit.NewPoints
		result.NewLevel = credit.NewLevel
		result.LeveledUp = credit.LeveledUp
	}

	event := shared.NewEpisodeCompletedEvent(cmd.UserID.String(), cmd.EpisodeID.String(), episode.PointsReward)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, event)
	_ = h.eventPublisher.Publish(event)

	return result, nil
}
