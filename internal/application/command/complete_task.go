package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE TASK COMMAND
// The main earn loop: records the submission, credits the task's points
// through the ledger (deduplicated by submission id) and counts the day
// toward the streak. The new completion count is the unlock-gate signal and
// travels on the TaskCompleted event.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteTaskCommand contains the data to complete a task.
type CompleteTaskCommand struct {
	UserID shared.UserID
	TaskID shared.ContentID

	// SubmissionID identifies this submission; generated when empty.
	// Doubles as the reward dedup id, so an offline client re-sending the
	// same submission cannot double-credit.
	SubmissionID string

	// CompletedAt defaults to now if zero.
	CompletedAt time.Time

	// Synced is false for submissions recorded while offline.
	Synced bool

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteTaskCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return shared.NewDomainError("command", "CompleteTask", shared.ErrInvalidID, "user_id is required")
	}
	if !c.TaskID.IsValid() {
		return shared.NewDomainError("command", "CompleteTask", shared.ErrInvalidID, "task_id is required")
	}
	return nil
}

// CompleteTaskResult contains the result of completing a task.
type CompleteTaskResult struct {
	UserID       shared.UserID
	TaskID       shared.ContentID
	SubmissionID string

	PointsEarned int
	NewPoints    shared.Points
	NewLevel     shared.Level
	LeveledUp    bool

	// TotalCompletions is the new completion count, the gate signal.
	TotalCompletions int

	NewStreak int

	Events []shared.Event
}

// CompleteTaskHandler handles the CompleteTaskCommand.
type CompleteTaskHandler struct {
	tasks          content.TaskRepository
	addPoints      *AddPointsHandler
	recordActivity *RecordActivityHandler
	eventPublisher shared.EventPublisher
}

// NewCompleteTaskHandler creates a new CompleteTaskHandler.
func NewCompleteTaskHandler(
	tasks content.TaskRepository,
	addPoints *AddPointsHandler,
	recordActivity *RecordActivityHandler,
	eventPublisher shared.EventPublisher,
) *CompleteTaskHandler {
	return &CompleteTaskHandler{
		tasks:          tasks,
		addPoints:      addPoints,
		recordActivity: recordActivity,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the complete task command.
func (h *CompleteTaskHandler) Handle(ctx context.Context, cmd CompleteTaskCommand) (*CompleteTaskResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_task: validation failed: %w", err)
	}

	task, err := h.tasks.FindByID(ctx, cmd.TaskID)
	if err != nil {
		return nil, fmt.Errorf("complete_task: %w", err)
	}

	completedAt := cmd.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}
	submissionID := cmd.SubmissionID
	if submissionID == "" {
		submissionID = uuid.NewString()
	}

	if err := h.tasks.RecordSubmission(ctx, &content.Submission{
		ID:          submissionID,
		UserID:      cmd.UserID,
		TaskID:      cmd.TaskID,
		SubmittedAt: completedAt,
		Synced:      cmd.Synced,
	}); err != nil {
		return nil, fmt.Errorf("complete_task: failed to record submission: %w", err)
	}

	credit, err := h.addPoints.Handle(ctx, AddPointsCommand{
		UserID:        cmd.UserID,
		Amount:        task.Points,
		Source:        "task",
		SourceID:      cmd.TaskID.String(),
		EventID:       submissionID,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return nil, fmt.Errorf("complete_task: %w", err)
	}

	result := &CompleteTaskResult{
		UserID:       cmd.UserID,
		TaskID:       cmd.TaskID,
		SubmissionID: submissionID,
		PointsEarned: task.Points,
		NewPoints:    credit.NewPoints,
		NewLevel:     credit.NewLevel,
		LeveledUp:    credit.LeveledUp,
	}

	// Completing a task is daily activity for the streak.
	activity, err := h.recordActivity.Handle(ctx, RecordActivityCommand{
		UserID:        cmd.UserID,
		ActivityAt:    completedAt,
		CorrelationID: cmd.CorrelationID,
	})
	if err == nil {
		result.NewStreak = activity.NewStreak
	}

	completions, err := h.tasks.CountCompleted(ctx, cmd.UserID)
	if err != nil {
		completions = 0
	}
	result.TotalCompletions = completions

	taskEvent := shared.NewTaskCompletedEvent(
		cmd.UserID.String(), cmd.TaskID.String(), task.Points, completions,
	)
	if cmd.CorrelationID != "" {
		taskEvent.BaseEvent = taskEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, taskEvent)
	_ = h.eventPublisher.Publish(taskEvent)

	return result, nil
}
