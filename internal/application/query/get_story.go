package query

import (
	"context"
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STORY QUERY
// Lists published episodes with their unlock status, computed at read time
// from the viewer's completion count. Nothing about unlocks is stored.
// ══════════════════════════════════════════════════════════════════════════════

// GetStoryQuery contains the parameters for the story request.
type GetStoryQuery struct {
	// UserID is the viewer whose unlock state decides what is reachable.
	UserID shared.UserID
}

// Validate validates the query parameters.
func (q *GetStoryQuery) Validate() error {
	if q.UserID.IsEmpty() {
		return shared.NewDomainError("query", "GetStory", shared.ErrInvalidID, "user_id is required")
	}
	return nil
}

// EpisodeDTO describes one episode as seen by the viewer.
type EpisodeDTO struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Chapter      int    `json:"chapter"`
	Order        int    `json:"order"`
	PointsReward int    `json:"points_reward"`

	RequiredTasks int  `json:"required_tasks"`
	IsUnlocked    bool `json:"is_unlocked"`

	// TasksRemaining is how many more completions unlock this episode.
	TasksRemaining int `json:"tasks_remaining,omitempty"`

	IsCompleted bool `json:"is_completed"`
}

// GetStoryResult contains the episode list for the viewer.
type GetStoryResult struct {
	UserID shared.UserID `json:"user_id"`

	// TasksCompleted is the completion count the gate was evaluated against.
	TasksCompleted int `json:"tasks_completed"`

	Episodes []EpisodeDTO `json:"episodes"`

	UnlockedCount  int `json:"unlocked_count"`
	CompletedCount int `json:"completed_count"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetStoryHandler handles story queries.
type GetStoryHandler struct {
	episodes content.EpisodeRepository
	tasks    content.TaskRepository
}

// NewGetStoryHandler creates a new GetStoryHandler.
func NewGetStoryHandler(episodes content.EpisodeRepository, tasks content.TaskRepository) *GetStoryHandler {
	return &GetStoryHandler{episodes: episodes, tasks: tasks}
}

// Handle executes the story query.
func (h *GetStoryHandler) Handle(ctx context.Context, query GetStoryQuery) (*GetStoryResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("get_story: %w", err)
	}

	episodes, err := h.episodes.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_story: failed to list episodes: %w", err)
	}

	completions, err := h.tasks.CountCompleted(ctx, query.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_story: failed to count completions: %w", err)
	}

	completedIDs, err := h.episodes.ListCompleted(ctx, query.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_story: failed to list completed episodes: %w", err)
	}
	completed := make(map[shared.ContentID]bool, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = true
	}

	statuses := content.EvaluateEpisodes(episodes, completions)

	result := &GetStoryResult{
		UserID:         query.UserID,
		TasksCompleted: completions,
		Episodes:       make([]EpisodeDTO, len(statuses)),
		GeneratedAt:    time.Now().UTC(),
	}

	for i, st := range statuses {
		dto := EpisodeDTO{
			ID:            st.Episode.ID.String(),
			Title:         st.Episode.Title,
			Description:   st.Episode.Description,
			Chapter:       st.Episode.Chapter,
			Order:         st.Episode.Order,
			PointsReward:  st.Episode.PointsReward,
			RequiredTasks: st.Episode.RequiredTasks,
			IsUnlocked:    st.Unlock.IsUnlocked,
			IsCompleted:   completed[st.Episode.ID],
		}
		if !st.Unlock.IsUnlocked {
			dto.TasksRemaining = st.Unlock.Remaining
		}
		if dto.IsUnlocked {
			result.UnlockedCount++
		}
		if dto.IsCompleted {
			result.CompletedCount++
		}
		result.Episodes[i] = dto
	}

	return result, nil
}
