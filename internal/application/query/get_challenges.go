package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CHALLENGES QUERY
// Lists active weekly challenges with the viewer's progress joined in.
// ══════════════════════════════════════════════════════════════════════════════

// GetChallengesQuery contains the parameters for the challenges request.
type GetChallengesQuery struct {
	UserID shared.UserID

	// At is the reference time for the activity window (default now).
	At time.Time
}

// Validate validates the query parameters.
func (q *GetChallengesQuery) Validate() error {
	if q.UserID.IsEmpty() {
		return shared.NewDomainError("query", "GetChallenges", shared.ErrInvalidID, "user_id is required")
	}
	if q.At.IsZero() {
		q.At = time.Now().UTC()
	}
	return nil
}

// ChallengeDTO describes one challenge as seen by the viewer.
type ChallengeDTO struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	RewardPoints int       `json:"reward_points"`
	BonusPoints  int       `json:"bonus_points,omitempty"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	MaxProgress  int       `json:"max_progress"`

	// HoursLeft until the window closes.
	HoursLeft int `json:"hours_left"`

	Joined      bool       `json:"joined"`
	Progress    int        `json:"progress"`
	Percent     int        `json:"percent"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GetChallengesResult contains the active challenge list.
type GetChallengesResult struct {
	UserID     shared.UserID  `json:"user_id"`
	Challenges []ChallengeDTO `json:"challenges"`

	JoinedCount    int `json:"joined_count"`
	CompletedCount int `json:"completed_count"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetChallengesHandler handles challenge queries.
type GetChallengesHandler struct {
	challenges content.ChallengeRepository
}

// NewGetChallengesHandler creates a new GetChallengesHandler.
func NewGetChallengesHandler(challenges content.ChallengeRepository) *GetChallengesHandler {
	return &GetChallengesHandler{challenges: challenges}
}

// Handle executes the challenges query.
func (h *GetChallengesHandler) Handle(ctx context.Context, query GetChallengesQuery) (*GetChallengesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("get_challenges: %w", err)
	}

	active, err := h.challenges.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_challenges: failed to list challenges: %w", err)
	}

	result := &GetChallengesResult{
		UserID:      query.UserID,
		Challenges:  make([]ChallengeDTO, 0, len(active)),
		GeneratedAt: time.Now().UTC(),
	}

	for _, c := range active {
		dto := ChallengeDTO{
			ID:           c.ID.String(),
			Title:        c.Title,
			Description:  c.Description,
			RewardPoints: c.RewardPoints,
			BonusPoints:  c.BonusPoints,
			StartsAt:     c.Window.From,
			EndsAt:       c.Window.To,
			MaxProgress:  c.MaxProgress,
			HoursLeft:    int(c.Window.To.Sub(query.At).Hours()),
		}

		progress, err := h.challenges.FindProgress(ctx, query.UserID, c.ID)
		switch {
		case err == nil:
			dto.Joined = true
			dto.Progress = progress.Progress
			if c.MaxProgress > 0 {
				dto.Percent = progress.Progress * 100 / c.MaxProgress
			}
			dto.IsCompleted = progress.IsCompleted()
			dto.CompletedAt = progress.CompletedAt
			result.JoinedCount++
			if dto.IsCompleted {
				result.CompletedCount++
			}
		case errors.Is(err, shared.ErrChallengeNotJoined) || errors.Is(err, shared.ErrNotFound):
			// Not joined, show the bare challenge.
		default:
			return nil, fmt.Errorf("get_challenges: failed to load progress: %w", err)
		}

		result.Challenges = append(result.Challenges, dto)
	}

	return result, nil
}
