// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/profile"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// The dashboard read: profile identity plus the full game state from the
// ledger. Level and level progress are derived here, never read from storage.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery contains the parameters for the progress request.
type GetProgressQuery struct {
	// UserID identifies whose progress to fetch.
	UserID shared.UserID

	// BadgeLimit caps the recent-badges list (default 5).
	BadgeLimit int
}

// Validate validates the query parameters.
func (q *GetProgressQuery) Validate() error {
	if q.UserID.IsEmpty() {
		return shared.NewDomainError("query", "GetProgress", shared.ErrInvalidID, "user_id is required")
	}
	if q.BadgeLimit <= 0 {
		q.BadgeLimit = 5
	}
	if q.BadgeLimit > 50 {
		q.BadgeLimit = 50
	}
	return nil
}

// BadgeDTO describes one unlocked badge.
type BadgeDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Tier        string    `json:"tier"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

// LevelProgressDTO describes progress within the current level.
type LevelProgressDTO struct {
	CurrentLevel    int `json:"current_level"`
	PointsIntoLevel int `json:"points_into_level"`
	PointsToNext    int `json:"points_to_next"`

	// Percent is progress toward the next level (0-100).
	Percent int `json:"percent"`
}

// GetProgressResult contains the dashboard snapshot.
type GetProgressResult struct {
	UserID      shared.UserID `json:"user_id"`
	DisplayName string        `json:"display_name"`
	Role        string        `json:"role"`
	AvatarURL   string        `json:"avatar_url,omitempty"`

	Points int `json:"points"`
	Level  int `json:"level"`
	Streak int `json:"streak"`

	LevelProgress LevelProgressDTO `json:"level_progress"`

	TasksCompleted int `json:"tasks_completed"`

	BadgeCount   int        `json:"badge_count"`
	RecentBadges []BadgeDTO `json:"recent_badges,omitempty"`

	// IsNew is true when the user has no recorded activity yet.
	IsNew bool `json:"is_new"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetProgressHandler handles progress queries.
type GetProgressHandler struct {
	profiles  profile.Repository
	snapshots ledger.SnapshotRepository
	tasks     content.TaskRepository
	cfg       ledger.Config
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(
	profiles profile.Repository,
	snapshots ledger.SnapshotRepository,
	tasks content.TaskRepository,
	cfg ledger.Config,
) *GetProgressHandler {
	return &GetProgressHandler{
		profiles:  profiles,
		snapshots: snapshots,
		tasks:     tasks,
		cfg:       cfg,
	}
}

// Handle executes the progress query.
func (h *GetProgressHandler) Handle(ctx context.Context, query GetProgressQuery) (*GetProgressResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	p, err := h.profiles.FindByID(ctx, query.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	l, err := ledger.NewLedger(query.UserID, h.cfg)
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}
	isNew := false
	snap, err := h.snapshots.Load(ctx, query.UserID)
	switch {
	case err == nil:
		if err := l.Hydrate(*snap); err != nil {
			return nil, fmt.Errorf("get_progress: %w", err)
		}
	case errors.Is(err, shared.ErrNotFound):
		// No game state yet, render the zero dashboard.
		if err := l.HydrateEmpty(); err != nil {
			return nil, fmt.Errorf("get_progress: %w", err)
		}
		isNew = true
	default:
		return nil, shared.WrapError("query", "GetProgress", shared.ErrHydrationFailed, "failed to load game state", err)
	}

	completions, err := h.tasks.CountCompleted(ctx, query.UserID)
	if err != nil {
		completions = 0
	}

	points, err := l.Points()
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}
	level, err := l.Level()
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}
	streak, err := l.Streak()
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}
	badges, err := l.Badges()
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}
	recent, err := l.LatestBadges(query.BadgeLimit)
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}
	progress, err := l.LevelProgress()
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	result := &GetProgressResult{
		UserID:         query.UserID,
		DisplayName:    p.FullName,
		Role:           string(p.Role),
		AvatarURL:      p.AvatarURL,
		Points:         points.Int(),
		Level:          int(level),
		Streak:         streak,
		LevelProgress:  buildLevelProgressDTO(progress, h.cfg.PointsPerLevel),
		TasksCompleted: completions,
		BadgeCount:     len(badges),
		RecentBadges:   buildBadgeDTOs(recent),
		IsNew:          isNew,
		GeneratedAt:    time.Now().UTC(),
	}

	return result, nil
}

func buildLevelProgressDTO(p ledger.Progress, pointsPerLevel int) LevelProgressDTO {
	if pointsPerLevel <= 0 {
		pointsPerLevel = shared.PointsPerLevel
	}
	return LevelProgressDTO{
		CurrentLevel:    int(p.CurrentLevel),
		PointsIntoLevel: p.PointsIntoLevel,
		PointsToNext:    p.PointsToNext,
		Percent:         p.PointsIntoLevel * 100 / pointsPerLevel,
	}
}

func buildBadgeDTOs(badges []ledger.Badge) []BadgeDTO {
	if len(badges) == 0 {
		return nil
	}
	dtos := make([]BadgeDTO, len(badges))
	for i, b := range badges {
		dtos[i] = BadgeDTO{
			ID:          b.ID,
			Name:        b.Name,
			Description: b.Description,
			Icon:        b.Icon,
			Tier:        string(b.Tier),
			UnlockedAt:  b.UnlockedAt,
		}
	}
	return dtos
}
