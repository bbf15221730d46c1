package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/leaderboard"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Serves the ranking from the cache when warm, falling back to the latest
// persisted snapshot. Rank movement comes from the snapshot diff computed by
// the rebuild job, so two reads of the same snapshot agree.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery contains the parameters for the leaderboard request.
type GetLeaderboardQuery struct {
	// Page is 1-based; PageSize defaults to 10, capped at 100.
	Page     int
	PageSize int

	// ViewerID, when set, adds the viewer's own rank even if outside the page.
	ViewerID shared.UserID

	// IncludeNeighbors adds entries around the viewer.
	IncludeNeighbors bool

	// NeighborRadius is how many entries on each side (default 2).
	NeighborRadius int
}

// Validate validates the query parameters.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 10
	}
	if q.PageSize > shared.MaxPageSize {
		q.PageSize = shared.MaxPageSize
	}
	if q.NeighborRadius <= 0 {
		q.NeighborRadius = 2
	}
	return nil
}

// LeaderboardEntryDTO describes one row of the leaderboard.
type LeaderboardEntryDTO struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Points      int    `json:"points"`
	Level       int    `json:"level"`
	BadgeCount  int    `json:"badge_count"`
	Streak      int    `json:"streak,omitempty"`

	RankChange    int    `json:"rank_change"`
	RankDirection string `json:"rank_direction"`
	RankEmoji     string `json:"rank_emoji,omitempty"`

	IsViewer bool `json:"is_viewer,omitempty"`
}

// ViewerRankDTO describes the viewer's own position.
type ViewerRankDTO struct {
	Rank       int  `json:"rank"`
	Points     int  `json:"points"`
	OnBoard    bool `json:"on_board"`
	InTopList  bool `json:"in_top_list"`
	RankChange int  `json:"rank_change"`

	// LiveRank is the position in the live score set, refreshed between
	// snapshot rebuilds. Zero when no live data is available.
	LiveRank int `json:"live_rank,omitempty"`
}

// GetLeaderboardResult contains the leaderboard page.
type GetLeaderboardResult struct {
	Entries []LeaderboardEntryDTO `json:"entries"`

	Viewer    *ViewerRankDTO        `json:"viewer,omitempty"`
	Neighbors []LeaderboardEntryDTO `json:"neighbors,omitempty"`

	TotalUsers    int       `json:"total_users"`
	AveragePoints int       `json:"average_points,omitempty"`
	SnapshotAt    time.Time `json:"snapshot_at"`

	// FromCache marks whether the page was served from the cache.
	FromCache bool `json:"-"`

	GeneratedAt time.Time `json:"generated_at"`
}

// viewerRankTTL bounds staleness of the per-user cached row between rebuilds.
const viewerRankTTL = 5 * time.Minute

// liveRanker is implemented by caches that keep a live score set.
type liveRanker interface {
	GetLiveRank(ctx context.Context, userID shared.UserID) (int, error)
}

// GetLeaderboardHandler handles leaderboard queries.
type GetLeaderboardHandler struct {
	repo  leaderboard.Repository
	cache leaderboard.Cache
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler.
func NewGetLeaderboardHandler(repo leaderboard.Repository, cache leaderboard.Cache) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{repo: repo, cache: cache}
}

// Handle executes the leaderboard query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	result := &GetLeaderboardResult{GeneratedAt: time.Now().UTC()}

	// Cache first for the common top-of-board page.
	if h.cache != nil && query.Page == 1 {
		if cached, err := h.cache.GetCachedTop(ctx, query.PageSize); err == nil && len(cached) > 0 {
			result.Entries = buildEntryDTOs(cached, query.ViewerID)
			result.FromCache = true
		}
	}

	snapshot, err := h.repo.GetLatestSnapshot(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) && result.FromCache {
			// Cache carried the page, snapshot metadata is best-effort.
			return result, nil
		}
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrLeaderboardEmpty, "no leaderboard snapshot", err)
	}

	result.TotalUsers = snapshot.TotalUsers
	result.AveragePoints = int(snapshot.AveragePoints)
	result.SnapshotAt = snapshot.SnapshotAt

	if !result.FromCache {
		page := snapshot.Page(query.Page, query.PageSize)
		result.Entries = buildEntryDTOs(page, query.ViewerID)
	}

	h.attachViewer(ctx, result, query, snapshot)
	return result, nil
}

// attachViewer adds the viewer's own rank and neighbor entries.
func (h *GetLeaderboardHandler) attachViewer(
	ctx context.Context,
	result *GetLeaderboardResult,
	query GetLeaderboardQuery,
	snapshot *leaderboard.Snapshot,
) {
	if query.ViewerID.IsEmpty() {
		return
	}

	entry := h.viewerEntry(ctx, query.ViewerID, snapshot)
	if entry == nil {
		result.Viewer = &ViewerRankDTO{OnBoard: false}
		return
	}

	inTop := false
	for _, dto := range result.Entries {
		if dto.IsViewer {
			inTop = true
			break
		}
	}
	result.Viewer = &ViewerRankDTO{
		Rank:       int(entry.Rank),
		Points:     entry.Points.Int(),
		OnBoard:    true,
		InTopList:  inTop,
		RankChange: int(entry.RankChange),
	}

	if ranker, ok := h.cache.(liveRanker); ok {
		if live, err := ranker.GetLiveRank(ctx, query.ViewerID); err == nil {
			result.Viewer.LiveRank = live
		}
	}

	if query.IncludeNeighbors && !inTop {
		neighbors := snapshot.Neighbors(query.ViewerID, query.NeighborRadius)
		result.Neighbors = buildEntryDTOs(neighbors, query.ViewerID)
	}
}

// viewerEntry resolves the viewer's row, preferring the per-user cached row
// over a snapshot index lookup. Snapshot hits are written back to the cache.
func (h *GetLeaderboardHandler) viewerEntry(ctx context.Context, viewerID shared.UserID, snapshot *leaderboard.Snapshot) *leaderboard.Entry {
	if h.cache != nil {
		if cached, err := h.cache.GetCachedRank(ctx, viewerID); err == nil && cached != nil {
			return cached
		}
	}

	entry := snapshot.GetByID(viewerID)
	if entry != nil && h.cache != nil {
		// Cache write failures never fail the read path.
		_ = h.cache.SetCachedRank(ctx, entry, viewerRankTTL)
	}
	return entry
}

func buildEntryDTOs(entries []*leaderboard.Entry, viewerID shared.UserID) []LeaderboardEntryDTO {
	if len(entries) == 0 {
		return nil
	}
	dtos := make([]LeaderboardEntryDTO, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		dir := e.RankChange.Direction()
		dtos = append(dtos, LeaderboardEntryDTO{
			Rank:          int(e.Rank),
			UserID:        e.UserID.String(),
			DisplayName:   e.DisplayName,
			AvatarURL:     e.AvatarURL,
			Points:        e.Points.Int(),
			Level:         int(e.Level),
			BadgeCount:    e.BadgeCount,
			Streak:        e.Streak,
			RankChange:    int(e.RankChange),
			RankDirection: string(dir),
			RankEmoji:     dir.Emoji(),
			IsViewer:      !viewerID.IsEmpty() && e.UserID == viewerID,
		})
	}
	return dtos
}
