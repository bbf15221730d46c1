package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/leaderboard"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY (leaderboard.Repository)
// Snapshots are immutable rows; the entries slice lives in one JSONB column
// because a snapshot is always read and written whole.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository for PostgreSQL.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// entryRecord is the JSONB shape of one leaderboard entry.
type entryRecord struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Points      int       `json:"points"`
	Level       int       `json:"level"`
	BadgeCount  int       `json:"badge_count"`
	Streak      int       `json:"streak,omitempty"`
	RankChange  int       `json:"rank_change"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func encodeEntries(entries []*leaderboard.Entry) ([]byte, error) {
	records := make([]entryRecord, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		records = append(records, entryRecord{
			Rank:        int(e.Rank),
			UserID:      e.UserID.String(),
			DisplayName: e.DisplayName,
			AvatarURL:   e.AvatarURL,
			Points:      e.Points.Int(),
			Level:       int(e.Level),
			BadgeCount:  e.BadgeCount,
			Streak:      e.Streak,
			RankChange:  int(e.RankChange),
			UpdatedAt:   e.UpdatedAt,
		})
	}
	return json.Marshal(records)
}

func decodeEntries(raw []byte) ([]*leaderboard.Entry, error) {
	var records []entryRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode entries: %w", err)
	}

	entries := make([]*leaderboard.Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, &leaderboard.Entry{
			Rank:        leaderboard.Rank(rec.Rank),
			UserID:      shared.UserID(rec.UserID),
			DisplayName: rec.DisplayName,
			AvatarURL:   rec.AvatarURL,
			Points:      shared.Points(rec.Points),
			Level:       shared.Level(rec.Level),
			BadgeCount:  rec.BadgeCount,
			Streak:      rec.Streak,
			RankChange:  leaderboard.RankChange(rec.RankChange),
			UpdatedAt:   rec.UpdatedAt,
		})
	}
	return entries, nil
}

// SaveSnapshot persists a snapshot. Snapshots are never updated.
func (r *LeaderboardRepository) SaveSnapshot(ctx context.Context, snapshot *leaderboard.Snapshot) error {
	raw, err := encodeEntries(snapshot.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot entries: %w", err)
	}

	query := `
		INSERT INTO leaderboard_snapshots (id, snapshot_at, total_users, total_points, average_points, entries)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.conn.Exec(ctx, query,
		snapshot.ID,
		snapshot.SnapshotAt,
		snapshot.TotalUsers,
		snapshot.TotalPoints,
		int(snapshot.AveragePoints),
		raw,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

const snapshotColumns = `id, snapshot_at, total_users, total_points, average_points, entries`

func scanSnapshot(row interface{ Scan(...interface{}) error }) (*leaderboard.Snapshot, error) {
	snap := &leaderboard.Snapshot{}
	var avg int
	var raw []byte
	if err := row.Scan(
		&snap.ID,
		&snap.SnapshotAt,
		&snap.TotalUsers,
		&snap.TotalPoints,
		&avg,
		&raw,
	); err != nil {
		return nil, err
	}
	snap.AveragePoints = shared.Points(avg)

	entries, err := decodeEntries(raw)
	if err != nil {
		return nil, err
	}
	snap.Entries = entries
	snap.RebuildIndex()

	return snap, nil
}

// GetLatestSnapshot returns the newest snapshot or shared.ErrLeaderboardSnapshot.
func (r *LeaderboardRepository) GetLatestSnapshot(ctx context.Context) (*leaderboard.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM leaderboard_snapshots ORDER BY snapshot_at DESC LIMIT 1`

	snap, err := scanSnapshot(r.conn.QueryRow(ctx, query))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLeaderboardSnapshot
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snap, nil
}

// GetSnapshotByID returns a snapshot by its id.
func (r *LeaderboardRepository) GetSnapshotByID(ctx context.Context, id string) (*leaderboard.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM leaderboard_snapshots WHERE id = $1`

	snap, err := scanSnapshot(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLeaderboardSnapshot
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns snapshot metadata for the given period.
func (r *LeaderboardRepository) ListSnapshots(ctx context.Context, from, to time.Time) ([]leaderboard.SnapshotMeta, error) {
	query := `
		SELECT id, snapshot_at, total_users, total_points, average_points
		FROM leaderboard_snapshots
		WHERE snapshot_at >= $1 AND snapshot_at < $2
		ORDER BY snapshot_at DESC
	`

	rows, err := r.conn.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var metas []leaderboard.SnapshotMeta
	for rows.Next() {
		var meta leaderboard.SnapshotMeta
		var avg int
		if err := rows.Scan(&meta.ID, &meta.SnapshotAt, &meta.TotalUsers, &meta.TotalPoints, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot meta: %w", err)
		}
		meta.AveragePoints = shared.Points(avg)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// DeleteOldSnapshots removes snapshots older than the given time and returns
// how many were deleted.
func (r *LeaderboardRepository) DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int, error) {
	query := `DELETE FROM leaderboard_snapshots WHERE snapshot_at < $1`

	tag, err := r.conn.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old snapshots: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetUserRank returns the user's entry from the latest snapshot
// or shared.ErrNotOnLeaderboard.
func (r *LeaderboardRepository) GetUserRank(ctx context.Context, userID shared.UserID) (*leaderboard.Entry, error) {
	snap, err := r.GetLatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	entry := snap.GetByID(userID)
	if entry == nil {
		return nil, shared.ErrNotOnLeaderboard
	}
	return entry, nil
}

// GetTop returns the top N entries of the latest snapshot.
func (r *LeaderboardRepository) GetTop(ctx context.Context, limit int) ([]*leaderboard.Entry, error) {
	snap, err := r.GetLatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Top(limit), nil
}

// GetPage returns one page of the latest snapshot.
func (r *LeaderboardRepository) GetPage(ctx context.Context, p shared.Pagination) ([]*leaderboard.Entry, error) {
	snap, err := r.GetLatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Page(p.Page, p.PageSize), nil
}

// GetNeighbors returns entries around the user in the latest snapshot.
func (r *LeaderboardRepository) GetNeighbors(ctx context.Context, userID shared.UserID, rangeSize int) ([]*leaderboard.Entry, error) {
	snap, err := r.GetLatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	neighbors := snap.Neighbors(userID, rangeSize)
	if neighbors == nil {
		return nil, shared.ErrNotOnLeaderboard
	}
	return neighbors, nil
}

// GetTotalCount returns the participant count of the latest snapshot.
func (r *LeaderboardRepository) GetTotalCount(ctx context.Context) (int, error) {
	query := `
		SELECT total_users
		FROM leaderboard_snapshots
		ORDER BY snapshot_at DESC
		LIMIT 1
	`

	var count int
	if err := r.conn.QueryRow(ctx, query).Scan(&count); err != nil {
		if IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}
