package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GAME STATE REPOSITORY (ledger.SnapshotRepository)
// One game_state row plus the user's badge rows form a ledger snapshot.
// Save replaces the row and appends any badges not yet stored; badges are
// never updated or deleted.
// ══════════════════════════════════════════════════════════════════════════════

// GameStateRepository implements ledger.SnapshotRepository for PostgreSQL.
type GameStateRepository struct {
	conn *Connection
}

// NewGameStateRepository creates a new GameStateRepository.
func NewGameStateRepository(conn *Connection) *GameStateRepository {
	return &GameStateRepository{conn: conn}
}

// Load returns the user's snapshot or shared.ErrSnapshotNotFound.
func (r *GameStateRepository) Load(ctx context.Context, userID shared.UserID) (*ledger.Snapshot, error) {
	query := `
		SELECT points, streak, last_active_date, updated_at
		FROM game_state
		WHERE user_id = $1
	`

	snap := &ledger.Snapshot{UserID: userID}
	var lastActive *time.Time
	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(
		&snap.Points,
		&snap.Streak,
		&lastActive,
		&snap.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load game state: %w", err)
	}
	if lastActive != nil {
		snap.LastActiveDate = *lastActive
	}

	badges, err := r.loadBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap.Badges = badges

	return snap, nil
}

func (r *GameStateRepository) loadBadges(ctx context.Context, userID shared.UserID) ([]ledger.Badge, error) {
	query := `
		SELECT badge_id, name, description, icon, tier, unlocked_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY unlocked_at, badge_id
	`

	rows, err := r.conn.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load badges: %w", err)
	}
	defer rows.Close()

	var badges []ledger.Badge
	for rows.Next() {
		var b ledger.Badge
		var tier string
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &tier, &b.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		b.Tier = shared.BadgeTier(tier)
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// Save upserts the game_state row and appends new badges in one transaction.
func (r *GameStateRepository) Save(ctx context.Context, snap *ledger.Snapshot) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		stateQuery := `
			INSERT INTO game_state (user_id, points, streak, last_active_date, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id) DO UPDATE SET
				points = EXCLUDED.points,
				streak = EXCLUDED.streak,
				last_active_date = EXCLUDED.last_active_date,
				updated_at = EXCLUDED.updated_at
		`

		var lastActive *time.Time
		if !snap.LastActiveDate.IsZero() {
			lastActive = &snap.LastActiveDate
		}
		updatedAt := snap.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}

		if _, err := tx.Exec(ctx, stateQuery,
			snap.UserID.String(),
			snap.Points,
			snap.Streak,
			lastActive,
			updatedAt,
		); err != nil {
			return fmt.Errorf("failed to save game state: %w", err)
		}

		badgeQuery := `
			INSERT INTO user_badges (user_id, badge_id, name, description, icon, tier, unlocked_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id, badge_id) DO NOTHING
		`
		for _, b := range snap.Badges {
			if _, err := tx.Exec(ctx, badgeQuery,
				snap.UserID.String(),
				b.ID,
				b.Name,
				b.Description,
				b.Icon,
				string(b.Tier),
				b.UnlockedAt,
			); err != nil {
				return fmt.Errorf("failed to save badge %s: %w", b.ID, err)
			}
		}

		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK AUDIT (ledger.StreakAuditRepository)
// ══════════════════════════════════════════════════════════════════════════════

// ListBrokenStreaks returns snapshots of users with an active streak whose
// last activity predates the cutoff. Badges are not loaded: the audit only
// touches the streak.
func (r *GameStateRepository) ListBrokenStreaks(ctx context.Context, activeBefore time.Time) ([]*ledger.Snapshot, error) {
	query := `
		SELECT user_id, points, streak, last_active_date, updated_at
		FROM game_state
		WHERE streak > 0
		  AND last_active_date IS NOT NULL
		  AND last_active_date < $1
		ORDER BY user_id
	`

	rows, err := r.conn.Query(ctx, query, activeBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list broken streaks: %w", err)
	}
	defer rows.Close()

	var snaps []*ledger.Snapshot
	for rows.Next() {
		snap := &ledger.Snapshot{}
		var userID string
		if err := rows.Scan(&userID, &snap.Points, &snap.Streak, &snap.LastActiveDate, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game state: %w", err)
		}
		snap.UserID = shared.UserID(userID)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// ResetStreak writes the new streak only if the stored one still matches what
// the audit read. Returns false when the row changed concurrently.
func (r *GameStateRepository) ResetStreak(ctx context.Context, userID shared.UserID, oldStreak, newStreak int) (bool, error) {
	query := `
		UPDATE game_state
		SET streak = $3, updated_at = $4
		WHERE user_id = $1 AND streak = $2
	`

	tag, err := r.conn.Exec(ctx, query, userID.String(), oldStreak, newStreak, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to reset streak: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Streaks returns the current streaks of the given users in one round trip.
// Users without a game_state row are absent from the result.
func (r *GameStateRepository) Streaks(ctx context.Context, userIDs []shared.UserID) (map[shared.UserID]int, error) {
	if len(userIDs) == 0 {
		return map[shared.UserID]int{}, nil
	}

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT user_id, streak
		FROM game_state
		WHERE user_id = ANY($1)
	`

	rows, err := r.conn.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load streaks: %w", err)
	}
	defer rows.Close()

	streaks := make(map[shared.UserID]int, len(userIDs))
	for rows.Next() {
		var userID string
		var streak int
		if err := rows.Scan(&userID, &streak); err != nil {
			return nil, fmt.Errorf("failed to scan streak: %w", err)
		}
		streaks[shared.UserID(userID)] = streak
	}
	return streaks, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE CATALOG (ledger.BadgeCatalog)
// ══════════════════════════════════════════════════════════════════════════════

// BadgeCatalogRepository implements ledger.BadgeCatalog for PostgreSQL.
type BadgeCatalogRepository struct {
	conn *Connection
}

// NewBadgeCatalogRepository creates a new BadgeCatalogRepository.
func NewBadgeCatalogRepository(conn *Connection) *BadgeCatalogRepository {
	return &BadgeCatalogRepository{conn: conn}
}

// ListDefinitions returns the badge catalog in display order.
// Rows with a malformed criterion are skipped, not fatal: one bad catalog
// row must not take down every badge check.
func (r *BadgeCatalogRepository) ListDefinitions(ctx context.Context) ([]ledger.BadgeDefinition, error) {
	query := `
		SELECT id, name, description, icon, tier, criterion
		FROM badge_definitions
		ORDER BY sort_order, id
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list badge definitions: %w", err)
	}
	defer rows.Close()

	var defs []ledger.BadgeDefinition
	for rows.Next() {
		var def ledger.BadgeDefinition
		var tier string
		var rawCriterion json.RawMessage
		if err := rows.Scan(&def.ID, &def.Name, &def.Description, &def.Icon, &tier, &rawCriterion); err != nil {
			return nil, fmt.Errorf("failed to scan badge definition: %w", err)
		}
		def.Tier = shared.BadgeTier(tier)

		criterion, err := ledger.DecodeCriterion(rawCriterion)
		if err != nil {
			continue
		}
		def.Criterion = criterion
		defs = append(defs, def)
	}
	return defs, rows.Err()
}
