package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/profile"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY (profile.Repository)
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements profile.Repository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// FindByID returns a profile or shared.ErrProfileNotFound.
func (r *ProfileRepository) FindByID(ctx context.Context, id shared.UserID) (*profile.Profile, error) {
	query := `
		SELECT id, full_name, role, avatar_url, points, badge_count, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	p := &profile.Profile{}
	var userID, role string
	var points int
	err := r.conn.QueryRow(ctx, query, id.String()).Scan(
		&userID,
		&p.FullName,
		&role,
		&p.AvatarURL,
		&points,
		&p.BadgeCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	p.ID = shared.UserID(userID)
	p.Role = shared.Role(role)
	p.Points = shared.Points(points)

	return p, nil
}

// Save upserts a profile.
func (r *ProfileRepository) Save(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO profiles (id, full_name, role, avatar_url, points, badge_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			role = EXCLUDED.role,
			avatar_url = EXCLUDED.avatar_url,
			points = EXCLUDED.points,
			badge_count = EXCLUDED.badge_count,
			updated_at = EXCLUDED.updated_at
	`

	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	_, err := r.conn.Exec(ctx, query,
		p.ID.String(),
		p.FullName,
		string(p.Role),
		p.AvatarURL,
		int(p.Points),
		p.BadgeCount,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// ListForLeaderboard returns leaderboard participants ordered by points.
// Users whose preferences opt out of the leaderboard are excluded; users
// without a preferences row participate (the default is opt-in).
func (r *ProfileRepository) ListForLeaderboard(ctx context.Context, limit int) ([]*profile.Profile, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT p.id, p.full_name, p.role, p.avatar_url, p.points, p.badge_count, p.created_at, p.updated_at
		FROM profiles p
		LEFT JOIN user_preferences up ON up.user_id = p.id
		WHERE up.prefs IS NULL
		   OR COALESCE((up.prefs -> 'privacy' ->> 'leaderboard_participation')::boolean,
		               COALESCE((up.prefs ->> 'show_on_leaderboard')::boolean, TRUE))
		ORDER BY p.points DESC, p.badge_count DESC, p.full_name ASC
		LIMIT $1
	`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*profile.Profile
	for rows.Next() {
		p := &profile.Profile{}
		var userID, role string
		var points int
		if err := rows.Scan(
			&userID,
			&p.FullName,
			&role,
			&p.AvatarURL,
			&points,
			&p.BadgeCount,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.ID = shared.UserID(userID)
		p.Role = shared.Role(role)
		p.Points = shared.Points(points)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// PREFERENCES REPOSITORY (profile.PreferencesRepository)
// Preferences live in one JSONB column. Decoding goes through the domain
// codec, so v1 rows come back migrated to the canonical shape without a
// storage rewrite.
// ══════════════════════════════════════════════════════════════════════════════

// PreferencesRepository implements profile.PreferencesRepository for PostgreSQL.
type PreferencesRepository struct {
	conn *Connection
}

// NewPreferencesRepository creates a new PreferencesRepository.
func NewPreferencesRepository(conn *Connection) *PreferencesRepository {
	return &PreferencesRepository{conn: conn}
}

// Find returns the user's preferences in canonical form.
func (r *PreferencesRepository) Find(ctx context.Context, userID shared.UserID) (profile.Preferences, error) {
	query := `SELECT prefs FROM user_preferences WHERE user_id = $1`

	var raw json.RawMessage
	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(&raw)
	if err != nil {
		if IsNoRows(err) {
			return profile.Preferences{}, shared.ErrPreferencesNotFound
		}
		return profile.Preferences{}, fmt.Errorf("failed to find preferences: %w", err)
	}

	prefs, err := profile.DecodePreferences(userID, raw)
	if err != nil {
		return profile.Preferences{}, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}

// Save upserts the user's preferences, always in the canonical version.
func (r *PreferencesRepository) Save(ctx context.Context, prefs profile.Preferences) error {
	raw, err := profile.EncodePreferences(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	query := `
		INSERT INTO user_preferences (user_id, prefs, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			prefs = EXCLUDED.prefs,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.conn.Exec(ctx, query, prefs.UserID.String(), raw, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
