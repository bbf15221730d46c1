package profile

import (
	"context"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository хранит профили пользователей.
type Repository interface {
	// FindByID возвращает профиль или shared.ErrProfileNotFound.
	FindByID(ctx context.Context, id shared.UserID) (*Profile, error)

	// Save создаёт или обновляет профиль (upsert).
	Save(ctx context.Context, p *Profile) error

	// ListForLeaderboard возвращает профили участников рейтинга
	// (очки по убыванию), исключая отказавшихся от участия.
	ListForLeaderboard(ctx context.Context, limit int) ([]*Profile, error)
}

// PreferencesRepository хранит настройки пользователей.
type PreferencesRepository interface {
	// Find возвращает настройки в каноническом v2
	// или shared.ErrPreferencesNotFound. Строки v1 мигрируются при чтении.
	Find(ctx context.Context, userID shared.UserID) (Preferences, error)

	// Save записывает настройки (upsert, всегда v2).
	Save(ctx context.Context, prefs Preferences) error
}
