// Package leaderboard содержит доменную модель рейтинга EcoQuest.
package leaderboard

import (
	"context"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт хранения рейтинга.
// Реализация находится в infrastructure слое (PostgreSQL + Redis).
type Repository interface {
	// SaveSnapshot сохраняет снапшот рейтинга.
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error

	// GetLatestSnapshot возвращает последний снапшот
	// или shared.ErrLeaderboardSnapshot, если снапшотов ещё нет.
	GetLatestSnapshot(ctx context.Context) (*Snapshot, error)

	// GetSnapshotByID возвращает снапшот по ID.
	GetSnapshotByID(ctx context.Context, id string) (*Snapshot, error)

	// ListSnapshots возвращает метаданные снапшотов за период.
	ListSnapshots(ctx context.Context, from, to time.Time) ([]SnapshotMeta, error)

	// DeleteOldSnapshots удаляет снапшоты старше указанного времени.
	// Возвращает количество удалённых.
	DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int, error)

	// GetUserRank возвращает строку пользователя
	// или shared.ErrNotOnLeaderboard.
	GetUserRank(ctx context.Context, userID shared.UserID) (*Entry, error)

	// GetTop возвращает топ-N участников.
	GetTop(ctx context.Context, limit int) ([]*Entry, error)

	// GetPage возвращает страницу рейтинга.
	GetPage(ctx context.Context, p shared.Pagination) ([]*Entry, error)

	// GetNeighbors возвращает соседей пользователя по рангу (±rangeSize).
	GetNeighbors(ctx context.Context, userID shared.UserID, rangeSize int) ([]*Entry, error)

	// GetTotalCount возвращает общее количество участников.
	GetTotalCount(ctx context.Context) (int, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Cache определяет контракт горячего кеша рейтинга.
// Отделён от основного репозитория: Redis ZSET с фолбэком на Postgres.
type Cache interface {
	// GetCachedTop возвращает закешированный топ-N.
	// Возвращает nil без ошибки, если кеш пуст или устарел.
	GetCachedTop(ctx context.Context, limit int) ([]*Entry, error)

	// SetCachedTop сохраняет топ-N в кеш с TTL.
	SetCachedTop(ctx context.Context, entries []*Entry, ttl time.Duration) error

	// GetCachedRank возвращает закешированную строку пользователя.
	GetCachedRank(ctx context.Context, userID shared.UserID) (*Entry, error)

	// SetCachedRank сохраняет строку пользователя в кеш.
	SetCachedRank(ctx context.Context, entry *Entry, ttl time.Duration) error

	// UpdateScore обновляет очки пользователя в ZSET без полной пересборки.
	UpdateScore(ctx context.Context, userID shared.UserID, points shared.Points) error

	// InvalidateAll сбрасывает весь кеш рейтинга.
	InvalidateAll(ctx context.Context) error
}
