package ledger

import (
	"context"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Контракт адаптера персистентности. Сам счёт I/O не выполняет: гидрация
// на старте сессии и запись снапшота после каждой успешной мутации -
// обязанность вызывающего кода через эти интерфейсы.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepository хранит долговременные снимки счёта.
type SnapshotRepository interface {
	// Load возвращает снапшот пользователя.
	// Возвращает shared.ErrSnapshotNotFound для нового пользователя -
	// вызывающий код гидрирует пустой счёт.
	Load(ctx context.Context, userID shared.UserID) (*Snapshot, error)

	// Save записывает снапшот (upsert). Ошибка записи после успешной
	// мутации в памяти - это shared.ErrPersistenceDiverged на стороне
	// вызывающего кода: состояние в памяти и в хранилище разошлись,
	// пользователю показывается повтор записи.
	Save(ctx context.Context, snap *Snapshot) error
}

// StreakAuditRepository - расширенный контракт хранилища для фоновых задач.
// Вынесен отдельно от SnapshotRepository: командам сессии эти операции
// не нужны.
type StreakAuditRepository interface {
	// ListBrokenStreaks возвращает снапшоты (без бейджей) пользователей
	// с активной серией, последняя активность которых была раньше cutoff.
	ListBrokenStreaks(ctx context.Context, activeBefore time.Time) ([]*Snapshot, error)

	// ResetStreak записывает новую серию при условии, что текущая совпадает
	// с прочитанной. Возвращает false при конкурентном изменении.
	ResetStreak(ctx context.Context, userID shared.UserID, oldStreak, newStreak int) (bool, error)

	// Streaks возвращает текущие серии указанных пользователей.
	Streaks(ctx context.Context, userIDs []shared.UserID) (map[shared.UserID]int, error)
}

// BadgeCatalog отдаёт определения бейджей с типизированными критериями.
type BadgeCatalog interface {
	// ListDefinitions возвращает каталог бейджей в порядке создания.
	ListDefinitions(ctx context.Context) ([]BadgeDefinition, error)
}
