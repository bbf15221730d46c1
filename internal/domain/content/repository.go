package content

import (
	"context"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// EpisodeRepository хранит каталог эпизодов сюжетного режима.
type EpisodeRepository interface {
	// FindByID возвращает эпизод или shared.ErrEpisodeNotFound.
	FindByID(ctx context.Context, id shared.ContentID) (*Episode, error)

	// ListPublished возвращает опубликованные эпизоды в порядке каталога.
	ListPublished(ctx context.Context) ([]Episode, error)

	// Save создаёт или обновляет эпизод (редакторские операции).
	Save(ctx context.Context, episode *Episode) error

	// MarkCompleted фиксирует завершение эпизода пользователем.
	// Повторное завершение возвращает shared.ErrAlreadyCompleted.
	MarkCompleted(ctx context.Context, userID shared.UserID, id shared.ContentID) error

	// ListCompleted возвращает ID эпизодов, завершённых пользователем.
	ListCompleted(ctx context.Context, userID shared.UserID) ([]shared.ContentID, error)
}

// ChallengeRepository хранит недельные челленджи и прогресс участников.
type ChallengeRepository interface {
	// FindByID возвращает челлендж или shared.ErrChallengeNotFound.
	FindByID(ctx context.Context, id shared.ContentID) (*WeeklyChallenge, error)

	// ListActive возвращает челленджи, активные в данный момент.
	ListActive(ctx context.Context) ([]WeeklyChallenge, error)

	// FindProgress возвращает прогресс пользователя или shared.ErrChallengeNotJoined.
	FindProgress(ctx context.Context, userID shared.UserID, id shared.ContentID) (*ChallengeProgress, error)

	// SaveProgress создаёт или обновляет прогресс участника.
	SaveProgress(ctx context.Context, progress *ChallengeProgress) error
}

// TaskRepository хранит каталог задач и отправки.
type TaskRepository interface {
	// FindByID возвращает задачу или shared.ErrNotFound.
	FindByID(ctx context.Context, id shared.ContentID) (*Task, error)

	// List возвращает каталог задач.
	List(ctx context.Context) ([]Task, error)

	// RecordSubmission фиксирует отправку выполненной задачи.
	RecordSubmission(ctx context.Context, sub *Submission) error

	// CountCompleted возвращает число выполненных пользователем задач.
	// Это сигнал completions для гейта.
	CountCompleted(ctx context.Context, userID shared.UserID) (int, error)

	// ListUnsynced возвращает отправки, ещё не досинхронизированные
	// с долговременным хранилищем.
	ListUnsynced(ctx context.Context, limit int) ([]Submission, error)

	// MarkSynced помечает отправки как синхронизированные.
	MarkSynced(ctx context.Context, ids []string) error
}
