// Package content содержит каталог разблокируемого контента EcoQuest:
// эпизоды сюжетного режима, недельные челленджи, задачи и отправки.
// Доступность контента вычисляет чистый гейт (gate.go); пакет не хранит
// состояние разблокировки и не выполняет I/O.
package content

import (
	"strings"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCKABLE
// ══════════════════════════════════════════════════════════════════════════════

// Unlockable - элемент каталога с порогом разблокировки.
// RequiredCompletions - сколько задач должно быть выполнено, чтобы элемент
// стал доступен. Порог 0 означает "доступен всегда".
type Unlockable struct {
	ID                  shared.ContentID
	RequiredCompletions int
}

// ══════════════════════════════════════════════════════════════════════════════
// STORY EPISODES
// ══════════════════════════════════════════════════════════════════════════════

// Episode - эпизод сюжетного режима.
// Каталог упорядочен по Order; порядок каталога - это порядок отображения.
type Episode struct {
	ID shared.ContentID

	Title       string
	Description string

	// Chapter - глава сюжета, к которой относится эпизод.
	Chapter int

	// Order - позиция эпизода в каталоге.
	Order int

	// PointsReward - награда за завершение эпизода (начисляется через счёт).
	PointsReward int

	// RequiredTasks - порог разблокировки: выполнено задач >= RequiredTasks.
	RequiredTasks int

	// Published - неопубликованные эпизоды не попадают в выдачу ученикам.
	Published bool

	CreatedAt time.Time
}

// Validate проверяет целостность эпизода.
func (e Episode) Validate() error {
	if !e.ID.IsValid() {
		return shared.NewDomainError("content", "Validate", shared.ErrInvalidID, "episode id is required")
	}
	if strings.TrimSpace(e.Title) == "" {
		return shared.NewDomainError("content", "Validate", shared.ErrEmptyValue, "episode title is required")
	}
	if e.PointsReward < 0 {
		return shared.NewDomainError("content", "Validate", shared.ErrNegativeValue, "episode reward is negative")
	}
	if e.RequiredTasks < 0 {
		return shared.NewDomainError("content", "Validate", shared.ErrNegativeValue, "episode unlock threshold is negative")
	}
	return nil
}

// Unlockable возвращает элемент каталога для гейта.
func (e Episode) Unlockable() Unlockable {
	return Unlockable{ID: e.ID, RequiredCompletions: e.RequiredTasks}
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyChallenge - недельный челлендж с окном активности.
type WeeklyChallenge struct {
	ID shared.ContentID

	Title       string
	Description string

	// RewardPoints - базовая награда за завершение.
	RewardPoints int

	// BonusPoints - бонус, начисляемый вместе с базовой наградой.
	BonusPoints int

	// Window - окно активности челленджа; вне окна присоединение невозможно.
	Window shared.TimeRange

	// MaxProgress - сколько шагов нужно для завершения.
	MaxProgress int
}

// Validate проверяет целостность челленджа.
func (c WeeklyChallenge) Validate() error {
	if !c.ID.IsValid() {
		return shared.NewDomainError("content", "Validate", shared.ErrInvalidID, "challenge id is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		return shared.NewDomainError("content", "Validate", shared.ErrEmptyValue, "challenge title is required")
	}
	if c.RewardPoints < 0 || c.BonusPoints < 0 {
		return shared.NewDomainError("content", "Validate", shared.ErrNegativeValue, "challenge reward is negative")
	}
	if c.MaxProgress <= 0 {
		return shared.NewDomainError("content", "Validate", shared.ErrValueOutOfRange, "challenge max progress must be positive")
	}
	if !c.Window.IsValid() {
		return shared.NewDomainError("content", "Validate", shared.ErrInvalidInput, "challenge window is invalid")
	}
	return nil
}

// IsActive возвращает true, если челлендж активен в момент t.
func (c WeeklyChallenge) IsActive(t time.Time) bool {
	return c.Window.Contains(t)
}

// TotalReward - суммарная награда за завершение (база + бонус).
func (c WeeklyChallenge) TotalReward() int {
	return c.RewardPoints + c.BonusPoints
}

// ChallengeProgress - прогресс пользователя в челлендже.
type ChallengeProgress struct {
	UserID      shared.UserID
	ChallengeID shared.ContentID
	Progress    int
	JoinedAt    time.Time
	CompletedAt *time.Time
}

// NewChallengeProgress фиксирует присоединение пользователя к челленджу.
// Вне окна активности присоединение отклоняется.
func NewChallengeProgress(userID shared.UserID, c WeeklyChallenge, now time.Time) (*ChallengeProgress, error) {
	if !c.IsActive(now) {
		return nil, shared.ErrChallengeEnded
	}
	return &ChallengeProgress{
		UserID:      userID,
		ChallengeID: c.ID,
		JoinedAt:    now.UTC(),
	}, nil
}

// IsCompleted возвращает true, если челлендж завершён.
func (p *ChallengeProgress) IsCompleted() bool {
	return p.CompletedAt != nil
}

// Advance продвигает прогресс на steps шагов в пределах MaxProgress.
// Возвращает true, если этим продвижением челлендж был завершён.
// Повторное продвижение завершённого челленджа - ошибка ErrAlreadyCompleted.
func (p *ChallengeProgress) Advance(c WeeklyChallenge, steps int, now time.Time) (bool, error) {
	if p.IsCompleted() {
		return false, shared.ErrAlreadyCompleted
	}
	if steps <= 0 {
		return false, shared.NewDomainError("content", "Advance", shared.ErrInvalidInput, "steps must be positive")
	}
	if !c.IsActive(now) {
		return false, shared.ErrChallengeEnded
	}

	p.Progress += steps
	if p.Progress >= c.MaxProgress {
		p.Progress = c.MaxProgress
		t := now.UTC()
		p.CompletedAt = &t
		return true, nil
	}
	return false, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TASKS & SUBMISSIONS
// ══════════════════════════════════════════════════════════════════════════════

// TaskDifficulty - сложность задачи.
type TaskDifficulty string

const (
	DifficultyEasy   TaskDifficulty = "easy"
	DifficultyMedium TaskDifficulty = "medium"
	DifficultyHard   TaskDifficulty = "hard"
)

// IsValid проверяет, что сложность известна.
func (d TaskDifficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// Task - учебная задача из каталога.
type Task struct {
	ID          shared.ContentID
	Title       string
	Description string
	Points      int
	Difficulty  TaskDifficulty
	Category    string
}

// Validate проверяет целостность задачи.
func (t Task) Validate() error {
	if !t.ID.IsValid() {
		return shared.NewDomainError("content", "Validate", shared.ErrInvalidID, "task id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return shared.NewDomainError("content", "Validate", shared.ErrEmptyValue, "task title is required")
	}
	if t.Points < 0 {
		return shared.NewDomainError("content", "Validate", shared.ErrNegativeValue, "task points are negative")
	}
	if !t.Difficulty.IsValid() {
		return shared.NewDomainError("content", "Validate", shared.ErrInvalidInput, "unknown task difficulty")
	}
	return nil
}

// Submission - отправка выполненной задачи.
// Synced показывает, дошла ли отправка до долговременного хранилища:
// клиент мог выполнить задачу офлайн, тогда запись досинхронизируется позже.
type Submission struct {
	ID          string
	UserID      shared.UserID
	TaskID      shared.ContentID
	SubmittedAt time.Time
	Synced      bool
}
