// Package leaderboard содержит доменную модель рейтинга EcoQuest.
// Рейтинг строится по очкам профиля; при равенстве очков выше стоит тот,
// у кого больше бейджей, дальше - алфавит по имени (стабильный порядок).
package leaderboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank - позиция пользователя в рейтинге. Начинается с 1.
type Rank int

// IsValid проверяет, что ранг положительный.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsTop10 возвращает true, если пользователь в топ-10.
func (r Rank) IsTop10() bool {
	return r >= 1 && r <= 10
}

// String возвращает строковое представление ранга.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// RankChange - изменение позиции с прошлого снапшота.
// Положительное значение = подъём, отрицательное = падение.
type RankChange int

// Direction возвращает направление изменения.
func (rc RankChange) Direction() RankDirection {
	switch {
	case rc > 0:
		return RankDirectionUp
	case rc < 0:
		return RankDirectionDown
	default:
		return RankDirectionStable
	}
}

// Abs возвращает абсолютное значение изменения.
func (rc RankChange) Abs() int {
	if rc < 0 {
		return int(-rc)
	}
	return int(rc)
}

// IsSignificant возвращает true, если изменение не меньше threshold позиций.
func (rc RankChange) IsSignificant(threshold int) bool {
	return rc.Abs() >= threshold
}

// String возвращает строковое представление изменения.
func (rc RankChange) String() string {
	switch {
	case rc > 0:
		return fmt.Sprintf("+%d", rc)
	case rc < 0:
		return fmt.Sprintf("%d", rc)
	default:
		return "±0"
	}
}

// RankDirection - направление изменения ранга.
type RankDirection string

const (
	// RankDirectionUp - пользователь поднялся в рейтинге.
	RankDirectionUp RankDirection = "up"
	// RankDirectionDown - пользователь опустился в рейтинге.
	RankDirectionDown RankDirection = "down"
	// RankDirectionStable - позиция не изменилась.
	RankDirectionStable RankDirection = "stable"
	// RankDirectionNew - новый участник рейтинга.
	RankDirectionNew RankDirection = "new"
)

// Emoji возвращает эмодзи для отображения направления.
func (rd RankDirection) Emoji() string {
	switch rd {
	case RankDirectionUp:
		return "🔼"
	case RankDirectionDown:
		return "🔽"
	case RankDirectionNew:
		return "🆕"
	default:
		return "➖"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry - одна строка рейтинга со всем, что нужно для отображения.
type Entry struct {
	// Rank - текущая позиция в рейтинге.
	Rank Rank

	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// DisplayName - отображаемое имя из профиля.
	DisplayName string

	// AvatarURL - аватар из профиля (может быть пустым).
	AvatarURL string

	// Points - текущие очки.
	Points shared.Points

	// Level - уровень (производная от очков).
	Level shared.Level

	// BadgeCount - количество бейджей; tie-break при равных очках.
	BadgeCount int

	// Streak - текущая серия дней.
	Streak int

	// RankChange - изменение позиции с прошлого снапшота.
	RankChange RankChange

	// UpdatedAt - время последнего обновления очков.
	UpdatedAt time.Time
}

// NewEntry создаёт строку рейтинга с валидацией.
func NewEntry(rank Rank, userID shared.UserID, displayName string, points shared.Points, badgeCount int) (*Entry, error) {
	if !rank.IsValid() {
		return nil, shared.NewDomainError("leaderboard", "NewEntry", shared.ErrValueOutOfRange, "rank must be positive")
	}
	if userID.IsEmpty() {
		return nil, shared.NewDomainError("leaderboard", "NewEntry", shared.ErrInvalidID, "user id is required")
	}
	if !points.IsValid() {
		return nil, shared.NewDomainError("leaderboard", "NewEntry", shared.ErrNegativeValue, "points are negative")
	}
	if badgeCount < 0 {
		return nil, shared.NewDomainError("leaderboard", "NewEntry", shared.ErrNegativeValue, "badge count is negative")
	}

	return &Entry{
		Rank:        rank,
		UserID:      userID,
		DisplayName: displayName,
		Points:      points,
		Level:       points.Level(),
		BadgeCount:  badgeCount,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// Direction возвращает направление изменения ранга.
func (e *Entry) Direction() RankDirection {
	return e.RankChange.Direction()
}

// HasImproved возвращает true, если пользователь поднялся в рейтинге.
func (e *Entry) HasImproved() bool {
	return e.RankChange > 0
}

// PointsToNext возвращает, сколько очков не хватает до следующего места.
// nextPoints - очки пользователя на позиции выше.
func (e *Entry) PointsToNext(nextPoints shared.Points) shared.Points {
	if nextPoints <= e.Points {
		return 0
	}
	return nextPoints - e.Points + 1
}

// Clone создаёт копию строки.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// String возвращает строковое представление для логирования.
func (e *Entry) String() string {
	return fmt.Sprintf(
		"Entry{Rank: %d, Name: %s, Points: %d, Badges: %d, Change: %s}",
		e.Rank, e.DisplayName, e.Points, e.BadgeCount, e.RankChange.String(),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Ranking - полный отсортированный список участников.
// Вспомогательная структура для построения снапшота рейтинга.
type Ranking struct {
	entries []*Entry
	byID    map[shared.UserID]*Entry
}

// NewRanking создаёт пустой Ranking.
func NewRanking() *Ranking {
	return &Ranking{
		entries: make([]*Entry, 0),
		byID:    make(map[shared.UserID]*Entry),
	}
}

// Add добавляет строку в рейтинг (без автоматической сортировки).
func (r *Ranking) Add(entry *Entry) error {
	if entry == nil {
		return shared.NewDomainError("leaderboard", "Add", shared.ErrInvalidInput, "entry is nil")
	}
	if _, exists := r.byID[entry.UserID]; exists {
		return shared.NewDomainError("leaderboard", "Add", shared.ErrAlreadyExists, "user already in ranking")
	}

	r.entries = append(r.entries, entry)
	r.byID[entry.UserID] = entry
	return nil
}

// Sort сортирует по очкам (по убыванию) и присваивает ранги.
// Tie-break: больше бейджей выше; затем алфавит по имени.
// Полное равенство очков и бейджей даёт общий ранг (shared rank).
func (r *Ranking) Sort() {
	sort.Slice(r.entries, func(i, j int) bool {
		a, b := r.entries[i], r.entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.BadgeCount != b.BadgeCount {
			return a.BadgeCount > b.BadgeCount
		}
		return a.DisplayName < b.DisplayName
	})

	currentRank := Rank(1)
	for i, entry := range r.entries {
		if i > 0 && entry.Points == r.entries[i-1].Points && entry.BadgeCount == r.entries[i-1].BadgeCount {
			entry.Rank = r.entries[i-1].Rank
		} else {
			entry.Rank = currentRank
		}
		currentRank = Rank(i + 2)
	}
}

// GetByID возвращает строку по ID пользователя.
func (r *Ranking) GetByID(userID shared.UserID) *Entry {
	return r.byID[userID]
}

// Top возвращает топ-N строк.
func (r *Ranking) Top(n int) []*Entry {
	if n <= 0 {
		return nil
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	result := make([]*Entry, n)
	copy(result, r.entries[:n])
	return result
}

// Count возвращает количество строк.
func (r *Ranking) Count() int {
	return len(r.entries)
}

// All возвращает все строки в текущем порядке.
func (r *Ranking) All() []*Entry {
	result := make([]*Entry, len(r.entries))
	copy(result, r.entries)
	return result
}

// AveragePoints возвращает среднее число очков по участникам.
func (r *Ranking) AveragePoints() shared.Points {
	if len(r.entries) == 0 {
		return 0
	}
	var total int
	for _, entry := range r.entries {
		total += int(entry.Points)
	}
	return shared.Points(total / len(r.entries))
}
