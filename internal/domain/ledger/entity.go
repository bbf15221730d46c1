// Package ledger содержит доменную модель игрового счёта пользователя EcoQuest.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
//
// Ledger - единственный источник истины для очков, уровня, серии дней
// и коллекции бейджей. Уровень всегда выводится из очков в том же шаге,
// что и мутация: ни один читатель не может увидеть новые очки со старым уровнем.
package ledger

import (
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config задаёт параметры счёта.
type Config struct {
	// PointsPerLevel - размер одного уровня в очках.
	// По умолчанию shared.PointsPerLevel (500).
	PointsPerLevel int

	// StreakPolicy - политика пересчёта серии после пропущенного дня.
	// Источник не фиксирует правило (сброс в 0 или в 1), поэтому выбор
	// остаётся за интегратором. По умолчанию ResetToZero.
	StreakPolicy StreakPolicy
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		PointsPerLevel: shared.PointsPerLevel,
		StreakPolicy:   ResetToZero,
	}
}

// normalize заполняет нулевые поля значениями по умолчанию.
func (c Config) normalize() Config {
	if c.PointsPerLevel <= 0 {
		c.PointsPerLevel = shared.PointsPerLevel
	}
	if c.StreakPolicy == nil {
		c.StreakPolicy = ResetToZero
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Ledger - игровой счёт одного пользователя.
// Живёт в памяти в рамках сессии; долговременное хранение - забота адаптера
// персистентности, сам счёт не выполняет I/O.
//
// Счёт создаётся "не гидрированным": до загрузки снапшота (или явной
// инициализации нового пользователя) все операции возвращают
// shared.ErrLedgerNotHydrated. Так вызывающий код отличает "новый
// пользователь с нулём очков" от "данные ещё не загружены".
type Ledger struct {
	// UserID - владелец счёта (выдаётся внешним identity-провайдером).
	UserID shared.UserID

	cfg Config

	points shared.Points
	level  shared.Level
	streak int
	badges []Badge

	// lastActiveDate - дата (UTC, без времени) последней засчитанной активности.
	lastActiveDate time.Time

	hydrated  bool
	updatedAt time.Time
}

// NewLedger создаёт не гидрированный счёт для пользователя.
func NewLedger(userID shared.UserID, cfg Config) (*Ledger, error) {
	if userID.IsEmpty() {
		return nil, shared.NewDomainError("ledger", "New", shared.ErrInvalidID, "user id is required")
	}
	return &Ledger{
		UserID: userID,
		cfg:    cfg.normalize(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HYDRATION
// ══════════════════════════════════════════════════════════════════════════════

// Hydrate загружает состояние из долговременного снапшота.
// Операция атомарна: при любой ошибке счёт остаётся не гидрированным,
// частично заполненное состояние наружу не выходит.
func (l *Ledger) Hydrate(snap Snapshot) error {
	if l.hydrated {
		return shared.NewDomainError("ledger", "Hydrate", shared.ErrInvalidState, "ledger already hydrated")
	}
	if snap.Points < 0 {
		return shared.WrapError("ledger", "Hydrate", shared.ErrNegativeValue, "snapshot points are negative", nil)
	}
	if snap.Streak < 0 {
		return shared.WrapError("ledger", "Hydrate", shared.ErrNegativeValue, "snapshot streak is negative", nil)
	}

	badges := make([]Badge, 0, len(snap.Badges))
	seen := make(map[string]bool, len(snap.Badges))
	for _, b := range snap.Badges {
		if err := b.validate(); err != nil {
			return err
		}
		if seen[b.ID] {
			return shared.NewDomainError("ledger", "Hydrate", shared.ErrInvalidEntity,
				fmt.Sprintf("snapshot contains duplicate badge %q", b.ID))
		}
		seen[b.ID] = true
		badges = append(badges, b)
	}

	l.points = shared.Points(snap.Points)
	l.level = shared.LevelForPoints(l.points, l.cfg.PointsPerLevel)
	l.streak = snap.Streak
	l.badges = badges
	l.lastActiveDate = dateOnly(snap.LastActiveDate)
	l.updatedAt = time.Now().UTC()
	l.hydrated = true
	return nil
}

// HydrateEmpty инициализирует счёт нового пользователя:
// {points: 0, level: 1, streak: 0, badges: []}.
func (l *Ledger) HydrateEmpty() error {
	return l.Hydrate(Snapshot{UserID: l.UserID})
}

// IsHydrated возвращает true, если счёт готов к чтению и мутациям.
func (l *Ledger) IsHydrated() bool {
	return l.hydrated
}

// ══════════════════════════════════════════════════════════════════════════════
// MUTATIONS
// ══════════════════════════════════════════════════════════════════════════════

// AddPointsResult описывает результат начисления очков.
type AddPointsResult struct {
	OldPoints shared.Points
	NewPoints shared.Points
	OldLevel  shared.Level
	NewLevel  shared.Level
}

// LeveledUp возвращает true, если мутация пересекла границу уровня вверх.
func (r AddPointsResult) LeveledUp() bool {
	return r.NewLevel > r.OldLevel
}

// AddPoints начисляет очки. Amount может быть любым целым (обычно
// положительная награда за задачу, эпизод или челлендж); если результат
// увёл бы очки в минус - возвращается shared.ErrInvalidAmount и состояние
// не меняется. Очки и уровень обновляются в одном шаге.
//
// Операция аддитивна и НЕ идемпотентна при повторе: дедупликация событий
// награды - обязанность вызывающего кода (см. command.AddPointsHandler).
func (l *Ledger) AddPoints(amount int) (AddPointsResult, error) {
	if !l.hydrated {
		return AddPointsResult{}, shared.ErrLedgerNotHydrated
	}

	newPoints := shared.Points(int(l.points) + amount)
	if newPoints < 0 {
		return AddPointsResult{}, shared.ErrInvalidAmount
	}

	result := AddPointsResult{
		OldPoints: l.points,
		OldLevel:  l.level,
		NewPoints: newPoints,
		NewLevel:  shared.LevelForPoints(newPoints, l.cfg.PointsPerLevel),
	}

	l.points = result.NewPoints
	l.level = result.NewLevel
	l.updatedAt = time.Now().UTC()
	return result, nil
}

// UnlockBadge добавляет бейдж в коллекцию. Порядок добавления - это порядок
// разблокировки (UI показывает "последние бейджи" по хвосту списка).
// Если UnlockedAt не задан, проставляется текущее время.
//
// Повторная разблокировка того же ID - это no-op: возвращается
// shared.ErrDuplicateBadge, состояние не меняется. Вызывающий код обязан
// отличать этот исход от успешной мутации (toast "уже получен" vs "получен").
func (l *Ledger) UnlockBadge(b Badge) (Badge, error) {
	if !l.hydrated {
		return Badge{}, shared.ErrLedgerNotHydrated
	}
	if err := b.validate(); err != nil {
		return Badge{}, err
	}
	for _, owned := range l.badges {
		if owned.ID == b.ID {
			return Badge{}, shared.ErrDuplicateBadge
		}
	}
	if b.UnlockedAt.IsZero() {
		b.UnlockedAt = time.Now().UTC()
	}
	l.badges = append(l.badges, b)
	l.updatedAt = time.Now().UTC()
	return b, nil
}

// UpdateStreak увеличивает серию на 1 и возвращает новое значение.
// Низкоуровневая операция: вызывающий код (детектор дневной активности)
// сам гарантирует не более одного вызова в календарный день.
// Для полной семантики серии используйте RecordDailyActivity.
func (l *Ledger) UpdateStreak() (int, error) {
	if !l.hydrated {
		return 0, shared.ErrLedgerNotHydrated
	}
	l.streak++
	l.updatedAt = time.Now().UTC()
	return l.streak, nil
}

// StreakChange описывает результат учёта дневной активности.
type StreakChange struct {
	OldStreak int
	NewStreak int
	// DaysMissed - сколько дней пропущено перед этой активностью (0 или 1 -
	// серия не прерывалась).
	DaysMissed int
}

// Continued возвращает true, если серия продолжилась или началась.
func (c StreakChange) Continued() bool {
	return c.NewStreak > c.OldStreak
}

// Broken возвращает true, если серия была прервана пропуском дней.
func (c StreakChange) Broken() bool {
	return c.DaysMissed > 1
}

// RecordDailyActivity засчитывает активность за указанный день:
//   - тот же день, что и последняя активность - no-op;
//   - следующий день - серия +1;
//   - пропуск - применяется cfg.StreakPolicy, затем день считается активным.
//
// Дата более ранняя, чем последняя активность, отклоняется: сигнал активности
// монотонен по времени.
func (l *Ledger) RecordDailyActivity(day time.Time) (StreakChange, error) {
	if !l.hydrated {
		return StreakChange{}, shared.ErrLedgerNotHydrated
	}

	today := dateOnly(day)
	change := StreakChange{OldStreak: l.streak}

	// Первая активность в истории счёта.
	if l.lastActiveDate.IsZero() {
		l.streak = 1
		l.lastActiveDate = today
		l.updatedAt = time.Now().UTC()
		change.NewStreak = l.streak
		return change, nil
	}

	days := daysBetween(l.lastActiveDate, today)
	switch {
	case days < 0:
		return StreakChange{}, shared.ErrInvalidStreakDate
	case days == 0:
		change.NewStreak = l.streak
		return change, nil
	case days == 1:
		l.streak++
	default:
		change.DaysMissed = days
		base := l.cfg.StreakPolicy(l.lastActiveDate, today)
		if base < 0 {
			base = 0
		}
		// Политика возвращает серию ПОСЛЕ пропуска; сегодняшняя активность
		// сверху начинает (или продолжает) новую серию.
		l.streak = base + 1
	}

	l.lastActiveDate = today
	l.updatedAt = time.Now().UTC()
	change.NewStreak = l.streak
	return change, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED READS
// ══════════════════════════════════════════════════════════════════════════════

// Progress - производное представление прогресса внутри уровня.
// Единственная точка вычисления для всех экранов (дашборд, профиль,
// лидерборд): никто не дублирует формулу.
type Progress struct {
	CurrentLevel    shared.Level
	PointsIntoLevel int
	PointsToNext    int
}

// Points возвращает текущие очки.
func (l *Ledger) Points() (shared.Points, error) {
	if !l.hydrated {
		return 0, shared.ErrLedgerNotHydrated
	}
	return l.points, nil
}

// Level возвращает текущий уровень.
func (l *Ledger) Level() (shared.Level, error) {
	if !l.hydrated {
		return 0, shared.ErrLedgerNotHydrated
	}
	return l.level, nil
}

// Streak возвращает текущую серию дней.
func (l *Ledger) Streak() (int, error) {
	if !l.hydrated {
		return 0, shared.ErrLedgerNotHydrated
	}
	return l.streak, nil
}

// Badges возвращает копию коллекции бейджей в порядке разблокировки.
func (l *Ledger) Badges() ([]Badge, error) {
	if !l.hydrated {
		return nil, shared.ErrLedgerNotHydrated
	}
	out := make([]Badge, len(l.badges))
	copy(out, l.badges)
	return out, nil
}

// LatestBadges возвращает до n последних разблокированных бейджей,
// самый свежий - первым.
func (l *Ledger) LatestBadges(n int) ([]Badge, error) {
	all, err := l.Badges()
	if err != nil {
		return nil, err
	}
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	out := make([]Badge, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// HasBadge проверяет наличие бейджа по ID.
func (l *Ledger) HasBadge(id string) bool {
	for _, b := range l.badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

// LevelProgress возвращает прогресс внутри текущего уровня:
// pointsIntoLevel = points mod size, pointsToNext = size - pointsIntoLevel.
func (l *Ledger) LevelProgress() (Progress, error) {
	if !l.hydrated {
		return Progress{}, shared.ErrLedgerNotHydrated
	}
	into := int(l.points) % l.cfg.PointsPerLevel
	return Progress{
		CurrentLevel:    l.level,
		PointsIntoLevel: into,
		PointsToNext:    l.cfg.PointsPerLevel - into,
	}, nil
}

// Stats собирает показатели счёта для проверки критериев бейджей.
// Количество выполненных задач счёт не хранит - его поставляет вызывающий код.
func (l *Ledger) Stats(tasksCompleted int) Stats {
	return Stats{
		Points:         int(l.points),
		Level:          int(l.level),
		Streak:         l.streak,
		TasksCompleted: tasksCompleted,
	}
}

// LastActiveDate возвращает дату последней засчитанной активности (UTC).
func (l *Ledger) LastActiveDate() time.Time {
	return l.lastActiveDate
}

// Snapshot возвращает снимок состояния для записи адаптером персистентности.
func (l *Ledger) Snapshot() (Snapshot, error) {
	if !l.hydrated {
		return Snapshot{}, shared.ErrLedgerNotHydrated
	}
	badges := make([]Badge, len(l.badges))
	copy(badges, l.badges)
	return Snapshot{
		UserID:         l.UserID,
		Points:         int(l.points),
		Streak:         l.streak,
		Badges:         badges,
		LastActiveDate: l.lastActiveDate,
		UpdatedAt:      l.updatedAt,
	}, nil
}

// String возвращает строковое представление счёта для логирования.
func (l *Ledger) String() string {
	return fmt.Sprintf(
		"Ledger{User: %s, Points: %d, Level: %d, Streak: %d, Badges: %d}",
		l.UserID, l.points, l.level, l.streak, len(l.badges),
	)
}

// Clone создаёт глубокую копию счёта.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	clone := *l
	clone.badges = make([]Badge, len(l.badges))
	copy(clone.badges, l.badges)
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// DATE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// dateOnly обрезает время до начала дня в UTC.
func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween возвращает количество календарных дней между двумя датами.
func daysBetween(from, to time.Time) int {
	return int(dateOnly(to).Sub(dateOnly(from)).Hours() / 24)
}
