package ledger

import (
	"encoding/json"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE CRITERIA
// Во внешней схеме критерий бейджа хранится как JSON-блоб. На границе
// персистентности он декодируется в типизированный вариант, чтобы проверка
// работала с предикатом, а не с сырой структурой.
// ══════════════════════════════════════════════════════════════════════════════

// CriterionKind - вид условия разблокировки.
type CriterionKind string

const (
	// CriterionTaskCount - выполнено не менее N задач.
	CriterionTaskCount CriterionKind = "task_count"
	// CriterionStreakDays - серия не менее N дней.
	CriterionStreakDays CriterionKind = "streak_days"
	// CriterionLevel - достигнут уровень N.
	CriterionLevel CriterionKind = "level"
	// CriterionPoints - накоплено не менее N очков.
	CriterionPoints CriterionKind = "points"
)

// IsValid проверяет, что вид условия известен.
func (k CriterionKind) IsValid() bool {
	switch k {
	case CriterionTaskCount, CriterionStreakDays, CriterionLevel, CriterionPoints:
		return true
	default:
		return false
	}
}

// Criterion - типизированное условие разблокировки бейджа.
type Criterion struct {
	Kind      CriterionKind `json:"kind"`
	Threshold int           `json:"threshold"`
}

// Stats - показатели счёта, против которых проверяются критерии.
type Stats struct {
	Points         int
	Level          int
	Streak         int
	TasksCompleted int
}

// Met проверяет, выполнено ли условие при данных показателях.
func (c Criterion) Met(s Stats) bool {
	switch c.Kind {
	case CriterionTaskCount:
		return s.TasksCompleted >= c.Threshold
	case CriterionStreakDays:
		return s.Streak >= c.Threshold
	case CriterionLevel:
		return s.Level >= c.Threshold
	case CriterionPoints:
		return s.Points >= c.Threshold
	default:
		return false
	}
}

// DecodeCriterion разбирает JSON-блоб критерия из внешней схемы.
// Неизвестный kind - ошибка shared.ErrInvalidCriterion: лучше не выдать
// бейдж, чем выдать его по непонятному правилу.
func DecodeCriterion(raw json.RawMessage) (Criterion, error) {
	var c Criterion
	if err := json.Unmarshal(raw, &c); err != nil {
		return Criterion{}, shared.WrapError("ledger", "DecodeCriterion", shared.ErrInvalidFormat, "malformed criteria json", err)
	}
	if !c.Kind.IsValid() {
		return Criterion{}, shared.ErrInvalidCriterion
	}
	if c.Threshold < 0 {
		return Criterion{}, shared.WrapError("ledger", "DecodeCriterion", shared.ErrNegativeValue, "criterion threshold is negative", nil)
	}
	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE DEFINITIONS & CHECKER
// ══════════════════════════════════════════════════════════════════════════════

// BadgeDefinition - описание бейджа из каталога (таблица badges) вместе
// с уже декодированным критерием.
type BadgeDefinition struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Tier        shared.BadgeTier
	Criterion   Criterion
}

// Badge строит доменный бейдж из определения.
func (d BadgeDefinition) Badge(unlockedAt time.Time) Badge {
	return Badge{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Icon:        d.Icon,
		Tier:        d.Tier,
		UnlockedAt:  unlockedAt,
	}
}

// Checker проверяет условия разблокировки бейджей.
type Checker struct{}

// NewChecker создаёт проверщик бейджей.
func NewChecker() *Checker {
	return &Checker{}
}

// NewlyEarned возвращает определения бейджей, критерии которых выполнены,
// а сам бейдж счёту ещё не принадлежит. Порядок каталога сохраняется.
func (c *Checker) NewlyEarned(defs []BadgeDefinition, l *Ledger, tasksCompleted int) []BadgeDefinition {
	if l == nil || !l.IsHydrated() {
		return nil
	}
	stats := l.Stats(tasksCompleted)

	var earned []BadgeDefinition
	for _, def := range defs {
		if l.HasBadge(def.ID) {
			continue
		}
		if def.Criterion.Met(stats) {
			earned = append(earned, def)
		}
	}
	return earned
}
