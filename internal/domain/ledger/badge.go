package ledger

import (
	"strings"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE
// ══════════════════════════════════════════════════════════════════════════════

// Badge - неизменяемая запись о разблокировке награды фиксированного тира.
// Бейдж принадлежит ровно одному счёту; после добавления в коллекцию
// не удаляется и не изменяется (история наград).
type Badge struct {
	// ID - уникален в пределах счёта (например, "eco-warrior").
	ID string

	// Name - отображаемое название ("Eco Warrior").
	Name string

	// Description - за что выдан бейдж.
	Description string

	// Icon - эмодзи или имя иконки для UI.
	Icon string

	// Tier - бронза, серебро или золото.
	Tier shared.BadgeTier

	// UnlockedAt - момент разблокировки (UTC).
	UnlockedAt time.Time
}

// validate проверяет обязательные поля бейджа.
func (b Badge) validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return shared.WrapError("ledger", "Validate", shared.ErrInvalidEntity, "badge id is required", nil)
	}
	if strings.TrimSpace(b.Name) == "" {
		return shared.WrapError("ledger", "Validate", shared.ErrInvalidEntity, "badge name is required", nil)
	}
	if !b.Tier.IsValid() {
		return shared.ErrInvalidBadge
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - сериализуемый снимок счёта для адаптера персистентности.
// Уровень в снимок не входит: это производная величина, она пересчитывается
// при гидрации и никогда не хранится.
type Snapshot struct {
	UserID         shared.UserID
	Points         int
	Streak         int
	Badges         []Badge
	LastActiveDate time.Time
	UpdatedAt      time.Time
}
