// Package profile содержит доменную модель профиля пользователя EcoQuest.
// Профиль - это то, что видно другим: имя, роль, аватар, очки и бейджи.
// Identity (email, пароль, сессии) профилю не принадлежит - это внешний
// провайдер; профиль лишь хранит ссылку на его ID.
package profile

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Profile - публичный профиль пользователя (таблица profiles).
type Profile struct {
	// ID - совпадает с ID пользователя у identity-провайдера.
	ID shared.UserID

	// FullName - отображаемое имя.
	FullName string

	// Role - ученик или преподаватель.
	Role shared.Role

	// AvatarURL - публичный URL аватара (может быть пустым).
	AvatarURL string

	// Points - денормализованные очки для рейтинга; источник истины -
	// снапшот счёта, эта колонка обновляется write-through вместе с ним.
	Points shared.Points

	// BadgeCount - количество бейджей (для рейтинга).
	BadgeCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfile создаёт профиль с валидацией.
func NewProfile(id shared.UserID, fullName string, role shared.Role) (*Profile, error) {
	p := &Profile{
		ID:        id,
		FullName:  strings.TrimSpace(fullName),
		Role:      role,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate проверяет целостность профиля.
func (p *Profile) Validate() error {
	if p.ID.IsEmpty() {
		return shared.NewDomainError("profile", "Validate", shared.ErrInvalidID, "profile id is required")
	}
	if !p.Role.IsValid() {
		return shared.ErrInvalidRole
	}
	name := strings.TrimSpace(p.FullName)
	if name == "" || utf8.RuneCountInString(name) > 100 {
		return shared.ErrInvalidDisplayName
	}
	if p.Points < 0 {
		return shared.NewDomainError("profile", "Validate", shared.ErrNegativeValue, "points are negative")
	}
	return nil
}

// Rename меняет отображаемое имя.
func (p *Profile) Rename(fullName string) error {
	name := strings.TrimSpace(fullName)
	if name == "" || utf8.RuneCountInString(name) > 100 {
		return shared.ErrInvalidDisplayName
	}
	p.FullName = name
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// SetAvatar устанавливает URL аватара.
func (p *Profile) SetAvatar(url string) {
	p.AvatarURL = strings.TrimSpace(url)
	p.UpdatedAt = time.Now().UTC()
}

// SyncGameState обновляет денормализованные игровые показатели.
func (p *Profile) SyncGameState(points shared.Points, badgeCount int) error {
	if points < 0 || badgeCount < 0 {
		return shared.NewDomainError("profile", "SyncGameState", shared.ErrNegativeValue, "game state values are negative")
	}
	p.Points = points
	p.BadgeCount = badgeCount
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// IsEducator возвращает true для преподавателя.
func (p *Profile) IsEducator() bool {
	return p.Role == shared.RoleEducator
}

// String возвращает строковое представление для логирования.
func (p *Profile) String() string {
	return fmt.Sprintf(
		"Profile{ID: %s, Name: %s, Role: %s, Points: %d}",
		p.ID, p.FullName, p.Role, p.Points,
	)
}
