package profile

import (
	"encoding/json"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER PREFERENCES
// Канонический формат - версия 2: настройки сгруппированы по четырём
// категориям. Ранние аккаунты хранят плоский формат версии 1; он мигрируется
// на границе персистентности, ядро видит только v2.
// ══════════════════════════════════════════════════════════════════════════════

// PrefsVersion - версия схемы настроек.
type PrefsVersion int

const (
	// PrefsV1 - плоский формат ранних аккаунтов.
	PrefsV1 PrefsVersion = 1
	// PrefsV2 - канонический формат по категориям.
	PrefsV2 PrefsVersion = 2
)

// Theme - тема оформления.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// IsValid проверяет, что тема известна.
func (t Theme) IsValid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	default:
		return false
	}
}

// Visibility - видимость профиля.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// IsValid проверяет, что значение видимости известно.
func (v Visibility) IsValid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// NotificationPrefs - настройки уведомлений.
type NotificationPrefs struct {
	Email        bool `json:"email"`
	Push         bool `json:"push"`
	Achievements bool `json:"achievements"`
	Reminders    bool `json:"reminders"`
}

// DisplayPrefs - настройки отображения.
type DisplayPrefs struct {
	Theme         Theme  `json:"theme"`
	Language      string `json:"language"`
	Animations    bool   `json:"animations"`
	Accessibility bool   `json:"accessibility"`
}

// LearningPrefs - настройки обучения.
type LearningPrefs struct {
	Difficulty       string `json:"difficulty"`
	Reminders        bool   `json:"reminders"`
	ProgressTracking bool   `json:"progress_tracking"`
	Gamification     bool   `json:"gamification"`
}

// PrivacyPrefs - настройки приватности.
type PrivacyPrefs struct {
	ProfileVisibility        Visibility `json:"profile_visibility"`
	ProgressSharing          bool       `json:"progress_sharing"`
	LeaderboardParticipation bool       `json:"leaderboard_participation"`
	DataCollection           bool       `json:"data_collection"`
}

// Preferences - настройки пользователя (таблица user_preferences).
type Preferences struct {
	UserID        shared.UserID     `json:"user_id"`
	Version       PrefsVersion      `json:"version"`
	Notifications NotificationPrefs `json:"notifications"`
	Display       DisplayPrefs      `json:"display"`
	Learning      LearningPrefs     `json:"learning"`
	Privacy       PrivacyPrefs      `json:"privacy"`
}

// DefaultPreferences возвращает настройки по умолчанию для нового пользователя.
func DefaultPreferences(userID shared.UserID) Preferences {
	return Preferences{
		UserID:  userID,
		Version: PrefsV2,
		Notifications: NotificationPrefs{
			Email:        true,
			Push:         true,
			Achievements: true,
			Reminders:    true,
		},
		Display: DisplayPrefs{
			Theme:         ThemeSystem,
			Language:      "en",
			Animations:    true,
			Accessibility: false,
		},
		Learning: LearningPrefs{
			Difficulty:       "medium",
			Reminders:        true,
			ProgressTracking: true,
			Gamification:     true,
		},
		Privacy: PrivacyPrefs{
			ProfileVisibility:        VisibilityPublic,
			ProgressSharing:          true,
			LeaderboardParticipation: true,
			DataCollection:           true,
		},
	}
}

// Validate проверяет закрытые перечисления настроек.
func (p Preferences) Validate() error {
	if p.UserID.IsEmpty() {
		return shared.NewDomainError("profile", "ValidatePreferences", shared.ErrInvalidID, "user id is required")
	}
	if !p.Display.Theme.IsValid() {
		return shared.NewDomainError("profile", "ValidatePreferences", shared.ErrInvalidInput, "unknown theme")
	}
	switch p.Learning.Difficulty {
	case "easy", "medium", "hard":
	default:
		return shared.NewDomainError("profile", "ValidatePreferences", shared.ErrInvalidInput, "unknown difficulty")
	}
	if !p.Privacy.ProfileVisibility.IsValid() {
		return shared.NewDomainError("profile", "ValidatePreferences", shared.ErrInvalidInput, "unknown profile visibility")
	}
	return nil
}

// OnLeaderboard возвращает true, если пользователь участвует в рейтинге.
func (p Preferences) OnLeaderboard() bool {
	return p.Privacy.LeaderboardParticipation
}

// ══════════════════════════════════════════════════════════════════════════════
// V1 MIGRATION
// ══════════════════════════════════════════════════════════════════════════════

// prefsV1 - плоский формат ранних аккаунтов. Хранится только в старых
// строках user_preferences; наружу не выходит.
type prefsV1 struct {
	EmailNotifications bool   `json:"email_notifications"`
	PushNotifications  bool   `json:"push_notifications"`
	Theme              string `json:"theme"`
	Language           string `json:"language"`
	PublicProfile      bool   `json:"public_profile"`
	ShowOnLeaderboard  bool   `json:"show_on_leaderboard"`
}

// versionProbe читает только поле version, чтобы выбрать схему декодирования.
type versionProbe struct {
	Version PrefsVersion `json:"version"`
}

// DecodePreferences разбирает JSON-блоб настроек любой известной версии
// и возвращает канонический v2. Блоб без поля version считается v1
// (версионирование появилось вместе со схемой v2).
func DecodePreferences(userID shared.UserID, raw json.RawMessage) (Preferences, error) {
	var probe versionProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Preferences{}, shared.WrapError("profile", "DecodePreferences", shared.ErrInvalidFormat, "malformed preferences json", err)
	}

	switch probe.Version {
	case PrefsV2:
		var prefs Preferences
		if err := json.Unmarshal(raw, &prefs); err != nil {
			return Preferences{}, shared.WrapError("profile", "DecodePreferences", shared.ErrInvalidFormat, "malformed v2 preferences", err)
		}
		prefs.UserID = userID
		prefs.Version = PrefsV2
		if err := prefs.Validate(); err != nil {
			return Preferences{}, err
		}
		return prefs, nil

	case 0, PrefsV1:
		var old prefsV1
		if err := json.Unmarshal(raw, &old); err != nil {
			return Preferences{}, shared.WrapError("profile", "DecodePreferences", shared.ErrInvalidFormat, "malformed v1 preferences", err)
		}
		return migrateV1(userID, old), nil

	default:
		return Preferences{}, shared.ErrUnknownPrefsVersion
	}
}

// migrateV1 поднимает плоский формат до v2. Поля, которых в v1 не было,
// получают значения по умолчанию.
func migrateV1(userID shared.UserID, old prefsV1) Preferences {
	prefs := DefaultPreferences(userID)

	prefs.Notifications.Email = old.EmailNotifications
	prefs.Notifications.Push = old.PushNotifications

	if theme := Theme(old.Theme); theme.IsValid() {
		prefs.Display.Theme = theme
	}
	if old.Language != "" {
		prefs.Display.Language = old.Language
	}

	if old.PublicProfile {
		prefs.Privacy.ProfileVisibility = VisibilityPublic
	} else {
		prefs.Privacy.ProfileVisibility = VisibilityPrivate
	}
	prefs.Privacy.LeaderboardParticipation = old.ShowOnLeaderboard

	return prefs
}

// EncodePreferences сериализует настройки в канонический v2 JSON.
func EncodePreferences(prefs Preferences) (json.RawMessage, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	prefs.Version = PrefsV2
	raw, err := json.Marshal(prefs)
	if err != nil {
		return nil, shared.WrapError("profile", "EncodePreferences", shared.ErrInvalidFormat, "failed to encode preferences", err)
	}
	return raw, nil
}
