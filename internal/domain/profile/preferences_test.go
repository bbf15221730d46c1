package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

const testUserID = shared.UserID("a3bb189e-8bf9-3888-9912-ace4e6543002")

func TestDefaultPreferences(t *testing.T) {
	prefs := DefaultPreferences(testUserID)

	require.NoError(t, prefs.Validate())
	assert.Equal(t, PrefsV2, prefs.Version)
	assert.Equal(t, ThemeSystem, prefs.Display.Theme)
	assert.Equal(t, "medium", prefs.Learning.Difficulty)
	assert.True(t, prefs.OnLeaderboard())
}

func TestDecodePreferences_V2(t *testing.T) {
	raw := json.RawMessage(`{
		"version": 2,
		"notifications": {"email": false, "push": true, "achievements": true, "reminders": false},
		"display": {"theme": "dark", "language": "kk", "animations": false, "accessibility": true},
		"learning": {"difficulty": "hard", "reminders": true, "progress_tracking": true, "gamification": false},
		"privacy": {"profile_visibility": "private", "progress_sharing": false, "leaderboard_participation": false, "data_collection": true}
	}`)

	prefs, err := DecodePreferences(testUserID, raw)
	require.NoError(t, err)

	assert.Equal(t, testUserID, prefs.UserID)
	assert.False(t, prefs.Notifications.Email)
	assert.Equal(t, ThemeDark, prefs.Display.Theme)
	assert.Equal(t, "hard", prefs.Learning.Difficulty)
	assert.Equal(t, VisibilityPrivate, prefs.Privacy.ProfileVisibility)
	assert.False(t, prefs.OnLeaderboard())
}

func TestDecodePreferences_V1Migration(t *testing.T) {
	// Early accounts stored a flat blob with no version field.
	raw := json.RawMessage(`{
		"email_notifications": false,
		"push_notifications": true,
		"theme": "dark",
		"language": "de",
		"public_profile": false,
		"show_on_leaderboard": true
	}`)

	prefs, err := DecodePreferences(testUserID, raw)
	require.NoError(t, err)

	assert.Equal(t, PrefsV2, prefs.Version, "migration always lands on v2")
	assert.False(t, prefs.Notifications.Email)
	assert.True(t, prefs.Notifications.Push)
	assert.Equal(t, ThemeDark, prefs.Display.Theme)
	assert.Equal(t, "de", prefs.Display.Language)
	assert.Equal(t, VisibilityPrivate, prefs.Privacy.ProfileVisibility)
	assert.True(t, prefs.Privacy.LeaderboardParticipation)

	// Fields v1 never had come from the defaults.
	assert.Equal(t, "medium", prefs.Learning.Difficulty)
	assert.True(t, prefs.Notifications.Achievements)
}

func TestDecodePreferences_UnknownVersion(t *testing.T) {
	_, err := DecodePreferences(testUserID, json.RawMessage(`{"version": 7}`))
	assert.ErrorIs(t, err, shared.ErrUnknownPrefsVersion)
}

func TestDecodePreferences_Malformed(t *testing.T) {
	_, err := DecodePreferences(testUserID, json.RawMessage(`{broken`))
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestDecodePreferences_RejectsBadEnums(t *testing.T) {
	raw := json.RawMessage(`{
		"version": 2,
		"notifications": {"email": true, "push": true, "achievements": true, "reminders": true},
		"display": {"theme": "neon", "language": "en", "animations": true, "accessibility": false},
		"learning": {"difficulty": "medium", "reminders": true, "progress_tracking": true, "gamification": true},
		"privacy": {"profile_visibility": "public", "progress_sharing": true, "leaderboard_participation": true, "data_collection": true}
	}`)

	_, err := DecodePreferences(testUserID, raw)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestEncodePreferences_RoundTrip(t *testing.T) {
	original := DefaultPreferences(testUserID)
	original.Display.Theme = ThemeLight
	original.Privacy.LeaderboardParticipation = false

	raw, err := EncodePreferences(original)
	require.NoError(t, err)

	decoded, err := DecodePreferences(testUserID, raw)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestProfile_Validation(t *testing.T) {
	_, err := NewProfile(testUserID, "Aruzhan", shared.RoleStudent)
	require.NoError(t, err)

	_, err = NewProfile(testUserID, "   ", shared.RoleStudent)
	assert.ErrorIs(t, err, shared.ErrInvalidDisplayName)

	_, err = NewProfile("", "Aruzhan", shared.RoleStudent)
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	_, err = NewProfile(testUserID, "Aruzhan", shared.Role("admin"))
	assert.ErrorIs(t, err, shared.ErrInvalidRole)
}

func TestProfile_SyncGameState(t *testing.T) {
	p, err := NewProfile(testUserID, "Aruzhan", shared.RoleStudent)
	require.NoError(t, err)

	require.NoError(t, p.SyncGameState(730, 3))
	assert.Equal(t, shared.Points(730), p.Points)
	assert.Equal(t, 3, p.BadgeCount)

	err = p.SyncGameState(-1, 0)
	assert.ErrorIs(t, err, shared.ErrNegativeValue)
}
