package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	student := &FeatureContext{UserID: "user-1"}
	assert.True(t, ff.IsEnabled(FeatureGamificationStreaks, student))
	assert.True(t, ff.IsEnabled(FeatureStoryMode, student))
	assert.False(t, ff.IsEnabled(FeatureOfflineSync, student))
	assert.False(t, ff.IsEnabled("no.such.feature", student))
}

func TestFeatureFlags_EducatorSeesEverything(t *testing.T) {
	ff := LoadFeatureFlags()

	educator := &FeatureContext{UserID: "educator-1", IsEducator: true}
	assert.True(t, ff.IsEnabled(FeatureOfflineSync, educator))
	assert.True(t, ff.IsEnabled(FeatureLeaderboardLiveRank, educator))
}

func TestFeatureFlags_UserOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()
	student := &FeatureContext{UserID: "user-1"}

	ff.SetUserOverride("user-1", FeatureOfflineSync, true)
	assert.True(t, ff.IsEnabled(FeatureOfflineSync, student))

	ff.ClearUserOverrides("user-1")
	assert.False(t, ff.IsEnabled(FeatureOfflineSync, student))
}

func TestFeatureFlags_RolloutIsDeterministic(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureLeaderboardLiveRank, 50))

	student := &FeatureContext{UserID: "user-1"}
	first := ff.IsEnabled(FeatureLeaderboardLiveRank, student)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureLeaderboardLiveRank, student))
	}
}

func TestFeatureFlags_RolloutBoundaries(t *testing.T) {
	ff := LoadFeatureFlags()
	student := &FeatureContext{UserID: "user-1"}

	require.NoError(t, ff.EnableFeature(FeatureLeaderboardLiveRank))
	assert.True(t, ff.IsEnabled(FeatureLeaderboardLiveRank, student))

	require.NoError(t, ff.DisableFeature(FeatureLeaderboardLiveRank))
	assert.False(t, ff.IsEnabled(FeatureLeaderboardLiveRank, student))

	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureLeaderboardLiveRank, 150), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent("no.such.feature", 10), ErrFeatureNotFound)
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_CONTENT_OFFLINE_SYNC", "true")
	t.Setenv("FEATURE_LEADERBOARD_LIVE_RANK", "25")

	ff := LoadFeatureFlags()
	features := ff.GetAllFeatures()

	require.Contains(t, features, FeatureOfflineSync)
	assert.True(t, features[FeatureOfflineSync].Enabled)
	assert.Equal(t, 100, features[FeatureOfflineSync].RolloutPercent)

	require.Contains(t, features, FeatureLeaderboardLiveRank)
	assert.Equal(t, 25, features[FeatureLeaderboardLiveRank].RolloutPercent)
}
