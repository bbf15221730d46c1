package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DevelopmentDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "ecoquest-hub", cfg.App.Name)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 500, cfg.Game.PointsPerLevel)
	assert.Equal(t, "reset_to_zero", cfg.Game.StreakPolicy)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.LeaderboardInterval)
	assert.True(t, cfg.Scheduler.Enabled)
	require.NotNil(t, cfg.Features)
}

func TestLoad_ProductionRequiresBackingServices(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "SUPABASE_URL")
}

func TestLoad_RejectsUnknownStreakPolicy(t *testing.T) {
	t.Setenv("GAME_STREAK_POLICY", "freeze")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GAME_STREAK_POLICY")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("GAME_STREAK_POLICY", "reset_to_one")
	t.Setenv("SCHEDULER_LEADERBOARD_INTERVAL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "reset_to_one", cfg.Game.StreakPolicy)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.LeaderboardInterval)
}

func TestValidate_AuditTimeBounds(t *testing.T) {
	t.Setenv("SCHEDULER_STREAK_AUDIT_HOUR", "24")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEDULER_STREAK_AUDIT_HOUR")
}
