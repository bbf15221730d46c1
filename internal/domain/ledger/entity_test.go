package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

const testUserID = shared.UserID("a3bb189e-8bf9-3888-9912-ace4e6543002")

func newHydratedLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(testUserID, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, l.HydrateEmpty())
	return l
}

func TestNewLedger_RequiresUserID(t *testing.T) {
	_, err := NewLedger("", DefaultConfig())
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestLedger_NotHydrated(t *testing.T) {
	l, err := NewLedger(testUserID, DefaultConfig())
	require.NoError(t, err)

	assert.False(t, l.IsHydrated())

	_, err = l.AddPoints(10)
	assert.ErrorIs(t, err, shared.ErrNotHydrated)

	_, err = l.Points()
	assert.ErrorIs(t, err, shared.ErrNotHydrated)

	_, err = l.LevelProgress()
	assert.ErrorIs(t, err, shared.ErrNotHydrated)

	_, err = l.Snapshot()
	assert.ErrorIs(t, err, shared.ErrNotHydrated)
}

func TestLedger_HydrateEmpty_NewUserDefaults(t *testing.T) {
	l := newHydratedLedger(t)

	points, err := l.Points()
	require.NoError(t, err)
	assert.Equal(t, shared.Points(0), points)

	level, err := l.Level()
	require.NoError(t, err)
	assert.Equal(t, shared.Level(1), level)

	streak, err := l.Streak()
	require.NoError(t, err)
	assert.Equal(t, 0, streak)

	badges, err := l.Badges()
	require.NoError(t, err)
	assert.Empty(t, badges)
}

func TestLedger_Hydrate_Twice(t *testing.T) {
	l := newHydratedLedger(t)
	err := l.Hydrate(Snapshot{UserID: testUserID, Points: 100})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestLedger_Hydrate_RejectsBadSnapshot(t *testing.T) {
	badge := Badge{ID: "eco-warrior", Name: "Eco Warrior", Tier: shared.TierBronze, UnlockedAt: time.Now()}

	tests := []struct {
		name string
		snap Snapshot
	}{
		{"negative points", Snapshot{UserID: testUserID, Points: -1}},
		{"negative streak", Snapshot{UserID: testUserID, Streak: -3}},
		{"duplicate badges", Snapshot{UserID: testUserID, Badges: []Badge{badge, badge}}},
		{"invalid badge tier", Snapshot{UserID: testUserID, Badges: []Badge{{ID: "x", Name: "X", Tier: "platinum"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLedger(testUserID, DefaultConfig())
			require.NoError(t, err)

			assert.Error(t, l.Hydrate(tt.snap))
			// All-or-nothing: a failed hydration leaves the ledger pending.
			assert.False(t, l.IsHydrated())
		})
	}
}

func TestLevelForPoints_Formula(t *testing.T) {
	tests := []struct {
		points shared.Points
		level  shared.Level
	}{
		{0, 1},
		{1, 1},
		{499, 1},
		{500, 2},
		{999, 2},
		{1000, 3},
		{1250, 3},
		{4999, 10},
		{5000, 11},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.level, shared.LevelForPoints(tt.points, shared.PointsPerLevel),
			"level(%d)", tt.points)
	}
}

func TestLedger_AddPoints_LevelNeverStale(t *testing.T) {
	l := newHydratedLedger(t)

	res, err := l.AddPoints(50)
	require.NoError(t, err)
	assert.Equal(t, shared.Points(50), res.NewPoints)
	assert.Equal(t, shared.Level(1), res.NewLevel)
	assert.False(t, res.LeveledUp())

	// Crossing the 500 boundary recomputes the level in the same step.
	res, err = l.AddPoints(460)
	require.NoError(t, err)
	assert.Equal(t, shared.Points(510), res.NewPoints)
	assert.Equal(t, shared.Level(2), res.NewLevel)
	assert.True(t, res.LeveledUp())

	level, err := l.Level()
	require.NoError(t, err)
	points, err := l.Points()
	require.NoError(t, err)
	assert.Equal(t, points.Level(), level)
}

func TestLedger_AddPoints_Additivity(t *testing.T) {
	a := newHydratedLedger(t)
	_, err := a.AddPoints(120)
	require.NoError(t, err)
	_, err = a.AddPoints(380)
	require.NoError(t, err)

	b := newHydratedLedger(t)
	_, err = b.AddPoints(500)
	require.NoError(t, err)

	pa, _ := a.Points()
	pb, _ := b.Points()
	assert.Equal(t, pb, pa)

	la, _ := a.Level()
	lb, _ := b.Level()
	assert.Equal(t, lb, la)
}

func TestLedger_AddPoints_RejectsNegativeResult(t *testing.T) {
	l := newHydratedLedger(t)
	_, err := l.AddPoints(100)
	require.NoError(t, err)

	_, err = l.AddPoints(-150)
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	// Failed mutation leaves state untouched.
	points, _ := l.Points()
	assert.Equal(t, shared.Points(100), points)
	level, _ := l.Level()
	assert.Equal(t, shared.Level(1), level)
}

func TestLedger_AddPoints_NegativeCorrectionWithinBalance(t *testing.T) {
	l := newHydratedLedger(t)
	_, err := l.AddPoints(600)
	require.NoError(t, err)

	res, err := l.AddPoints(-200)
	require.NoError(t, err)
	assert.Equal(t, shared.Points(400), res.NewPoints)
	assert.Equal(t, shared.Level(1), res.NewLevel)
}

func TestLedger_UnlockBadge_DuplicateIsNoOp(t *testing.T) {
	l := newHydratedLedger(t)

	badge := Badge{
		ID:          "eco-warrior",
		Name:        "Eco Warrior",
		Description: "Completed 10 environmental tasks",
		Icon:        "🌱",
		Tier:        shared.TierBronze,
	}

	stored, err := l.UnlockBadge(badge)
	require.NoError(t, err)
	assert.False(t, stored.UnlockedAt.IsZero(), "UnlockedAt is defaulted when zero")

	_, err = l.UnlockBadge(badge)
	assert.ErrorIs(t, err, shared.ErrDuplicateBadge)
	assert.True(t, shared.IsNoOp(err), "duplicate unlock is a reported no-op, not a fault")

	badges, err := l.Badges()
	require.NoError(t, err)
	assert.Len(t, badges, 1)
}

func TestLedger_UnlockBadge_PreservesInsertionOrder(t *testing.T) {
	l := newHydratedLedger(t)

	ids := []string{"eco-warrior", "water-saver", "energy-detective"}
	for _, id := range ids {
		_, err := l.UnlockBadge(Badge{ID: id, Name: id, Tier: shared.TierSilver})
		require.NoError(t, err)
	}

	badges, err := l.Badges()
	require.NoError(t, err)
	for i, b := range badges {
		assert.Equal(t, ids[i], b.ID)
	}

	// Latest-first for the "recent badges" widget.
	latest, err := l.LatestBadges(2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "energy-detective", latest[0].ID)
	assert.Equal(t, "water-saver", latest[1].ID)
}

func TestLedger_UnlockBadge_Validation(t *testing.T) {
	l := newHydratedLedger(t)

	_, err := l.UnlockBadge(Badge{Name: "No ID", Tier: shared.TierGold})
	assert.ErrorIs(t, err, shared.ErrInvalidEntity)

	_, err = l.UnlockBadge(Badge{ID: "x", Name: "X", Tier: "diamond"})
	assert.ErrorIs(t, err, shared.ErrInvalidBadge)
}

func TestLedger_UpdateStreak_SevenDays(t *testing.T) {
	l := newHydratedLedger(t)

	for i := 1; i <= 7; i++ {
		streak, err := l.UpdateStreak()
		require.NoError(t, err)
		assert.Equal(t, i, streak)
	}
}

func TestLedger_LevelProgress(t *testing.T) {
	l := newHydratedLedger(t)
	_, err := l.AddPoints(1250)
	require.NoError(t, err)

	progress, err := l.LevelProgress()
	require.NoError(t, err)
	assert.Equal(t, shared.Level(3), progress.CurrentLevel)
	assert.Equal(t, 250, progress.PointsIntoLevel)
	assert.Equal(t, 250, progress.PointsToNext)
}

func TestLedger_Snapshot_RoundTrip(t *testing.T) {
	l := newHydratedLedger(t)
	_, err := l.AddPoints(730)
	require.NoError(t, err)
	_, err = l.UnlockBadge(Badge{ID: "water-saver", Name: "Water Saver", Tier: shared.TierSilver})
	require.NoError(t, err)
	_, err = l.RecordDailyActivity(time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	snap, err := l.Snapshot()
	require.NoError(t, err)

	restored, err := NewLedger(testUserID, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, restored.Hydrate(snap))

	points, _ := restored.Points()
	assert.Equal(t, shared.Points(730), points)
	level, _ := restored.Level()
	assert.Equal(t, shared.Level(2), level, "level is re-derived on hydration, never stored")
	streak, _ := restored.Streak()
	assert.Equal(t, 1, streak)
	assert.True(t, restored.HasBadge("water-saver"))
}

func TestLedger_CustomPointsPerLevel(t *testing.T) {
	l, err := NewLedger(testUserID, Config{PointsPerLevel: 100})
	require.NoError(t, err)
	require.NoError(t, l.HydrateEmpty())

	res, err := l.AddPoints(250)
	require.NoError(t, err)
	assert.Equal(t, shared.Level(3), res.NewLevel)
}
