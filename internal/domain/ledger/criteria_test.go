package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

func TestDecodeCriterion(t *testing.T) {
	c, err := DecodeCriterion(json.RawMessage(`{"kind":"task_count","threshold":10}`))
	require.NoError(t, err)
	assert.Equal(t, CriterionTaskCount, c.Kind)
	assert.Equal(t, 10, c.Threshold)

	_, err = DecodeCriterion(json.RawMessage(`{"kind":"moon_phase","threshold":1}`))
	assert.ErrorIs(t, err, shared.ErrInvalidCriterion)

	_, err = DecodeCriterion(json.RawMessage(`{"kind":"points","threshold":-5}`))
	assert.ErrorIs(t, err, shared.ErrNegativeValue)

	_, err = DecodeCriterion(json.RawMessage(`{not json`))
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestCriterion_Met(t *testing.T) {
	stats := Stats{Points: 750, Level: 2, Streak: 5, TasksCompleted: 12}

	tests := []struct {
		name string
		c    Criterion
		want bool
	}{
		{"task count met", Criterion{CriterionTaskCount, 10}, true},
		{"task count not met", Criterion{CriterionTaskCount, 13}, false},
		{"streak met at boundary", Criterion{CriterionStreakDays, 5}, true},
		{"streak not met", Criterion{CriterionStreakDays, 7}, false},
		{"level met", Criterion{CriterionLevel, 2}, true},
		{"points met", Criterion{CriterionPoints, 500}, true},
		{"points not met", Criterion{CriterionPoints, 1000}, false},
		{"unknown kind never met", Criterion{"bogus", 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Met(stats))
		})
	}
}

func TestChecker_NewlyEarned(t *testing.T) {
	defs := []BadgeDefinition{
		{ID: "first-steps", Name: "First Steps", Tier: shared.TierBronze, Criterion: Criterion{CriterionTaskCount, 1}},
		{ID: "eco-warrior", Name: "Eco Warrior", Tier: shared.TierBronze, Criterion: Criterion{CriterionTaskCount, 10}},
		{ID: "level-five", Name: "Rising Star", Tier: shared.TierSilver, Criterion: Criterion{CriterionLevel, 5}},
		{ID: "week-streak", Name: "Consistent", Tier: shared.TierSilver, Criterion: Criterion{CriterionStreakDays, 7}},
	}

	l := newHydratedLedger(t)
	_, err := l.AddPoints(600)
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		_, err = l.UpdateStreak()
		require.NoError(t, err)
	}
	// "first-steps" is already owned and must not be reported again.
	_, err = l.UnlockBadge(Badge{ID: "first-steps", Name: "First Steps", Tier: shared.TierBronze})
	require.NoError(t, err)

	earned := NewChecker().NewlyEarned(defs, l, 12)

	require.Len(t, earned, 2)
	// Catalog order is preserved.
	assert.Equal(t, "eco-warrior", earned[0].ID)
	assert.Equal(t, "week-streak", earned[1].ID)
}

func TestChecker_NewlyEarned_UnhydratedLedger(t *testing.T) {
	l, err := NewLedger(testUserID, DefaultConfig())
	require.NoError(t, err)

	earned := NewChecker().NewlyEarned([]BadgeDefinition{
		{ID: "x", Name: "X", Tier: shared.TierBronze, Criterion: Criterion{CriterionTaskCount, 0}},
	}, l, 100)

	assert.Nil(t, earned)
}
