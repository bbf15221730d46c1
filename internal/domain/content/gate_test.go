package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

func testCatalog() []Unlockable {
	return []Unlockable{
		{ID: "e1", RequiredCompletions: 0},
		{ID: "e2", RequiredCompletions: 2},
		{ID: "e3", RequiredCompletions: 5},
	}
}

func unlockedIDs(result map[shared.ContentID]Unlock) map[shared.ContentID]bool {
	out := make(map[shared.ContentID]bool)
	for id, u := range result {
		if u.IsUnlocked {
			out[id] = true
		}
	}
	return out
}

func TestEvaluate(t *testing.T) {
	catalog := testCatalog()

	tests := []struct {
		completions int
		want        map[shared.ContentID]bool
	}{
		{0, map[shared.ContentID]bool{"e1": true, "e2": false, "e3": false}},
		{1, map[shared.ContentID]bool{"e1": true, "e2": false, "e3": false}},
		{2, map[shared.ContentID]bool{"e1": true, "e2": true, "e3": false}},
		{4, map[shared.ContentID]bool{"e1": true, "e2": true, "e3": false}},
		{5, map[shared.ContentID]bool{"e1": true, "e2": true, "e3": true}},
		{100, map[shared.ContentID]bool{"e1": true, "e2": true, "e3": true}},
	}

	for _, tt := range tests {
		result := Evaluate(catalog, tt.completions)
		require.Len(t, result, len(catalog))
		for id, wantUnlocked := range tt.want {
			assert.Equal(t, wantUnlocked, result[id].IsUnlocked,
				"completions=%d id=%s", tt.completions, id)
		}
	}
}

func TestEvaluate_ZeroThresholdAlwaysUnlocked(t *testing.T) {
	catalog := []Unlockable{{ID: "intro", RequiredCompletions: 0}}

	for _, completions := range []int{-10, 0, 1, 999} {
		result := Evaluate(catalog, completions)
		assert.True(t, result["intro"].IsUnlocked, "completions=%d", completions)
		assert.Zero(t, result["intro"].Remaining)
	}
}

func TestEvaluate_Remaining(t *testing.T) {
	result := Evaluate(testCatalog(), 2)

	assert.Zero(t, result["e2"].Remaining)
	assert.Equal(t, 3, result["e3"].Remaining)
}

func TestEvaluate_Idempotent(t *testing.T) {
	catalog := testCatalog()

	first := Evaluate(catalog, 3)
	second := Evaluate(catalog, 3)
	assert.Equal(t, first, second)
}

func TestEvaluate_Monotonic(t *testing.T) {
	catalog := testCatalog()

	// The unlocked set at k must be a superset of the unlocked set at k-1.
	prev := unlockedIDs(Evaluate(catalog, 0))
	for k := 1; k <= 10; k++ {
		cur := unlockedIDs(Evaluate(catalog, k))
		for id := range prev {
			assert.True(t, cur[id], "completions=%d lost unlocked item %s", k, id)
		}
		prev = cur
	}
}

func TestEvaluate_NegativeCompletionsTreatedAsZero(t *testing.T) {
	assert.Equal(t, Evaluate(testCatalog(), 0), Evaluate(testCatalog(), -7))
}

func TestEvaluateEpisodes_PreservesCatalogOrder(t *testing.T) {
	episodes := []Episode{
		{ID: "ep-forest", Title: "The Forest Awakens", Order: 1, RequiredTasks: 0, Published: true},
		{ID: "ep-river", Title: "River Rescue", Order: 2, RequiredTasks: 3, Published: true},
		{ID: "ep-city", Title: "City of Tomorrow", Order: 3, RequiredTasks: 6, Published: true},
	}

	statuses := EvaluateEpisodes(episodes, 3)

	require.Len(t, statuses, 3)
	assert.Equal(t, shared.ContentID("ep-forest"), statuses[0].Episode.ID)
	assert.Equal(t, shared.ContentID("ep-river"), statuses[1].Episode.ID)
	assert.Equal(t, shared.ContentID("ep-city"), statuses[2].Episode.ID)

	assert.True(t, statuses[0].Unlock.IsUnlocked)
	assert.True(t, statuses[1].Unlock.IsUnlocked)
	assert.False(t, statuses[2].Unlock.IsUnlocked)
	assert.Equal(t, 3, statuses[2].Unlock.Remaining)
}

func TestChallengeProgress_Flow(t *testing.T) {
	now := time.Date(2026, 4, 6, 12, 0, 0, 0, time.UTC)
	window, err := shared.NewTimeRange(now.AddDate(0, 0, -1), now.AddDate(0, 0, 6))
	require.NoError(t, err)

	challenge := WeeklyChallenge{
		ID:           "wc-recycle",
		Title:        "Recycling Week",
		RewardPoints: 100,
		BonusPoints:  25,
		Window:       window,
		MaxProgress:  3,
	}
	require.NoError(t, challenge.Validate())
	assert.Equal(t, 125, challenge.TotalReward())

	progress, err := NewChallengeProgress("a3bb189e-8bf9-3888-9912-ace4e6543002", challenge, now)
	require.NoError(t, err)
	assert.False(t, progress.IsCompleted())

	done, err := progress.Advance(challenge, 2, now)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 2, progress.Progress)

	// Overshooting clamps to MaxProgress and completes.
	done, err = progress.Advance(challenge, 5, now)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 3, progress.Progress)
	assert.True(t, progress.IsCompleted())

	_, err = progress.Advance(challenge, 1, now)
	assert.ErrorIs(t, err, shared.ErrAlreadyCompleted)
}

func TestChallengeProgress_WindowClosed(t *testing.T) {
	now := time.Date(2026, 4, 6, 12, 0, 0, 0, time.UTC)
	window, err := shared.NewTimeRange(now.AddDate(0, 0, -14), now.AddDate(0, 0, -7))
	require.NoError(t, err)

	challenge := WeeklyChallenge{
		ID:          "wc-old",
		Title:       "Last Month",
		Window:      window,
		MaxProgress: 3,
	}

	_, err = NewChallengeProgress("a3bb189e-8bf9-3888-9912-ace4e6543002", challenge, now)
	assert.ErrorIs(t, err, shared.ErrChallengeEnded)
}
