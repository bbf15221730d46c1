package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

func buildRanking(t *testing.T, rows []struct {
	id     shared.UserID
	name   string
	points shared.Points
	badges int
}) *Ranking {
	t.Helper()
	ranking := NewRanking()
	for _, row := range rows {
		entry, err := NewEntry(1, row.id, row.name, row.points, row.badges)
		require.NoError(t, err)
		require.NoError(t, ranking.Add(entry))
	}
	ranking.Sort()
	return ranking
}

func TestRanking_SortAndTieBreaks(t *testing.T) {
	ranking := buildRanking(t, []struct {
		id     shared.UserID
		name   string
		points shared.Points
		badges int
	}{
		{"11111111-1111-1111-1111-111111111111", "Aliya", 300, 2},
		{"22222222-2222-2222-2222-222222222222", "Boris", 900, 5},
		{"33333333-3333-3333-3333-333333333333", "Carmen", 300, 4},
		{"44444444-4444-4444-4444-444444444444", "Dana", 300, 2},
	})

	all := ranking.All()
	require.Len(t, all, 4)

	assert.Equal(t, "Boris", all[0].DisplayName)
	assert.Equal(t, Rank(1), all[0].Rank)

	// Equal points: more badges ranks higher.
	assert.Equal(t, "Carmen", all[1].DisplayName)
	assert.Equal(t, Rank(2), all[1].Rank)

	// Equal points and badges: shared rank, alphabetical order.
	assert.Equal(t, "Aliya", all[2].DisplayName)
	assert.Equal(t, Rank(3), all[2].Rank)
	assert.Equal(t, "Dana", all[3].DisplayName)
	assert.Equal(t, Rank(3), all[3].Rank)
}

func TestRanking_RejectsDuplicateUser(t *testing.T) {
	ranking := NewRanking()
	entry, err := NewEntry(1, "11111111-1111-1111-1111-111111111111", "Aliya", 100, 0)
	require.NoError(t, err)
	require.NoError(t, ranking.Add(entry))

	err = ranking.Add(entry.Clone())
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestSnapshot_PageAndNeighbors(t *testing.T) {
	ranking := buildRanking(t, []struct {
		id     shared.UserID
		name   string
		points shared.Points
		badges int
	}{
		{"11111111-1111-1111-1111-111111111111", "Aliya", 500, 1},
		{"22222222-2222-2222-2222-222222222222", "Boris", 400, 1},
		{"33333333-3333-3333-3333-333333333333", "Carmen", 300, 1},
		{"44444444-4444-4444-4444-444444444444", "Dana", 200, 1},
		{"55555555-5555-5555-5555-555555555555", "Erik", 100, 1},
	})
	snap := NewSnapshot("snap-1", ranking)

	assert.Equal(t, 5, snap.Count())
	assert.Equal(t, shared.Points(300), snap.AveragePoints)

	page := snap.Page(2, 2)
	require.Len(t, page, 2)
	assert.Equal(t, "Carmen", page[0].DisplayName)
	assert.Equal(t, "Dana", page[1].DisplayName)

	neighbors := snap.Neighbors("33333333-3333-3333-3333-333333333333", 1)
	require.Len(t, neighbors, 3)
	assert.Equal(t, "Boris", neighbors[0].DisplayName)
	assert.Equal(t, "Carmen", neighbors[1].DisplayName)
	assert.Equal(t, "Dana", neighbors[2].DisplayName)

	assert.Equal(t, Rank(1), snap.GetRank("11111111-1111-1111-1111-111111111111"))
	assert.Equal(t, Rank(0), snap.GetRank("99999999-9999-9999-9999-999999999999"))
}

func TestCalculateDiff(t *testing.T) {
	oldRanking := buildRanking(t, []struct {
		id     shared.UserID
		name   string
		points shared.Points
		badges int
	}{
		{"11111111-1111-1111-1111-111111111111", "Aliya", 500, 1},
		{"22222222-2222-2222-2222-222222222222", "Boris", 400, 1},
		{"33333333-3333-3333-3333-333333333333", "Carmen", 300, 1},
	})
	oldSnap := NewSnapshot("snap-1", oldRanking)

	// Carmen overtakes Boris; Dana joins; Aliya leaves.
	newRanking := buildRanking(t, []struct {
		id     shared.UserID
		name   string
		points shared.Points
		badges int
	}{
		{"22222222-2222-2222-2222-222222222222", "Boris", 410, 1},
		{"33333333-3333-3333-3333-333333333333", "Carmen", 450, 1},
		{"44444444-4444-4444-4444-444444444444", "Dana", 50, 0},
	})
	newSnap := NewSnapshot("snap-2", newRanking)

	diff := CalculateDiff(oldSnap, newSnap)

	assert.True(t, diff.HasChanges())
	// Carmen: rank 3 -> 1, Boris stays at rank 2.
	assert.Equal(t, RankChange(2), diff.GetRankChange("33333333-3333-3333-3333-333333333333"))
	assert.Equal(t, RankChange(0), diff.GetRankChange("22222222-2222-2222-2222-222222222222"))

	require.Len(t, diff.NewEntries, 1)
	assert.Equal(t, shared.UserID("44444444-4444-4444-4444-444444444444"), diff.NewEntries[0].UserID)

	require.Len(t, diff.RemovedEntries, 1)
	assert.Equal(t, shared.UserID("11111111-1111-1111-1111-111111111111"), diff.RemovedEntries[0].UserID)
}

func TestCalculateDiff_FirstSnapshot(t *testing.T) {
	ranking := buildRanking(t, []struct {
		id     shared.UserID
		name   string
		points shared.Points
		badges int
	}{
		{"11111111-1111-1111-1111-111111111111", "Aliya", 500, 1},
	})
	snap := NewSnapshot("snap-1", ranking)

	diff := CalculateDiff(nil, snap)
	assert.Len(t, diff.NewEntries, 1)
	assert.Empty(t, diff.RankChanges)
}
