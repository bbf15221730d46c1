package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/leaderboard"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/profile"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

const (
	userAlice = shared.UserID("11111111-1111-1111-1111-111111111111")
	userBob   = shared.UserID("22222222-2222-2222-2222-222222222222")
	userCarol = shared.UserID("33333333-3333-3333-3333-333333333333")
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeProfiles struct {
	participants []*profile.Profile
}

func (f *fakeProfiles) FindByID(ctx context.Context, id shared.UserID) (*profile.Profile, error) {
	return nil, shared.ErrProfileNotFound
}

func (f *fakeProfiles) Save(ctx context.Context, p *profile.Profile) error { return nil }

func (f *fakeProfiles) ListForLeaderboard(ctx context.Context, limit int) ([]*profile.Profile, error) {
	if limit < len(f.participants) {
		return f.participants[:limit], nil
	}
	return f.participants, nil
}

type fakeStreakRepo struct {
	broken  []*ledger.Snapshot
	streaks map[shared.UserID]int

	resetCalls  int
	resetDenied map[shared.UserID]bool
}

func (f *fakeStreakRepo) ListBrokenStreaks(ctx context.Context, activeBefore time.Time) ([]*ledger.Snapshot, error) {
	return f.broken, nil
}

func (f *fakeStreakRepo) ResetStreak(ctx context.Context, userID shared.UserID, oldStreak, newStreak int) (bool, error) {
	f.resetCalls++
	if f.resetDenied[userID] {
		return false, nil
	}
	return true, nil
}

func (f *fakeStreakRepo) Streaks(ctx context.Context, userIDs []shared.UserID) (map[shared.UserID]int, error) {
	return f.streaks, nil
}

type fakeBoardRepo struct {
	latest  *leaderboard.Snapshot
	saved   []*leaderboard.Snapshot
	deleted int
}

func (f *fakeBoardRepo) SaveSnapshot(ctx context.Context, snap *leaderboard.Snapshot) error {
	f.saved = append(f.saved, snap)
	f.latest = snap
	return nil
}

func (f *fakeBoardRepo) GetLatestSnapshot(ctx context.Context) (*leaderboard.Snapshot, error) {
	if f.latest == nil {
		return nil, shared.ErrLeaderboardSnapshot
	}
	return f.latest, nil
}

func (f *fakeBoardRepo) GetSnapshotByID(ctx context.Context, id string) (*leaderboard.Snapshot, error) {
	return nil, shared.ErrLeaderboardSnapshot
}

func (f *fakeBoardRepo) ListSnapshots(ctx context.Context, from, to time.Time) ([]leaderboard.SnapshotMeta, error) {
	return nil, nil
}

func (f *fakeBoardRepo) DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int, error) {
	return f.deleted, nil
}

func (f *fakeBoardRepo) GetUserRank(ctx context.Context, userID shared.UserID) (*leaderboard.Entry, error) {
	return nil, shared.ErrNotOnLeaderboard
}

func (f *fakeBoardRepo) GetTop(ctx context.Context, limit int) ([]*leaderboard.Entry, error) {
	return nil, nil
}

func (f *fakeBoardRepo) GetPage(ctx context.Context, p shared.Pagination) ([]*leaderboard.Entry, error) {
	return nil, nil
}

func (f *fakeBoardRepo) GetNeighbors(ctx context.Context, userID shared.UserID, rangeSize int) ([]*leaderboard.Entry, error) {
	return nil, nil
}

func (f *fakeBoardRepo) GetTotalCount(ctx context.Context) (int, error) {
	return 0, nil
}

type fakeBoardCache struct {
	top    []*leaderboard.Entry
	topTTL time.Duration
	seeded []*leaderboard.Entry
}

func (f *fakeBoardCache) GetCachedTop(ctx context.Context, limit int) ([]*leaderboard.Entry, error) {
	return nil, nil
}

func (f *fakeBoardCache) SetCachedTop(ctx context.Context, entries []*leaderboard.Entry, ttl time.Duration) error {
	f.top = entries
	f.topTTL = ttl
	return nil
}

func (f *fakeBoardCache) GetCachedRank(ctx context.Context, userID shared.UserID) (*leaderboard.Entry, error) {
	return nil, nil
}

func (f *fakeBoardCache) SetCachedRank(ctx context.Context, entry *leaderboard.Entry, ttl time.Duration) error {
	return nil
}

func (f *fakeBoardCache) UpdateScore(ctx context.Context, userID shared.UserID, points shared.Points) error {
	return nil
}

func (f *fakeBoardCache) InvalidateAll(ctx context.Context) error { return nil }

func (f *fakeBoardCache) SeedScores(ctx context.Context, entries []*leaderboard.Entry) error {
	f.seeded = entries
	return nil
}

type fakePublisher struct {
	events []shared.Event
}

func (f *fakePublisher) Publish(event shared.Event) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) eventsOfType(et shared.EventType) []shared.Event {
	var out []shared.Event
	for _, e := range f.events {
		if e.EventType() == et {
			out = append(out, e)
		}
	}
	return out
}

func testProfile(id shared.UserID, name string, points int, badges int) *profile.Profile {
	return &profile.Profile{
		ID:         id,
		FullName:   name,
		Role:       shared.RoleStudent,
		Points:     shared.Points(points),
		BadgeCount: badges,
		UpdatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// RebuildLeaderboardJob
// ──────────────────────────────────────────────────────────────────────────────

func TestRebuildLeaderboard_PersistsSortedSnapshot(t *testing.T) {
	profiles := &fakeProfiles{participants: []*profile.Profile{
		testProfile(userAlice, "Alice", 300, 2),
		testProfile(userBob, "Bob", 500, 1),
		testProfile(userCarol, "Carol", 100, 0),
	}}
	streaks := &fakeStreakRepo{streaks: map[shared.UserID]int{userBob: 7}}
	repo := &fakeBoardRepo{}
	cache := &fakeBoardCache{}
	pub := &fakePublisher{}

	job := NewRebuildLeaderboardJob(profiles, streaks, repo, cache, cache, pub, RebuildLeaderboardConfig{}, nil)
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, repo.saved, 1)
	snap := repo.saved[0]
	assert.Equal(t, 3, snap.TotalUsers)

	top := snap.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, userBob, top[0].UserID)
	assert.Equal(t, userAlice, top[1].UserID)
	assert.Equal(t, userCarol, top[2].UserID)
	assert.Equal(t, 7, top[0].Streak)
}

func TestRebuildLeaderboard_WarmsCacheAndSeedsScores(t *testing.T) {
	profiles := &fakeProfiles{participants: []*profile.Profile{
		testProfile(userAlice, "Alice", 300, 2),
		testProfile(userBob, "Bob", 500, 1),
	}}
	repo := &fakeBoardRepo{}
	cache := &fakeBoardCache{}

	job := NewRebuildLeaderboardJob(profiles, &fakeStreakRepo{}, repo, cache, cache, nil, RebuildLeaderboardConfig{
		CachedTopSize: 1,
		CacheTTL:      time.Minute,
	}, nil)
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, cache.top, 1)
	assert.Equal(t, userBob, cache.top[0].UserID)
	assert.Equal(t, time.Minute, cache.topTTL)
	assert.Len(t, cache.seeded, 2)
}

func TestRebuildLeaderboard_PublishesSignificantRankChanges(t *testing.T) {
	profiles := &fakeProfiles{participants: []*profile.Profile{
		testProfile(userAlice, "Alice", 300, 0),
		testProfile(userBob, "Bob", 500, 0),
		testProfile(userCarol, "Carol", 100, 0),
	}}
	repo := &fakeBoardRepo{}
	pub := &fakePublisher{}

	// Previous snapshot had Carol far ahead, so this rebuild moves her
	// down by two and everyone else up.
	prevRanking := leaderboard.NewRanking()
	for i, p := range []*profile.Profile{
		testProfile(userCarol, "Carol", 900, 0),
		testProfile(userAlice, "Alice", 300, 0),
		testProfile(userBob, "Bob", 200, 0),
	} {
		e, err := leaderboard.NewEntry(leaderboard.Rank(i+1), p.ID, p.FullName, p.Points, p.BadgeCount)
		require.NoError(t, err)
		require.NoError(t, prevRanking.Add(e))
	}
	repo.latest = leaderboard.NewSnapshot("prev", prevRanking)

	job := NewRebuildLeaderboardJob(profiles, &fakeStreakRepo{}, repo, nil, nil, pub, RebuildLeaderboardConfig{
		SignificantChange: 2,
	}, nil)
	require.NoError(t, job.Run(context.Background()))

	// Carol fell by two, Bob climbed by two; Alice held her rank.
	rankEvents := pub.eventsOfType(shared.EventRankChanged)
	require.Len(t, rankEvents, 2)
	moved := []string{rankEvents[0].AggregateID(), rankEvents[1].AggregateID()}
	assert.ElementsMatch(t, []string{userBob.String(), userCarol.String()}, moved)

	rebuilt := pub.eventsOfType(shared.EventLeaderboardRebuilt)
	require.Len(t, rebuilt, 1)
}

func TestRebuildLeaderboard_FirstRunWithoutPreviousSnapshot(t *testing.T) {
	profiles := &fakeProfiles{participants: []*profile.Profile{
		testProfile(userAlice, "Alice", 300, 0),
	}}
	repo := &fakeBoardRepo{}
	pub := &fakePublisher{}

	job := NewRebuildLeaderboardJob(profiles, nil, repo, nil, nil, pub, RebuildLeaderboardConfig{}, nil)
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, repo.saved, 1)
	// New entrants are not rank changes.
	assert.Empty(t, pub.eventsOfType(shared.EventRankChanged))
}

func TestRebuildLeaderboard_RespectsParticipantCap(t *testing.T) {
	profiles := &fakeProfiles{participants: []*profile.Profile{
		testProfile(userAlice, "Alice", 300, 0),
		testProfile(userBob, "Bob", 200, 0),
		testProfile(userCarol, "Carol", 100, 0),
	}}
	repo := &fakeBoardRepo{}

	job := NewRebuildLeaderboardJob(profiles, nil, repo, nil, nil, nil, RebuildLeaderboardConfig{
		MaxParticipants: 2,
	}, nil)
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, repo.saved, 1)
	assert.Equal(t, 2, repo.saved[0].TotalUsers)
}

// ──────────────────────────────────────────────────────────────────────────────
// StreakAuditJob
// ──────────────────────────────────────────────────────────────────────────────

func auditSnap(userID shared.UserID, streak int, lastActive time.Time) *ledger.Snapshot {
	return &ledger.Snapshot{
		UserID:         userID,
		Streak:         streak,
		LastActiveDate: lastActive,
	}
}

func TestStreakAudit_ResetsBrokenStreaks(t *testing.T) {
	longAgo := time.Now().UTC().AddDate(0, 0, -5)
	repo := &fakeStreakRepo{broken: []*ledger.Snapshot{
		auditSnap(userAlice, 10, longAgo),
		auditSnap(userBob, 3, longAgo),
	}}
	pub := &fakePublisher{}

	job := NewStreakAuditJob(repo, ledger.ResetToZero, pub, nil)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 2, repo.resetCalls)
	assert.Len(t, pub.eventsOfType(shared.EventStreakBroken), 2)
}

func TestStreakAudit_SkipsConcurrentlyUpdatedUsers(t *testing.T) {
	longAgo := time.Now().UTC().AddDate(0, 0, -3)
	repo := &fakeStreakRepo{
		broken:      []*ledger.Snapshot{auditSnap(userAlice, 5, longAgo)},
		resetDenied: map[shared.UserID]bool{userAlice: true},
	}
	pub := &fakePublisher{}

	job := NewStreakAuditJob(repo, ledger.ResetToZero, pub, nil)
	require.NoError(t, job.Run(context.Background()))

	// The write lost the race with a real activity; no event goes out.
	assert.Empty(t, pub.events)
}

func TestStreakAudit_YesterdayActiveUntouched(t *testing.T) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	repo := &fakeStreakRepo{broken: []*ledger.Snapshot{auditSnap(userAlice, 5, yesterday)}}

	job := NewStreakAuditJob(repo, ledger.ResetToZero, nil, nil)
	require.NoError(t, job.Run(context.Background()))

	assert.Zero(t, repo.resetCalls)
}

// ──────────────────────────────────────────────────────────────────────────────
// CleanupSnapshotsJob
// ──────────────────────────────────────────────────────────────────────────────

func TestCleanupSnapshots_Run(t *testing.T) {
	repo := &fakeBoardRepo{deleted: 4}

	job := NewCleanupSnapshotsJob(repo, 7*24*time.Hour, nil)
	require.NoError(t, job.Run(context.Background()))
}
