package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/profile"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

const testUser = shared.UserID("22222222-2222-2222-2222-222222222222")

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeSnapshots struct {
	snaps   map[shared.UserID]*ledger.Snapshot
	loadErr error
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{snaps: make(map[shared.UserID]*ledger.Snapshot)}
}

func (f *fakeSnapshots) Load(ctx context.Context, userID shared.UserID) (*ledger.Snapshot, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	snap, ok := f.snaps[userID]
	if !ok {
		return nil, shared.ErrSnapshotNotFound
	}
	cp := *snap
	return &cp, nil
}

func (f *fakeSnapshots) Save(ctx context.Context, snap *ledger.Snapshot) error {
	cp := *snap
	f.snaps[snap.UserID] = &cp
	return nil
}

type fakeProfileRepo struct {
	profiles map[shared.UserID]*profile.Profile
}

func (f *fakeProfileRepo) FindByID(ctx context.Context, id shared.UserID) (*profile.Profile, error) {
	if p, ok := f.profiles[id]; ok {
		return p, nil
	}
	return nil, shared.ErrProfileNotFound
}

func (f *fakeProfileRepo) Save(ctx context.Context, p *profile.Profile) error {
	f.profiles[p.ID] = p
	return nil
}

func (f *fakeProfileRepo) ListForLeaderboard(ctx context.Context, limit int) ([]*profile.Profile, error) {
	return nil, nil
}

type fakeTaskRepo struct {
	completed    int
	completedErr error
}

func (f *fakeTaskRepo) FindByID(ctx context.Context, id shared.ContentID) (*content.Task, error) {
	return nil, shared.ErrNotFound
}

func (f *fakeTaskRepo) List(ctx context.Context) ([]content.Task, error) { return nil, nil }

func (f *fakeTaskRepo) RecordSubmission(ctx context.Context, sub *content.Submission) error {
	return nil
}

func (f *fakeTaskRepo) CountCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	return f.completed, f.completedErr
}

func (f *fakeTaskRepo) ListUnsynced(ctx context.Context, limit int) ([]content.Submission, error) {
	return nil, nil
}

func (f *fakeTaskRepo) MarkSynced(ctx context.Context, ids []string) error { return nil }

func newProgressFixture(snaps *fakeSnapshots, tasks *fakeTaskRepo) *GetProgressHandler {
	profiles := &fakeProfileRepo{profiles: map[shared.UserID]*profile.Profile{
		testUser: {ID: testUser, FullName: "Aruzhan", Role: shared.RoleStudent},
	}}
	return NewGetProgressHandler(profiles, snaps, tasks, ledger.DefaultConfig())
}

// ──────────────────────────────────────────────────────────────────────────────
// GetProgress
// ──────────────────────────────────────────────────────────────────────────────

func TestGetProgress_NewUserRendersZeroDashboard(t *testing.T) {
	h := newProgressFixture(newFakeSnapshots(), &fakeTaskRepo{})

	result, err := h.Handle(context.Background(), GetProgressQuery{UserID: testUser})
	require.NoError(t, err)

	assert.True(t, result.IsNew)
	assert.Equal(t, "Aruzhan", result.DisplayName)
	assert.Equal(t, 0, result.Points)
	assert.Equal(t, 1, result.Level)
	assert.Equal(t, 0, result.Streak)
	assert.Zero(t, result.BadgeCount)
	assert.Empty(t, result.RecentBadges)
	assert.Equal(t, shared.PointsPerLevel, result.LevelProgress.PointsToNext)
	assert.Equal(t, 0, result.LevelProgress.Percent)
}

func TestGetProgress_DerivesLevelFromSnapshot(t *testing.T) {
	snaps := newFakeSnapshots()
	snaps.snaps[testUser] = &ledger.Snapshot{
		UserID: testUser,
		Points: 750,
		Streak: 3,
		Badges: []ledger.Badge{
			{ID: "first-steps", Name: "First Steps", Tier: shared.TierBronze, UnlockedAt: time.Now().Add(-time.Hour)},
			{ID: "eco-warrior", Name: "Eco Warrior", Tier: shared.TierSilver, UnlockedAt: time.Now()},
		},
	}
	h := newProgressFixture(snaps, &fakeTaskRepo{completed: 7})

	result, err := h.Handle(context.Background(), GetProgressQuery{UserID: testUser, BadgeLimit: 1})
	require.NoError(t, err)

	assert.False(t, result.IsNew)
	assert.Equal(t, 750, result.Points)
	assert.Equal(t, 2, result.Level)
	assert.Equal(t, 3, result.Streak)
	assert.Equal(t, 7, result.TasksCompleted)
	assert.Equal(t, 2, result.BadgeCount)
	require.Len(t, result.RecentBadges, 1)
	assert.Equal(t, "eco-warrior", result.RecentBadges[0].ID)
	assert.Equal(t, 250, result.LevelProgress.PointsIntoLevel)
	assert.Equal(t, 50, result.LevelProgress.Percent)
}

func TestGetProgress_SnapshotFetchFailureIsNotANewUser(t *testing.T) {
	snaps := newFakeSnapshots()
	snaps.loadErr = errors.New("timeout")
	h := newProgressFixture(snaps, &fakeTaskRepo{})

	_, err := h.Handle(context.Background(), GetProgressQuery{UserID: testUser})
	assert.ErrorIs(t, err, shared.ErrHydrationFailed)
}

func TestGetProgress_CompletionCountFailureDegrades(t *testing.T) {
	h := newProgressFixture(newFakeSnapshots(), &fakeTaskRepo{completedErr: errors.New("offline store busy")})

	result, err := h.Handle(context.Background(), GetProgressQuery{UserID: testUser})
	require.NoError(t, err)
	assert.Zero(t, result.TasksCompleted)
}

func TestGetProgress_RequiresUserID(t *testing.T) {
	h := newProgressFixture(newFakeSnapshots(), &fakeTaskRepo{})

	_, err := h.Handle(context.Background(), GetProgressQuery{})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}
