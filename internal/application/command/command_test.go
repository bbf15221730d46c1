package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/profile"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

const testUser = shared.UserID("11111111-1111-1111-1111-111111111111")

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeSnapshots struct {
	snaps   map[shared.UserID]*ledger.Snapshot
	loadErr error
	saveErr error
	saves   int
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
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
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
	if f.profiles == nil {
		f.profiles = make(map[shared.UserID]*profile.Profile)
	}
	f.profiles[p.ID] = p
	return nil
}

func (f *fakeProfileRepo) ListForLeaderboard(ctx context.Context, limit int) ([]*profile.Profile, error) {
	return nil, nil
}

type fakeDeduper struct {
	seen     map[string]bool
	err      error
	released []string
}

func newFakeDeduper() *fakeDeduper { return &fakeDeduper{seen: make(map[string]bool)} }

func (f *fakeDeduper) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

func (f *fakeDeduper) Release(ctx context.Context, eventID string) error {
	delete(f.seen, eventID)
	f.released = append(f.released, eventID)
	return nil
}

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) has(et shared.EventType) bool {
	for _, e := range p.events {
		if e.EventType() == et {
			return true
		}
	}
	return false
}

func newAddPointsFixture(snaps *fakeSnapshots) (*AddPointsHandler, *capturingPublisher) {
	pub := &capturingPublisher{}
	sessions := NewLedgerSessions(snaps, ledger.DefaultConfig())
	h := NewAddPointsHandler(sessions, &fakeProfileRepo{}, newFakeDeduper(), pub)
	return h, pub
}

func addCmd(amount int, eventID string) AddPointsCommand {
	return AddPointsCommand{
		UserID:   testUser,
		Amount:   amount,
		Source:   "task",
		SourceID: "task-1",
		EventID:  eventID,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// AddPoints
// ──────────────────────────────────────────────────────────────────────────────

func TestAddPoints_CreditsNewUser(t *testing.T) {
	snaps := newFakeSnapshots()
	h, pub := newAddPointsFixture(snaps)

	result, err := h.Handle(context.Background(), addCmd(120, "evt-1"))
	require.NoError(t, err)

	assert.Equal(t, 0, result.OldPoints.Int())
	assert.Equal(t, 120, result.NewPoints.Int())
	assert.False(t, result.LeveledUp)
	assert.False(t, result.Deduplicated)
	assert.Equal(t, 1, snaps.saves)
	assert.True(t, pub.has(shared.EventPointsAdded))
	assert.False(t, pub.has(shared.EventLevelUp))
}

func TestAddPoints_LevelUpOnBoundary(t *testing.T) {
	snaps := newFakeSnapshots()
	snaps.snaps[testUser] = &ledger.Snapshot{UserID: testUser, Points: 450}
	h, pub := newAddPointsFixture(snaps)

	result, err := h.Handle(context.Background(), addCmd(100, "evt-1"))
	require.NoError(t, err)

	assert.Equal(t, 550, result.NewPoints.Int())
	assert.True(t, result.LeveledUp)
	assert.True(t, pub.has(shared.EventLevelUp))
}

func TestAddPoints_ReplayedEventIsNoOp(t *testing.T) {
	snaps := newFakeSnapshots()
	h, _ := newAddPointsFixture(snaps)

	_, err := h.Handle(context.Background(), addCmd(50, "evt-dup"))
	require.NoError(t, err)

	result, err := h.Handle(context.Background(), addCmd(50, "evt-dup"))
	require.NoError(t, err)

	assert.True(t, result.Deduplicated)
	assert.Equal(t, 50, snaps.snaps[testUser].Points)
	assert.Equal(t, 1, snaps.saves)
}

func TestAddPoints_RejectsNegativeBalance(t *testing.T) {
	snaps := newFakeSnapshots()
	snaps.snaps[testUser] = &ledger.Snapshot{UserID: testUser, Points: 30}
	h, _ := newAddPointsFixture(snaps)

	_, err := h.Handle(context.Background(), addCmd(-50, "evt-1"))
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	assert.Zero(t, snaps.saves)
}

func TestAddPoints_RequiresEventID(t *testing.T) {
	h, _ := newAddPointsFixture(newFakeSnapshots())

	cmd := addCmd(10, "")
	_, err := h.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestAddPoints_WriteThroughFailureDiverges(t *testing.T) {
	snaps := newFakeSnapshots()
	snaps.saveErr = errors.New("connection reset")
	h, pub := newAddPointsFixture(snaps)

	_, err := h.Handle(context.Background(), addCmd(10, "evt-1"))
	assert.ErrorIs(t, err, shared.ErrPersistenceDiverged)
	assert.True(t, pub.has(shared.EventPersistenceFailed))
}

func TestAddPoints_RetryAfterDivergenceCredits(t *testing.T) {
	snaps := newFakeSnapshots()
	snaps.saveErr = errors.New("connection reset")
	h, _ := newAddPointsFixture(snaps)

	_, err := h.Handle(context.Background(), addCmd(80, "evt-1"))
	require.ErrorIs(t, err, shared.ErrPersistenceDiverged)

	// Storage recovers; the retry of the same logical event must credit,
	// not be swallowed as a replay of a reward that never landed.
	snaps.saveErr = nil
	result, err := h.Handle(context.Background(), addCmd(80, "evt-1"))
	require.NoError(t, err)

	assert.False(t, result.Deduplicated)
	assert.Equal(t, 80, result.NewPoints.Int())
	require.NotNil(t, snaps.snaps[testUser])
	assert.Equal(t, 80, snaps.snaps[testUser].Points)
}

func TestAddPoints_RejectionFreesEventID(t *testing.T) {
	snaps := newFakeSnapshots()
	snaps.snaps[testUser] = &ledger.Snapshot{UserID: testUser, Points: 30}
	pub := &capturingPublisher{}
	deduper := newFakeDeduper()
	h := NewAddPointsHandler(NewLedgerSessions(snaps, ledger.DefaultConfig()), &fakeProfileRepo{}, deduper, pub)

	_, err := h.Handle(context.Background(), addCmd(-50, "evt-1"))
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
	assert.Equal(t, []string{"evt-1"}, deduper.released)

	// A corrected amount under the same event id goes through.
	result, err := h.Handle(context.Background(), addCmd(-20, "evt-1"))
	require.NoError(t, err)
	assert.Equal(t, 10, result.NewPoints.Int())
}

func TestAddPoints_SyncsProfileColumns(t *testing.T) {
	snaps := newFakeSnapshots()
	pub := &capturingPublisher{}
	profiles := &fakeProfileRepo{profiles: map[shared.UserID]*profile.Profile{
		testUser: {ID: testUser, FullName: "Alice", Role: shared.RoleStudent},
	}}
	sessions := NewLedgerSessions(snaps, ledger.DefaultConfig())
	h := NewAddPointsHandler(sessions, profiles, newFakeDeduper(), pub)

	_, err := h.Handle(context.Background(), addCmd(75, "evt-1"))
	require.NoError(t, err)

	assert.Equal(t, 75, profiles.profiles[testUser].Points.Int())
}

// ──────────────────────────────────────────────────────────────────────────────
// LedgerSessions
// ──────────────────────────────────────────────────────────────────────────────

func TestSessions_LoadNewUserHydratesEmpty(t *testing.T) {
	sessions := NewLedgerSessions(newFakeSnapshots(), ledger.DefaultConfig())

	l, isNew, err := sessions.Load(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, isNew)

	points, err := l.Points()
	require.NoError(t, err)
	assert.Equal(t, 0, points.Int())
}

func TestSessions_LoadFailureIsNotANewUser(t *testing.T) {
	snaps := newFakeSnapshots()
	snaps.loadErr = errors.New("timeout")
	sessions := NewLedgerSessions(snaps, ledger.DefaultConfig())

	_, _, err := sessions.Load(context.Background(), testUser)
	assert.ErrorIs(t, err, shared.ErrHydrationFailed)
}

// ──────────────────────────────────────────────────────────────────────────────
// RecordActivity
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordActivity_StartsAndContinuesStreak(t *testing.T) {
	snaps := newFakeSnapshots()
	pub := &capturingPublisher{}
	h := NewRecordActivityHandler(NewLedgerSessions(snaps, ledger.DefaultConfig()), pub)

	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	result, err := h.Handle(context.Background(), RecordActivityCommand{UserID: testUser, ActivityAt: day1})
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewStreak)
	assert.True(t, result.StreakUpdated)

	result, err = h.Handle(context.Background(), RecordActivityCommand{UserID: testUser, ActivityAt: day1.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, 2, result.NewStreak)
	assert.True(t, pub.has(shared.EventStreakUpdated))
}

func TestRecordActivity_SameDayRepeatDoesNotPersist(t *testing.T) {
	snaps := newFakeSnapshots()
	h := NewRecordActivityHandler(NewLedgerSessions(snaps, ledger.DefaultConfig()), &capturingPublisher{})

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := h.Handle(context.Background(), RecordActivityCommand{UserID: testUser, ActivityAt: at})
	require.NoError(t, err)
	require.Equal(t, 1, snaps.saves)

	result, err := h.Handle(context.Background(), RecordActivityCommand{UserID: testUser, ActivityAt: at.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.False(t, result.StreakUpdated)
	assert.Equal(t, 1, snaps.saves)
}

func TestRecordActivity_MissedDayEmitsStreakBroken(t *testing.T) {
	snaps := newFakeSnapshots()
	snaps.snaps[testUser] = &ledger.Snapshot{
		UserID:         testUser,
		Streak:         4,
		LastActiveDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	pub := &capturingPublisher{}
	h := NewRecordActivityHandler(NewLedgerSessions(snaps, ledger.DefaultConfig()), pub)

	result, err := h.Handle(context.Background(), RecordActivityCommand{
		UserID:     testUser,
		ActivityAt: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.True(t, result.StreakBroken)
	assert.Equal(t, 2, result.DaysMissed)
	assert.True(t, pub.has(shared.EventStreakBroken))
}
