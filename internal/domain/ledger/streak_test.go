package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newLedgerWithPolicy(t *testing.T, policy StreakPolicy) *Ledger {
	t.Helper()
	l, err := NewLedger(testUserID, Config{StreakPolicy: policy})
	require.NoError(t, err)
	require.NoError(t, l.HydrateEmpty())
	return l
}

func TestRecordDailyActivity_FirstActivityStartsStreak(t *testing.T) {
	l := newHydratedLedger(t)

	change, err := l.RecordDailyActivity(day(2026, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, change.OldStreak)
	assert.Equal(t, 1, change.NewStreak)
	assert.True(t, change.Continued())
	assert.False(t, change.Broken())
}

func TestRecordDailyActivity_SameDayIsNoOp(t *testing.T) {
	l := newHydratedLedger(t)

	_, err := l.RecordDailyActivity(day(2026, 3, 1))
	require.NoError(t, err)

	// Second sign of activity on the same calendar day changes nothing,
	// regardless of the time of day.
	change, err := l.RecordDailyActivity(time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, change.OldStreak)
	assert.Equal(t, 1, change.NewStreak)
	assert.False(t, change.Continued())
}

func TestRecordDailyActivity_ConsecutiveDays(t *testing.T) {
	l := newHydratedLedger(t)

	for i := 1; i <= 7; i++ {
		change, err := l.RecordDailyActivity(day(2026, 3, i))
		require.NoError(t, err)
		assert.Equal(t, i, change.NewStreak)
	}
}

func TestRecordDailyActivity_MissedDay_ResetToZero(t *testing.T) {
	l := newLedgerWithPolicy(t, ResetToZero)

	_, err := l.RecordDailyActivity(day(2026, 3, 1))
	require.NoError(t, err)
	_, err = l.RecordDailyActivity(day(2026, 3, 2))
	require.NoError(t, err)

	// March 3 is missed, activity resumes March 4.
	change, err := l.RecordDailyActivity(day(2026, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, 2, change.OldStreak)
	assert.Equal(t, 1, change.NewStreak)
	assert.Equal(t, 2, change.DaysMissed)
	assert.True(t, change.Broken())
}

func TestRecordDailyActivity_MissedDay_ResetToOne(t *testing.T) {
	l := newLedgerWithPolicy(t, ResetToOne)

	_, err := l.RecordDailyActivity(day(2026, 3, 1))
	require.NoError(t, err)
	_, err = l.RecordDailyActivity(day(2026, 3, 2))
	require.NoError(t, err)

	change, err := l.RecordDailyActivity(day(2026, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, 2, change.NewStreak)
	assert.True(t, change.Broken())
}

func TestRecordDailyActivity_RejectsEarlierDate(t *testing.T) {
	l := newHydratedLedger(t)

	_, err := l.RecordDailyActivity(day(2026, 3, 10))
	require.NoError(t, err)

	_, err = l.RecordDailyActivity(day(2026, 3, 9))
	assert.ErrorIs(t, err, shared.ErrInvalidStreakDate)

	streak, _ := l.Streak()
	assert.Equal(t, 1, streak)
}

// ──────────────────────────────────────────────────────────────────────────────
// AuditStreak
// ──────────────────────────────────────────────────────────────────────────────

func auditSnapshot(streak int, lastActive time.Time) *Snapshot {
	return &Snapshot{
		UserID:         testUserID,
		Streak:         streak,
		LastActiveDate: lastActive,
	}
}

func TestAuditStreak_YesterdayActivityIsNotBroken(t *testing.T) {
	snap := auditSnapshot(5, day(2026, 3, 1))

	_, broken := AuditStreak(snap, ResetToZero, day(2026, 3, 2))
	assert.False(t, broken)
	assert.Equal(t, 5, snap.Streak)
}

func TestAuditStreak_MissedDayResetsToZero(t *testing.T) {
	snap := auditSnapshot(5, day(2026, 3, 1))

	change, broken := AuditStreak(snap, ResetToZero, day(2026, 3, 3))
	require.True(t, broken)
	assert.Equal(t, 5, change.OldStreak)
	assert.Equal(t, 0, change.NewStreak)
	assert.Equal(t, 2, change.DaysMissed)
	assert.Equal(t, 0, snap.Streak)
}

func TestAuditStreak_ResetToOneKeepsOneDay(t *testing.T) {
	snap := auditSnapshot(5, day(2026, 3, 1))

	change, broken := AuditStreak(snap, ResetToOne, day(2026, 3, 5))
	require.True(t, broken)
	assert.Equal(t, 1, change.NewStreak)
	assert.Equal(t, 1, snap.Streak)
}

func TestAuditStreak_ResetToOneSkipsStreakOfOne(t *testing.T) {
	// The policy base (1) is not below the current streak, nothing to reset.
	snap := auditSnapshot(1, day(2026, 3, 1))

	_, broken := AuditStreak(snap, ResetToOne, day(2026, 3, 5))
	assert.False(t, broken)
	assert.Equal(t, 1, snap.Streak)
}

func TestAuditStreak_NilPolicyDefaultsToZero(t *testing.T) {
	snap := auditSnapshot(3, day(2026, 3, 1))

	change, broken := AuditStreak(snap, nil, day(2026, 3, 4))
	require.True(t, broken)
	assert.Equal(t, 0, change.NewStreak)
}

func TestAuditStreak_DoesNotTouchLastActiveDate(t *testing.T) {
	lastActive := day(2026, 3, 1)
	snap := auditSnapshot(4, lastActive)

	_, broken := AuditStreak(snap, ResetToZero, day(2026, 3, 10))
	require.True(t, broken)

	// The audit does not count activity: only RecordDailyActivity may
	// move the last active date.
	assert.Equal(t, lastActive, snap.LastActiveDate)
}

func TestAuditStreak_ZeroStreakIsNoOp(t *testing.T) {
	snap := auditSnapshot(0, day(2026, 3, 1))

	_, broken := AuditStreak(snap, ResetToZero, day(2026, 3, 10))
	assert.False(t, broken)
}
