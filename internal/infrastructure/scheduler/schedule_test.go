package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(10 * time.Minute)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(10*time.Minute), s.Next(now))
	assert.Equal(t, "@every 10m0s", s.String())
}

func TestDailySchedule_NextSameDay(t *testing.T) {
	s := NewDailySchedule(23, 30)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next := s.Next(now)

	assert.Equal(t, time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC), next)
}

func TestDailySchedule_NextRollsToTomorrow(t *testing.T) {
	s := NewDailySchedule(0, 5)

	now := time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC)
	next := s.Next(now)

	// The boundary already passed, exactly-at-boundary included.
	assert.Equal(t, time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC), next)
}

func TestDailySchedule_NextAcrossMonthEnd(t *testing.T) {
	s := NewDailySchedule(0, 5)

	now := time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC), s.Next(now))
}

func TestDailySchedule_ClampsInvalidValues(t *testing.T) {
	s := NewDailySchedule(25, -3)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), s.Next(now))
}

func TestDailySchedule_NormalizesToUTC(t *testing.T) {
	s := NewDailySchedule(6, 0)

	// 23:00 UTC expressed in a +05:00 zone: next boundary is 06:00 UTC tomorrow.
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2026, 3, 2, 4, 0, 0, 0, loc)

	next := s.Next(now)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC), next)
}
