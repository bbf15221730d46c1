package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression_Wildcard(t *testing.T) {
	ce, err := ParseCronExpression(EveryMinute)
	require.NoError(t, err)

	assert.Len(t, ce.minutes, 60)
	assert.Len(t, ce.hours, 24)
	assert.Len(t, ce.days, 31)
	assert.Len(t, ce.months, 12)
	assert.Len(t, ce.weekdays, 7)
}

func TestParseCronExpression_Steps(t *testing.T) {
	ce, err := ParseCronExpression("*/15 * * * *")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 15, 30, 45}, ce.minutes)
}

func TestParseCronExpression_RangeAndList(t *testing.T) {
	ce, err := ParseCronExpression("0 9-11 * * 1,3,5")
	require.NoError(t, err)

	assert.Equal(t, []int{9, 10, 11}, ce.hours)
	assert.Equal(t, []int{1, 3, 5}, ce.weekdays)
}

func TestParseCronExpression_Invalid(t *testing.T) {
	cases := []string{
		"",
		"* * * *",
		"61 * * * *",
		"* 25 * * *",
		"*/x * * * *",
	}
	for _, expr := range cases {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, "expression %q", expr)
	}
}

func TestCronExpression_NextDaily(t *testing.T) {
	ce := MustParseCronExpression(EveryDay3AM)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC), ce.Next(now))

	beforeBoundary := time.Date(2026, 3, 1, 2, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), ce.Next(beforeBoundary))
}

func TestCronExpression_NextSkipsToMonday(t *testing.T) {
	ce := MustParseCronExpression(EveryMonday)

	// 2026-03-01 is a Sunday.
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	next := ce.Next(now)

	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), next)
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestCronExpression_NextStartsFromFollowingMinute(t *testing.T) {
	ce := MustParseCronExpression(EveryMinute)

	now := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 31, 0, 0, time.UTC), ce.Next(now))
}

func TestCronExpression_String(t *testing.T) {
	ce := MustParseCronExpression(Every5Minutes)
	assert.Equal(t, "*/5 * * * *", ce.String())
}
