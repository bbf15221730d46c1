package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRewardDeduper_ClaimAndReplay(t *testing.T) {
	d := NewMemoryRewardDeduper()
	ctx := context.Background()

	fresh, err := d.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = d.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestMemoryRewardDeduper_ReleaseMakesEventRetryable(t *testing.T) {
	d := NewMemoryRewardDeduper()
	ctx := context.Background()

	fresh, err := d.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	require.True(t, fresh)

	require.NoError(t, d.Release(ctx, "evt-1"))

	fresh, err = d.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestMemoryRewardDeduper_ExpiredMarkerIsFresh(t *testing.T) {
	d := NewMemoryRewardDeduper()
	d.seen["evt-1"] = time.Now().Add(-time.Minute)

	fresh, err := d.MarkProcessed(context.Background(), "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)
}
