package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTracker_CountsAndLimits(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker(Config{MonthlyLimit: 3, WarnThreshold: 1, Location: time.UTC})
	tracker.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }

	status, err := tracker.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-10", status.Month)
	assert.Equal(t, 0, status.Used)
	assert.True(t, status.Allowed)

	for i := 0; i < 2; i++ {
		_, err = tracker.Increment(ctx)
		require.NoError(t, err)
	}

	status, err = tracker.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Used)
	assert.Equal(t, 1, status.Remaining)
	assert.Equal(t, "이번 달 남은 사용량: 1회", status.Message)

	status, err = tracker.Increment(ctx)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, 100, status.Percentage)
}

func TestMemoryTracker_ResetsOnNewMonth(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 31, 23, 59, 0, 0, time.UTC)

	tracker := NewMemoryTracker(Config{Location: time.UTC})
	tracker.now = func() time.Time { return now }

	_, err := tracker.Increment(ctx)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)

	status, err := tracker.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-11", status.Month)
	assert.Equal(t, 0, status.Used)
	assert.Equal(t, DefaultMonthlyLimit, status.Remaining)
}

func TestMemoryTracker_UsesLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	tracker := NewMemoryTracker(Config{Location: seoul})
	tracker.now = func() time.Time { return time.Date(2026, 10, 31, 16, 0, 0, 0, time.UTC) }

	status, err := tracker.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-11", status.Month)
}

func TestMemoryTracker_Concurrent(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker(Config{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tracker.Increment(ctx)
		}()
	}
	wg.Wait()

	status, err := tracker.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, status.Used)
}
