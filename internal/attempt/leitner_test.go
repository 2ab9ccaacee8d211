package attempt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBoxLevel(t *testing.T) {
	tests := []struct {
		name    string
		current int
		success bool
		want    int
	}{
		{"success promotes", 1, true, 2},
		{"success from middle", 4, true, 5},
		{"success saturates at top", 7, true, 7},
		{"failure demotes", 5, false, 4},
		{"failure saturates at bottom", 1, false, 1},
		{"zero clamps to box 1 first", 0, true, 2},
		{"overflow clamps to box 7 first", 9, false, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextBoxLevel(tt.current, tt.success))
		})
	}
}

func TestIntervalFor(t *testing.T) {
	day := 24 * time.Hour
	assert.Equal(t, time.Duration(0), IntervalFor(1))
	assert.Equal(t, 1*day, IntervalFor(2))
	assert.Equal(t, 2*day, IntervalFor(3))
	assert.Equal(t, 4*day, IntervalFor(4))
	assert.Equal(t, 7*day, IntervalFor(5))
	assert.Equal(t, 14*day, IntervalFor(6))
	assert.Equal(t, 30*day, IntervalFor(7))

	// Out-of-range levels clamp.
	assert.Equal(t, time.Duration(0), IntervalFor(0))
	assert.Equal(t, 30*day, IntervalFor(12))
}

func TestRecentlyAttempted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("never attempted is never recent", func(t *testing.T) {
		assert.False(t, RecentlyAttempted(nil, 5, true, now))
	})

	t.Run("relaxed window is half the interval", func(t *testing.T) {
		// Box 5 interval is 7 days; relaxed window 3.5 days.
		threeDaysAgo := now.Add(-3 * 24 * time.Hour)
		fourDaysAgo := now.Add(-4 * 24 * time.Hour)
		assert.True(t, RecentlyAttempted(&threeDaysAgo, 5, true, now))
		assert.False(t, RecentlyAttempted(&fourDaysAgo, 5, true, now))
	})

	t.Run("strict window is the full interval", func(t *testing.T) {
		fourDaysAgo := now.Add(-4 * 24 * time.Hour)
		eightDaysAgo := now.Add(-8 * 24 * time.Hour)
		assert.True(t, RecentlyAttempted(&fourDaysAgo, 5, false, now))
		assert.False(t, RecentlyAttempted(&eightDaysAgo, 5, false, now))
	})

	t.Run("box 1 has no window", func(t *testing.T) {
		justNow := now.Add(-time.Minute)
		assert.False(t, RecentlyAttempted(&justNow, 1, true, now))
	})
}
