package focus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"leetcoach/internal/types"
)

func snapshot(rows ...types.TagMastery) map[string]types.TagMastery {
	m := make(map[string]types.TagMastery, len(rows))
	for _, r := range rows {
		m[r.Tag] = r
	}
	return m
}

func mastered(tag string) types.TagMastery {
	return types.TagMastery{Tag: tag, TotalAttempts: 12, SuccessfulAttempts: 11, SuccessRate: 11.0 / 12.0, Mastered: true, DecayScore: 0.9}
}

func weak(tag string, rate float64) types.TagMastery {
	return types.TagMastery{Tag: tag, TotalAttempts: 6, SuccessRate: rate, DecayScore: 0.9}
}

func TestDecideOnboardingNarrowsToWeakestTag(t *testing.T) {
	c := New()
	state := &types.SessionState{
		NumSessionsCompleted: 1,
		CurrentFocusTags:     []string{"array", "dp"},
		CurrentAllowedTags:   []string{"array", "dp", "graphs"},
	}
	snap := snapshot(weak("array", 0.7), weak("dp", 0.3), mastered("graphs"))

	d := c.Decide(state, types.PerformanceSnapshot{Accuracy: 0.9}, snap)

	assert.Equal(t, types.FocusNarrow, d.Action)
	assert.Equal(t, []string{"dp"}, d.NextFocusTags)
	assert.Equal(t, "onboarding", d.PerformanceLevel)
}

func TestDecideExpandOnSustainedAccuracy(t *testing.T) {
	c := New()
	state := &types.SessionState{
		NumSessionsCompleted: 5,
		CurrentFocusTags:     []string{"array"},
		CurrentAllowedTags:   []string{"array", "dp", "graphs"},
		LastPerformance:      types.PerformanceSnapshot{Accuracy: 0.75},
	}
	snap := snapshot(weak("array", 0.8), weak("dp", 0.4), weak("graphs", 0.6))

	d := c.Decide(state, types.PerformanceSnapshot{Accuracy: 0.85}, snap)

	assert.Equal(t, types.FocusExpand, d.Action)
	assert.Equal(t, []string{"array", "dp"}, d.NextFocusTags, "weakest unmastered tag joins the focus set")
	assert.Equal(t, "advancing", d.PerformanceLevel)
}

func TestDecideRegressionBlocksExpansion(t *testing.T) {
	c := New()
	state := &types.SessionState{
		NumSessionsCompleted: 5,
		CurrentFocusTags:     []string{"array"},
		CurrentAllowedTags:   []string{"array", "dp"},
		LastPerformance:      types.PerformanceSnapshot{Accuracy: 0.95},
	}
	snap := snapshot(weak("array", 0.8), weak("dp", 0.4))

	// 0.85 accuracy is above the expand bar but below the previous session.
	d := c.Decide(state, types.PerformanceSnapshot{Accuracy: 0.85}, snap)

	assert.Equal(t, types.FocusKeep, d.Action)
	assert.Equal(t, []string{"array"}, d.NextFocusTags)
	assert.Equal(t, "steady", d.PerformanceLevel)
}

func TestDecideNarrowOnStruggle(t *testing.T) {
	c := New()
	state := &types.SessionState{
		NumSessionsCompleted: 5,
		CurrentFocusTags:     []string{"array", "dp", "graphs"},
	}
	snap := snapshot(weak("array", 0.7), weak("dp", 0.2), weak("graphs", 0.5))

	d := c.Decide(state, types.PerformanceSnapshot{Accuracy: 0.4}, snap)

	assert.Equal(t, types.FocusNarrow, d.Action)
	assert.Equal(t, []string{"dp"}, d.NextFocusTags, "only the weakest focus tag survives")
	assert.Equal(t, "struggling", d.PerformanceLevel)
}

func TestDecideKeepInTheMiddle(t *testing.T) {
	c := New()
	state := &types.SessionState{
		NumSessionsCompleted: 5,
		CurrentFocusTags:     []string{"dp"},
	}

	d := c.Decide(state, types.PerformanceSnapshot{Accuracy: 0.65}, snapshot(weak("dp", 0.5)))

	assert.Equal(t, types.FocusKeep, d.Action)
	assert.Equal(t, []string{"dp"}, d.NextFocusTags)
}

func TestDecideRotateWhenNothingLeftToAdd(t *testing.T) {
	c := New()
	state := &types.SessionState{
		NumSessionsCompleted: 5,
		CurrentFocusTags:     []string{"array", "dp"},
		CurrentAllowedTags:   []string{"array", "dp"},
		LastPerformance:      types.PerformanceSnapshot{Accuracy: 0.8},
	}
	// Both tier tags already in focus: expansion has nothing to pull in.
	snap := snapshot(weak("array", 0.6), weak("dp", 0.5))

	d := c.Decide(state, types.PerformanceSnapshot{Accuracy: 0.9}, snap)

	assert.Equal(t, types.FocusRotate, d.Action)
	assert.Equal(t, []string{"dp", "array"}, d.NextFocusTags)
}

func TestDecideFocusCapped(t *testing.T) {
	c := New()
	state := &types.SessionState{
		NumSessionsCompleted: 5,
		CurrentFocusTags:     []string{"a", "b", "c", "d", "e"},
		CurrentAllowedTags:   []string{"a", "b", "c", "d", "e", "f"},
		LastPerformance:      types.PerformanceSnapshot{Accuracy: 0.5},
	}
	snap := snapshot(weak("a", 0.5), weak("b", 0.5), weak("c", 0.5),
		weak("d", 0.5), weak("e", 0.5), weak("f", 0.3))

	d := c.Decide(state, types.PerformanceSnapshot{Accuracy: 0.9}, snap)
	assert.LessOrEqual(t, len(d.NextFocusTags), 5)
}
