package mastery

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leetcoach/internal/clock"
	"leetcoach/internal/store"
	"leetcoach/internal/types"
)

func newTestEngine(t *testing.T) (*Engine, *store.LocalStore, *clock.Fake) {
	t.Helper()
	s, err := store.NewLocalStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewEngine(s, s, s, clk), s, clk
}

func seedAttempts(t *testing.T, s *store.LocalStore, clk *clock.Fake, problemID string, leetcodeID int, tags []string, successes, failures int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.PutProblem(ctx, &types.Problem{
		ProblemID:      problemID,
		LeetCodeID:     leetcodeID,
		Title:          "Problem " + problemID,
		Difficulty:     types.DifficultyMedium,
		Tags:           tags,
		BoxLevel:       1,
		ReviewSchedule: clk.Now(),
	}))

	total, ok := 0, 0
	record := func(success bool) {
		total++
		if success {
			ok++
		}
		write := types.AttemptWrite{
			Attempt: types.Attempt{
				AttemptID:   problemID + "-" + string(rune('a'+total)),
				ProblemID:   problemID,
				AttemptDate: clk.Now(),
				Success:     success,
			},
			ProblemID:       problemID,
			NewBoxLevel:     1,
			NextReview:      clk.Now(),
			LastAttemptDate: clk.Now(),
			Stats:           types.AttemptStats{Total: total, Successful: ok},
		}
		require.NoError(t, s.RecordAttempt(ctx, write))
	}
	for i := 0; i < successes; i++ {
		record(true)
	}
	for i := 0; i < failures; i++ {
		record(false)
	}
}

func TestDecayScore(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1.0, DecayScore(now, now))
	assert.InDelta(t, math.Exp(-1), DecayScore(now.Add(-30*24*time.Hour), now), 1e-9)
	assert.InDelta(t, math.Exp(-0.5), DecayScore(now.Add(-15*24*time.Hour), now), 1e-9)

	// A future-dated last attempt clamps to full freshness.
	assert.Equal(t, 1.0, DecayScore(now.Add(time.Hour), now))
}

func TestSnapshotAggregatesByTag(t *testing.T) {
	e, s, clk := newTestEngine(t)
	ctx := context.Background()

	seedAttempts(t, s, clk, "p1", 1, []string{"array", "hash-table"}, 3, 1)
	seedAttempts(t, s, clk, "p2", 2, []string{"array"}, 2, 0)

	snap, err := e.Snapshot(ctx)
	require.NoError(t, err)

	require.Contains(t, snap, "array")
	require.Contains(t, snap, "hash-table")

	array := snap["array"]
	assert.Equal(t, 6, array.TotalAttempts)
	assert.Equal(t, 5, array.SuccessfulAttempts)
	assert.InDelta(t, 5.0/6.0, array.SuccessRate, 1e-9)
	assert.False(t, array.Mastered)

	ht := snap["hash-table"]
	assert.Equal(t, 4, ht.TotalAttempts)
	assert.Equal(t, 3, ht.SuccessfulAttempts)
}

func TestSnapshotIsPure(t *testing.T) {
	e, s, clk := newTestEngine(t)
	ctx := context.Background()
	seedAttempts(t, s, clk, "p1", 1, []string{"dp"}, 2, 2)

	first, err := e.Snapshot(ctx)
	require.NoError(t, err)
	second, err := e.Snapshot(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Snapshot not stable (-first +second):\n%s", diff)
	}
}

func TestMasteryThreshold(t *testing.T) {
	e, s, clk := newTestEngine(t)
	ctx := context.Background()

	// 9/10 success over 10 attempts: exactly at the attempt floor, 90% rate.
	seedAttempts(t, s, clk, "p1", 1, []string{"array"}, 9, 1)
	snap, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap["array"].Mastered)

	// 8/10: rate 80%, below the 85% bar.
	seedAttempts(t, s, clk, "p2", 2, []string{"dp"}, 8, 2)
	snap, err = e.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, snap["dp"].Mastered)
}

func TestRecomputePersistsCache(t *testing.T) {
	e, s, clk := newTestEngine(t)
	ctx := context.Background()
	seedAttempts(t, s, clk, "p1", 1, []string{"graphs"}, 1, 0)

	snap, err := e.Recompute(ctx)
	require.NoError(t, err)
	require.Contains(t, snap, "graphs")

	cached, err := e.Cached(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap["graphs"].TotalAttempts, cached["graphs"].TotalAttempts)
	assert.Equal(t, snap["graphs"].Mastered, cached["graphs"].Mastered)
}

func TestDeltas(t *testing.T) {
	pre := map[string]types.TagMastery{
		"array": {Tag: "array", TotalAttempts: 5, DecayScore: 0.9},
		"dp":    {Tag: "dp", TotalAttempts: 3, DecayScore: 0.8, Mastered: false},
	}
	post := map[string]types.TagMastery{
		"array":  {Tag: "array", TotalAttempts: 5, DecayScore: 0.9},               // unchanged, dropped
		"dp":     {Tag: "dp", TotalAttempts: 4, DecayScore: 0.95, Mastered: true}, // changed
		"graphs": {Tag: "graphs", TotalAttempts: 2, DecayScore: 1.0},              // new
	}

	deltas := Deltas(pre, post)
	require.Len(t, deltas, 2)

	// Sorted by tag: dp before graphs.
	assert.Equal(t, "dp", deltas[0].Tag)
	assert.Equal(t, "changed", deltas[0].Type)
	assert.Equal(t, 1, deltas[0].StrengthDelta)
	assert.True(t, deltas[0].MasteredChanged)

	assert.Equal(t, "graphs", deltas[1].Tag)
	assert.Equal(t, "new", deltas[1].Type)
	assert.Equal(t, 2, deltas[1].StrengthDelta)
	assert.InDelta(t, 0.0, deltas[1].DecayDelta, 1e-9)
}

func TestDeltasDropSubEpsilonDecayNoise(t *testing.T) {
	pre := map[string]types.TagMastery{
		"array": {Tag: "array", TotalAttempts: 5, DecayScore: 0.90000},
	}
	post := map[string]types.TagMastery{
		"array": {Tag: "array", TotalAttempts: 5, DecayScore: 0.90005},
	}
	assert.Empty(t, Deltas(pre, post))
}

func TestNeedsReviewOnStaleMastery(t *testing.T) {
	fresh := types.TagMastery{Mastered: true, DecayScore: 0.9}
	stale := types.TagMastery{Mastered: true, DecayScore: 0.4}
	weak := types.TagMastery{Mastered: false, DecayScore: 1.0}

	assert.False(t, fresh.NeedsReview())
	assert.True(t, stale.NeedsReview())
	assert.True(t, weak.NeedsReview())
}
