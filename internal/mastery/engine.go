// Package mastery derives per-tag mastery from attempts and problems. The
// snapshot is a pure function of those inputs; the tag_mastery table is only
// a persisted cache of the latest recompute.
package mastery

import (
	"context"
	"math"
	"sort"
	"time"

	"leetcoach/internal/clock"
	"leetcoach/internal/logging"
	"leetcoach/internal/types"
)

const (
	// A tag is mastered at 10+ attempts with an 85%+ success rate.
	masteredMinAttempts = 10
	masteredMinRate     = 0.85

	// Decay window in days: decay = exp(-days_since_last_attempt / 30).
	decayWindowDays = 30.0

	// Deltas below this decay magnitude are noise.
	deltaEpsilon = 1e-4
)

// Engine is the tag mastery engine.
type Engine struct {
	problems types.ProblemReader
	attempts types.AttemptStore
	cache    types.MasteryStore
	clock    clock.Clock
}

// NewEngine wires a mastery engine.
func NewEngine(problems types.ProblemReader, attempts types.AttemptStore, cache types.MasteryStore, clk clock.Clock) *Engine {
	return &Engine{problems: problems, attempts: attempts, cache: cache, clock: clk}
}

// DecayScore returns exp(-days_since/30) clamped to [0,1].
func DecayScore(lastAttempt, now time.Time) float64 {
	days := now.Sub(lastAttempt).Hours() / 24
	if days < 0 {
		days = 0
	}
	score := math.Exp(-days / decayWindowDays)
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// Snapshot computes the mastery map from attempts and problems without
// touching the cache. Given equal inputs, two invocations produce equal
// outputs.
func (e *Engine) Snapshot(ctx context.Context) (map[string]types.TagMastery, error) {
	timer := logging.StartTimer(logging.CategoryMastery, "Snapshot")
	defer timer.Stop()

	problems, err := e.problems.ListProblems(ctx)
	if err != nil {
		return nil, err
	}
	attempts, err := e.attempts.AllAttempts(ctx)
	if err != nil {
		return nil, err
	}

	tagsByProblem := make(map[string][]string, len(problems))
	for _, p := range problems {
		tagsByProblem[p.ProblemID] = p.Tags
	}

	now := e.clock.Now()
	snapshot := make(map[string]types.TagMastery)
	lastByTag := make(map[string]time.Time)

	for _, a := range attempts {
		for _, tag := range tagsByProblem[a.ProblemID] {
			m := snapshot[tag]
			m.Tag = tag
			m.TotalAttempts++
			if a.Success {
				m.SuccessfulAttempts++
			}
			snapshot[tag] = m
			if a.AttemptDate.After(lastByTag[tag]) {
				lastByTag[tag] = a.AttemptDate
			}
		}
	}

	for tag, m := range snapshot {
		m.SuccessRate = float64(m.SuccessfulAttempts) / float64(m.TotalAttempts)
		m.Mastered = m.TotalAttempts >= masteredMinAttempts && m.SuccessRate >= masteredMinRate
		m.DecayScore = DecayScore(lastByTag[tag], now)
		m.LastRecomputedAt = now
		snapshot[tag] = m
	}

	logging.MasteryDebug("Snapshot computed: %d tags from %d attempts", len(snapshot), len(attempts))
	return snapshot, nil
}

// Recompute refreshes the persisted cache from a fresh snapshot and returns
// it.
func (e *Engine) Recompute(ctx context.Context) (map[string]types.TagMastery, error) {
	timer := logging.StartTimer(logging.CategoryMastery, "Recompute")
	defer timer.Stop()

	snapshot, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]types.TagMastery, 0, len(snapshot))
	for _, m := range snapshot {
		rows = append(rows, m)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Tag < rows[j].Tag })

	if err := e.cache.ReplaceTagMastery(ctx, rows); err != nil {
		return nil, err
	}

	logging.Mastery("Mastery cache recomputed: %d tags", len(rows))
	return snapshot, nil
}

// Cached returns the persisted snapshot without recomputing.
func (e *Engine) Cached(ctx context.Context) (map[string]types.TagMastery, error) {
	return e.cache.AllTagMastery(ctx)
}

// Deltas compares two snapshots. Tags new in post emit a "new" delta with
// strength = post total and decay relative to 1.0. Unchanged tags (zero
// strength delta, sub-epsilon decay delta, same mastery) are dropped.
func Deltas(pre, post map[string]types.TagMastery) []types.MasteryDelta {
	var deltas []types.MasteryDelta

	tags := make([]string, 0, len(post))
	for tag := range post {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		after := post[tag]
		before, existed := pre[tag]
		if !existed {
			deltas = append(deltas, types.MasteryDelta{
				Tag:           tag,
				Type:          "new",
				StrengthDelta: after.TotalAttempts,
				DecayDelta:    after.DecayScore - 1.0,
			})
			continue
		}

		d := types.MasteryDelta{
			Tag:             tag,
			Type:            "changed",
			StrengthDelta:   after.TotalAttempts - before.TotalAttempts,
			DecayDelta:      after.DecayScore - before.DecayScore,
			MasteredChanged: before.Mastered != after.Mastered,
		}
		if d.StrengthDelta == 0 && math.Abs(d.DecayDelta) < deltaEpsilon && !d.MasteredChanged {
			continue
		}
		deltas = append(deltas, d)
	}

	return deltas
}
