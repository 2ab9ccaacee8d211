// Package review selects the problems due for review today under tier and
// tag constraints.
package review

import (
	"context"
	"sort"
	"time"

	"leetcoach/internal/attempt"
	"leetcoach/internal/clock"
	"leetcoach/internal/logging"
	"leetcoach/internal/mastery"
	"leetcoach/internal/types"
)

// LearningState carries the tag context the scheduler and assembler select
// against. TierTags is SessionState.current_allowed_tags; with no tier the
// gate is closed and nothing is review-eligible, so a cold start fills
// sessions through the new and fallback passes instead. UnmasteredTags is
// ordered and includes mastered tags whose freshness dropped below the
// review floor.
type LearningState struct {
	TierTags       []string
	UnmasteredTags []string
	FocusTags      []string
}

// Scheduler is the review scheduler.
type Scheduler struct {
	problems types.ProblemReader
	clock    clock.Clock
}

// NewScheduler wires a review scheduler.
func NewScheduler(problems types.ProblemReader, clk clock.Clock) *Scheduler {
	return &Scheduler{problems: problems, clock: clk}
}

// DailyReviewSchedule returns up to budget review-due problems inside the
// tier: one per unmastered tag first, then due problems by ascending review
// date. An empty tier yields an empty schedule. On any store error it returns
// an empty list, never a partial one; the assembler compensates with its
// fallback pass.
func (s *Scheduler) DailyReviewSchedule(ctx context.Context, budget int, ls LearningState) []*types.Problem {
	timer := logging.StartTimer(logging.CategoryScheduler, "DailyReviewSchedule")
	defer timer.Stop()

	if budget <= 0 {
		return nil
	}
	if len(ls.TierTags) == 0 {
		logging.SchedulerDebug("DailyReviewSchedule: no tier tags, nothing eligible")
		return nil
	}

	problems, err := s.problems.ListProblems(ctx)
	if err != nil {
		logging.Get(logging.CategoryScheduler).Error("DailyReviewSchedule: catalogue fetch failed: %v", err)
		return nil
	}

	now := s.clock.Now()

	var due []*types.Problem
	for _, p := range problems {
		if !p.ReviewSchedule.After(now) || !attempt.RecentlyAttempted(p.LastAttemptDate, p.BoxLevel, true, now) {
			if inTier(p, ls.TierTags) {
				due = append(due, p)
			}
		}
	}

	SortCandidates(due, now)

	picked := make([]*types.Problem, 0, budget)
	seen := make(map[string]bool)

	// Tag-matched pass: one unique problem per unmastered tag, in order.
	for _, tag := range ls.UnmasteredTags {
		if len(picked) >= budget {
			break
		}
		for _, p := range due {
			if seen[p.ProblemID] || !p.HasTag(tag) {
				continue
			}
			picked = append(picked, p)
			seen[p.ProblemID] = true
			break
		}
	}

	// Filler pass: remaining due problems by ascending review date.
	for _, p := range due {
		if len(picked) >= budget {
			break
		}
		if seen[p.ProblemID] {
			continue
		}
		picked = append(picked, p)
		seen[p.ProblemID] = true
	}

	logging.SchedulerDebug("DailyReviewSchedule: %d due, %d picked (budget %d)", len(due), len(picked), budget)
	return picked
}

// inTier reports whether every tag of p is inside the tier. An empty tier
// admits nothing.
func inTier(p *types.Problem, tierTags []string) bool {
	if len(tierTags) == 0 {
		return false
	}
	tier := make(map[string]bool, len(tierTags))
	for _, t := range tierTags {
		tier[t] = true
	}
	for _, tag := range p.Tags {
		if !tier[tag] {
			return false
		}
	}
	return len(p.Tags) > 0
}

// SortCandidates orders problems by the review tie-break: earlier review
// date wins; within equal dates, fewer total attempts wins; finally the
// higher decay-weighted score wins. The assembler's fallback pass uses the
// same order.
func SortCandidates(due []*types.Problem, now time.Time) {
	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if !a.ReviewSchedule.Equal(b.ReviewSchedule) {
			return a.ReviewSchedule.Before(b.ReviewSchedule)
		}
		if a.Stats.Total != b.Stats.Total {
			return a.Stats.Total < b.Stats.Total
		}
		return decayWeightedScore(a, now) > decayWeightedScore(b, now)
	})
}

// decayWeightedScore prioritizes stale, weakly-held problems: staleness
// (1 - decay of the last attempt) weighted by the failure rate. A problem
// never attempted scores maximal staleness.
func decayWeightedScore(p *types.Problem, now time.Time) float64 {
	staleness := 1.0
	if p.LastAttemptDate != nil {
		staleness = 1 - mastery.DecayScore(*p.LastAttemptDate, now)
	}
	return staleness * (1 - p.Stats.SuccessRate())
}
