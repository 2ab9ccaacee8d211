// Package assembler builds the problem list for a new session by mixing
// review-due problems with new problems under difficulty caps and tag focus,
// with a deterministic fallback so a session is never short.
package assembler

import (
	"context"
	"sort"

	"leetcoach/internal/clock"
	"leetcoach/internal/logging"
	"leetcoach/internal/review"
	"leetcoach/internal/types"
)

// Settings are the assembly parameters for one session.
type Settings struct {
	SessionLength       int
	NumberOfNewProblems int
	AllowedTags         []string
	DifficultyCap       types.Difficulty
	ReviewRatio         int // percent, 0..80
	MinReviewRatio      int // percent floor; below it a warning is logged
}

// Assembler is the session assembler.
type Assembler struct {
	problems  types.ProblemReader
	sessions  types.SessionStore
	scheduler *review.Scheduler
	clock     clock.Clock
}

// New wires a session assembler.
func New(problems types.ProblemReader, sessions types.SessionStore, scheduler *review.Scheduler, clk clock.Clock) *Assembler {
	return &Assembler{problems: problems, sessions: sessions, scheduler: scheduler, clock: clk}
}

// Assemble produces the ordered problem list for a new session. Passes run
// in a deterministic order: review, new, fallback. Selection reasons are
// derived locally from the pass that produced each problem.
func (a *Assembler) Assemble(ctx context.Context, settings Settings, ls review.LearningState) ([]types.SessionProblem, error) {
	timer := logging.StartTimer(logging.CategoryAssembler, "Assemble")
	defer timer.Stop()

	length := settings.SessionLength
	if length <= 0 {
		return nil, nil
	}

	excludeIDs, err := a.inFlightLeetCodeIDs(ctx)
	if err != nil {
		return nil, err
	}

	// Integer arithmetic keeps the ratio exact: 40% of n is (n*40)/100.
	reviewTarget := (length * settings.ReviewRatio) / 100

	reviewPicks := a.scheduler.DailyReviewSchedule(ctx, reviewTarget, ls)

	var out []types.SessionProblem
	seen := make(map[string]bool)
	for _, p := range reviewPicks {
		if seen[p.ProblemID] || excludeIDs[p.LeetCodeID] {
			continue
		}
		seen[p.ProblemID] = true
		out = append(out, toSessionProblem(p, types.ReasonReview))
	}
	reviewCount := len(out)

	catalogue, err := a.problems.ListProblems(ctx)
	if err != nil {
		logging.Get(logging.CategoryAssembler).Error("Assemble: catalogue fetch failed: %v", err)
		return nil, err
	}

	// New pass: never-attempted problems under the difficulty cap with at
	// least one allowed tag, capped by number_of_new_problems.
	newNeeded := length - len(out)
	if newNeeded > settings.NumberOfNewProblems {
		newNeeded = settings.NumberOfNewProblems
	}
	if newNeeded > 0 {
		for _, p := range sortedNewCandidates(catalogue, settings, excludeIDs, seen) {
			if newNeeded == 0 {
				break
			}
			seen[p.ProblemID] = true
			out = append(out, toSessionProblem(p, newReason(p, ls.FocusTags)))
			newNeeded--
		}
	}

	// Fallback pass: anything left in the catalogue, in review-priority
	// order, until the session is full.
	if len(out) < length {
		now := a.clock.Now()
		var rest []*types.Problem
		for _, p := range catalogue {
			if seen[p.ProblemID] || excludeIDs[p.LeetCodeID] {
				continue
			}
			rest = append(rest, p)
		}
		review.SortCandidates(rest, now)
		for _, p := range rest {
			if len(out) >= length {
				break
			}
			seen[p.ProblemID] = true
			out = append(out, toSessionProblem(p, types.ReasonFallback))
		}
	}

	if len(out) > length {
		out = out[:length]
	}

	if settings.MinReviewRatio > 0 && len(out) > 0 &&
		reviewCount*100 < settings.MinReviewRatio*len(out) {
		logging.AssemblerWarn("Assemble: review proportion %d/%d below floor %d%%",
			reviewCount, len(out), settings.MinReviewRatio)
	}

	logging.Assembler("Assembled session: %d problems (%d review, target %d)",
		len(out), reviewCount, reviewTarget)
	return out, nil
}

// inFlightLeetCodeIDs collects the leetcode ids bound to any in_progress
// session, which must not be re-selected.
func (a *Assembler) inFlightLeetCodeIDs(ctx context.Context) (map[int]bool, error) {
	active, err := a.sessions.InProgressSessions(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[int]bool)
	for _, sess := range active {
		for _, p := range sess.Problems {
			ids[p.LeetCodeID] = true
		}
	}
	return ids, nil
}

// sortedNewCandidates filters the catalogue for the new pass and orders it
// deterministically by external id.
func sortedNewCandidates(catalogue []*types.Problem, settings Settings, excludeIDs map[int]bool, seen map[string]bool) []*types.Problem {
	var candidates []*types.Problem
	for _, p := range catalogue {
		if seen[p.ProblemID] || excludeIDs[p.LeetCodeID] {
			continue
		}
		if p.Stats.Total > 0 {
			continue
		}
		if settings.DifficultyCap.Valid() && p.Difficulty.Rank() > settings.DifficultyCap.Rank() {
			continue
		}
		if !hasAllowedTag(p, settings.AllowedTags) {
			continue
		}
		candidates = append(candidates, p)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LeetCodeID < candidates[j].LeetCodeID
	})
	return candidates
}

// hasAllowedTag reports whether at least one tag is allowed. An empty allow
// list passes everything.
func hasAllowedTag(p *types.Problem, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, tag := range allowed {
		if p.HasTag(tag) {
			return true
		}
	}
	return false
}

// newReason distinguishes focus picks from expansion picks within the new
// pass.
func newReason(p *types.Problem, focusTags []string) types.SelectionReason {
	for _, tag := range focusTags {
		if p.HasTag(tag) {
			return types.ReasonFocus
		}
	}
	return types.ReasonExpansion
}

func toSessionProblem(p *types.Problem, reason types.SelectionReason) types.SessionProblem {
	return types.SessionProblem{
		ProblemID:  p.ProblemID,
		LeetCodeID: p.LeetCodeID,
		Title:      p.Title,
		Difficulty: p.Difficulty,
		Tags:       append([]string(nil), p.Tags...),
		Reason:     reason,
	}
}
