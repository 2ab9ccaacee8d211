// Package focus decides the active focus tags after each completed session
// from recent performance and the latest mastery snapshot.
package focus

import (
	"sort"

	"leetcoach/internal/logging"
	"leetcoach/internal/types"
)

const (
	// At most five focus tags at a time.
	maxFocusTags = 5

	// Fewer than three completed sessions keeps the user in onboarding.
	onboardingSessions = 3

	expandAccuracy = 0.8
	narrowAccuracy = 0.5
)

// Decision is the coordinator's output, applied by the lifecycle manager to
// SessionState.
type Decision struct {
	Action           types.FocusAction
	NextFocusTags    []string
	PerformanceLevel string
}

// Coordinator implements the focus policy. It is pure: no store access, no
// clock.
type Coordinator struct{}

// New returns a focus coordinator.
func New() *Coordinator { return &Coordinator{} }

// Decide computes the next focus set. state carries the previous performance
// and focus tags; perf is the just-completed session's performance; snap is
// the freshly recomputed mastery snapshot.
func (c *Coordinator) Decide(state *types.SessionState, perf types.PerformanceSnapshot, snap map[string]types.TagMastery) Decision {
	switch {
	case state.NumSessionsCompleted < onboardingSessions:
		// Onboarding: clamp to the single lowest-mastery unmastered tag
		// from the user's tier.
		tags := unmasteredTags(snap, state.CurrentAllowedTags)
		next := state.CurrentFocusTags
		if len(tags) > 0 {
			next = tags[:1]
		} else if len(next) > 1 {
			next = next[:1]
		}
		return decision(types.FocusNarrow, next, "onboarding")

	case perf.Accuracy >= expandAccuracy && perf.Accuracy >= state.LastPerformance.Accuracy:
		next := appendNextUnmastered(state.CurrentFocusTags, snap, state.CurrentAllowedTags)
		if len(next) == len(state.CurrentFocusTags) && len(next) > 1 {
			// Nothing left to add: rotate so a different tag leads the
			// assembler's tag-matched pass.
			rotated := append(append([]string(nil), next[1:]...), next[0])
			return decision(types.FocusRotate, rotated, "advancing")
		}
		return decision(types.FocusExpand, next, "advancing")

	case perf.Accuracy < narrowAccuracy:
		return decision(types.FocusNarrow, weakestOf(state.CurrentFocusTags, snap), "struggling")

	default:
		return decision(types.FocusKeep, state.CurrentFocusTags, "steady")
	}
}

func decision(action types.FocusAction, tags []string, level string) Decision {
	if len(tags) > maxFocusTags {
		tags = tags[:maxFocusTags]
	}
	logging.FocusDebug("Focus decision: action=%s tags=%v level=%s", action, tags, level)
	return Decision{Action: action, NextFocusTags: tags, PerformanceLevel: level}
}

// unmasteredTags returns tier tags needing review, weakest first (lowest
// success rate, then fewer attempts, then lexical).
func unmasteredTags(snap map[string]types.TagMastery, tier []string) []string {
	candidates := tier
	if len(candidates) == 0 {
		candidates = make([]string, 0, len(snap))
		for tag := range snap {
			candidates = append(candidates, tag)
		}
		sort.Strings(candidates)
	}

	var out []string
	for _, tag := range candidates {
		m, ok := snap[tag]
		if !ok || m.NeedsReview() {
			out = append(out, tag)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := snap[out[i]], snap[out[j]]
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate < b.SuccessRate
		}
		if a.TotalAttempts != b.TotalAttempts {
			return a.TotalAttempts < b.TotalAttempts
		}
		return out[i] < out[j]
	})
	return out
}

// appendNextUnmastered adds the weakest unmastered tier tag not already in
// focus, capped at maxFocusTags.
func appendNextUnmastered(current []string, snap map[string]types.TagMastery, tier []string) []string {
	if len(current) >= maxFocusTags {
		return current
	}
	inFocus := make(map[string]bool, len(current))
	for _, tag := range current {
		inFocus[tag] = true
	}
	for _, tag := range unmasteredTags(snap, tier) {
		if !inFocus[tag] {
			return append(append([]string(nil), current...), tag)
		}
	}
	return current
}

// weakestOf keeps only the single weakest focus tag. Tags absent from the
// snapshot count as weakest.
func weakestOf(current []string, snap map[string]types.TagMastery) []string {
	if len(current) == 0 {
		return current
	}
	weakest := current[0]
	for _, tag := range current[1:] {
		a, aok := snap[tag]
		b, bok := snap[weakest]
		switch {
		case !aok && bok:
			weakest = tag
		case aok && bok && a.SuccessRate < b.SuccessRate:
			weakest = tag
		}
	}
	return []string{weakest}
}
