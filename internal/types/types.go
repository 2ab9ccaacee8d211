// Package types provides shared type definitions used across leetcoach packages.
// This package exists to break import cycles between the store, the engines,
// and the session lifecycle manager. Types in this package should be
// foundational data structures with no complex dependencies.
package types

import (
	"time"
)

// =============================================================================
// ENUMS
// =============================================================================

// Difficulty classifies a problem.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Rank returns an ordinal for difficulty comparison (Easy < Medium < Hard).
// Unknown difficulties rank above Hard so they never pass a cap filter.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	}
	return 4
}

// Valid reports whether the difficulty is one of the three known levels.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// SessionStatus is the lifecycle state of a session. Completed is terminal.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
)

// SessionOrigin records which surface created a session.
type SessionOrigin string

const (
	OriginGenerator SessionOrigin = "generator"
	OriginTracking  SessionOrigin = "tracking"
)

// SelectionReason annotates each session problem with the assembler pass
// that produced it. Reasons are local and derived, never fetched.
type SelectionReason string

const (
	ReasonReview       SelectionReason = "review"
	ReasonFocus        SelectionReason = "focus"
	ReasonExpansion    SelectionReason = "expansion"
	ReasonPrerequisite SelectionReason = "prerequisite"
	ReasonFallback     SelectionReason = "fallback"
)

// FocusAction is the Focus Coordinator's decision after a completed session.
type FocusAction string

const (
	FocusKeep   FocusAction = "keep"
	FocusExpand FocusAction = "expand"
	FocusNarrow FocusAction = "narrow"
	FocusRotate FocusAction = "rotate"
)

// =============================================================================
// ENTITIES
// =============================================================================

// AttemptStats is the per-problem attempt counter pair.
// Invariant: 0 <= Successful <= Total.
type AttemptStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
}

// SuccessRate returns Successful/Total, 0 when no attempts exist.
func (s AttemptStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total)
}

// Problem is immutable identity plus mutable learning state.
// Learning state (BoxLevel, ReviewSchedule, LastAttemptDate, Stats) is
// mutated only by the attempt engine.
type Problem struct {
	ProblemID  string     `json:"problem_id"`
	LeetCodeID int        `json:"leetcode_id"`
	Title      string     `json:"title"`
	Slug       string     `json:"slug"`
	Difficulty Difficulty `json:"difficulty"`
	Tags       []string   `json:"tags"`

	BoxLevel        int          `json:"box_level"` // 1..7
	ReviewSchedule  time.Time    `json:"review_schedule"`
	LastAttemptDate *time.Time   `json:"last_attempt_date,omitempty"`
	Stats           AttemptStats `json:"attempt_stats"`
}

// HasTag reports whether the problem carries the given tag.
func (p *Problem) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Attempt is an append-only record of one solve attempt.
// Attempts are immutable once written; ordering by AttemptDate is
// authoritative.
type Attempt struct {
	AttemptID         string    `json:"attempt_id"`
	ProblemID         string    `json:"problem_id"`
	SessionID         string    `json:"session_id,omitempty"` // empty for ad-hoc attempts
	AttemptDate       time.Time `json:"attempt_date"`
	Success           bool      `json:"success"`
	TimeSpentSecs     int       `json:"time_spent"`
	HintsUsed         int       `json:"hints_used"`
	BoxLevelAtAttempt int       `json:"box_level_at_attempt"`
	Comments          string    `json:"comments,omitempty"`
}

// SessionProblem is one entry of a session's ordered problem list.
type SessionProblem struct {
	ProblemID  string          `json:"problem_id"`
	LeetCodeID int             `json:"leetcode_id"`
	Title      string          `json:"title"`
	Difficulty Difficulty      `json:"difficulty"`
	Tags       []string        `json:"tags"`
	Reason     SelectionReason `json:"selection_reason"`
}

// Session is mutable until completion. The lifecycle manager is the only
// mutator; once Status is completed, Problems and AttemptIDs are frozen.
type Session struct {
	SessionID           string           `json:"session_id"`
	Type                SessionType      `json:"session_type"`
	Status              SessionStatus    `json:"status"`
	Origin              SessionOrigin    `json:"origin"`
	CreatedAt           time.Time        `json:"created_at"`
	LastActivityTime    time.Time        `json:"last_activity_time"`
	Problems            []SessionProblem `json:"problems"`
	AttemptIDs          []string         `json:"attempts"`
	CurrentProblemIndex int              `json:"current_problem_index"`

	// Completion-only fields; both set iff Status == completed.
	Accuracy        *float64 `json:"accuracy,omitempty"`         // [0,1]
	DurationMinutes *float64 `json:"duration_minutes,omitempty"` // minutes
}

// TagMastery is the derived but persisted per-tag mastery snapshot.
// Fully recomputable from attempts and problems; persisted only as a cache.
type TagMastery struct {
	Tag                string    `json:"tag"`
	TotalAttempts      int       `json:"total_attempts"`
	SuccessfulAttempts int       `json:"successful_attempts"`
	SuccessRate        float64   `json:"success_rate"`
	Mastered           bool      `json:"mastered"`
	DecayScore         float64   `json:"decay_score"` // [0,1]
	LastRecomputedAt   time.Time `json:"last_recomputed_at"`
}

// NeedsReview reports whether a tag should re-enter review rotation.
// Freshness below 0.5 reopens review eligibility even for mastered tags.
func (m TagMastery) NeedsReview() bool {
	return !m.Mastered || m.DecayScore < 0.5
}

// MasteryDelta describes the change of one tag between two mastery snapshots.
type MasteryDelta struct {
	Tag             string  `json:"tag"`
	Type            string  `json:"type"` // "new" or "changed"
	StrengthDelta   int     `json:"strength_delta"`
	DecayDelta      float64 `json:"decay_delta"`
	MasteredChanged bool    `json:"mastered_changed"`
}

// PerformanceSnapshot captures the outcome of the most recent completed
// session, consumed by the focus coordinator.
type PerformanceSnapshot struct {
	Accuracy        float64 `json:"accuracy"`
	EfficiencyScore float64 `json:"efficiency_score"`
}

// SessionStateID is the fixed key of the process-wide singleton record.
const SessionStateID = "session_state"

// SessionState is the process-wide singleton. Created lazily on first
// completion; mutated only by the lifecycle manager and (through it) the
// focus coordinator.
type SessionState struct {
	NumSessionsCompleted int                    `json:"num_sessions_completed"`
	CurrentFocusTags     []string               `json:"current_focus_tags"`
	PerformanceLevel     string                 `json:"performance_level"`
	LastPerformance      PerformanceSnapshot    `json:"last_performance"`
	LastProgressDate     *time.Time             `json:"last_progress_date,omitempty"`
	CurrentDifficultyCap Difficulty             `json:"current_difficulty_cap"`
	SessionLength        int                    `json:"session_length"`
	NumberOfNewProblems  int                    `json:"number_of_new_problems"`
	CurrentAllowedTags   []string               `json:"current_allowed_tags"`
	ActiveSessionIDs     map[SessionType]string `json:"active_session_ids,omitempty"`
}

// NewSessionState returns a zero-value state with initialized maps.
func NewSessionState() *SessionState {
	return &SessionState{
		ActiveSessionIDs: make(map[SessionType]string),
	}
}
