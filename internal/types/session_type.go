package types

// SessionType is a tagged variant: the three public session types differ only
// in assembly parameters and completion-time metrics, represented as a small
// table of per-variant constants rather than an inheritance hierarchy.
// "tracking" is an internal alias grouped with standard.
type SessionType string

const (
	SessionStandard      SessionType = "standard"
	SessionTracking      SessionType = "tracking"
	SessionInterviewLike SessionType = "interview-like"
	SessionFullInterview SessionType = "full-interview"
)

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	switch t {
	case SessionStandard, SessionTracking, SessionInterviewLike, SessionFullInterview:
		return true
	}
	return false
}

// IsStandardGroup reports membership in the {standard, tracking} group.
func (t SessionType) IsStandardGroup() bool {
	return t == SessionStandard || t == SessionTracking
}

// IsInterviewGroup reports membership in the {interview-like, full-interview}
// group. Interview types are never compatible with each other across the
// interview-like/full-interview boundary (different timing and hint rules).
func (t SessionType) IsInterviewGroup() bool {
	return t == SessionInterviewLike || t == SessionFullInterview
}

// Compatible reports whether a session of type x satisfies a caller expecting
// type y. Rules: exact match; both in the standard group; or either side is
// plain standard (mixed-standard fallback).
func Compatible(x, y SessionType) bool {
	if x == y {
		return true
	}
	if x.IsStandardGroup() && y.IsStandardGroup() {
		return true
	}
	return x == SessionStandard || y == SessionStandard
}

// SessionProfile holds the per-variant assembly constants.
type SessionProfile struct {
	Length      int // default problem count
	NewProblems int // default cap on the "new" portion
	HintCap     int // hints allowed per problem; 0 = none
	TimedMins   int // soft time budget per problem in minutes; 0 = untimed
}

var sessionProfiles = map[SessionType]SessionProfile{
	SessionStandard:      {Length: 5, NewProblems: 3, HintCap: 3, TimedMins: 0},
	SessionTracking:      {Length: 5, NewProblems: 3, HintCap: 3, TimedMins: 0},
	SessionInterviewLike: {Length: 3, NewProblems: 2, HintCap: 1, TimedMins: 35},
	SessionFullInterview: {Length: 4, NewProblems: 3, HintCap: 0, TimedMins: 45},
}

// ProfileFor returns the variant constants for a session type, falling back
// to the standard profile for unknown types.
func ProfileFor(t SessionType) SessionProfile {
	if p, ok := sessionProfiles[t]; ok {
		return p
	}
	return sessionProfiles[SessionStandard]
}
