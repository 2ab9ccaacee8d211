package types

import (
	"context"
	"time"
)

// Narrow store-port contracts. The SQLite LocalStore implements all of them;
// each consumer declares only the slice it needs so tests can substitute
// minimal fakes.

// ProblemReader is the read side of the problem catalogue.
type ProblemReader interface {
	GetProblem(ctx context.Context, problemID string) (*Problem, error)
	GetProblemByLeetCodeID(ctx context.Context, leetcodeID int) (*Problem, error)
	ListProblems(ctx context.Context) ([]*Problem, error)
	CountByBoxLevel(ctx context.Context) (map[int]int, error)
}

// ProblemWriter is the write side of the problem catalogue. Only the attempt
// engine updates learning state; PutProblem exists for catalogue import.
type ProblemWriter interface {
	PutProblem(ctx context.Context, p *Problem) error
}

// AttemptWrite couples the attempt insert with the problem learning-state
// update; the store applies both in one readwrite transaction.
type AttemptWrite struct {
	Attempt         Attempt
	ProblemID       string
	NewBoxLevel     int
	NextReview      time.Time
	LastAttemptDate time.Time
	Stats           AttemptStats
}

// AttemptStore persists and reads attempts.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, w AttemptWrite) error
	AttemptsByProblem(ctx context.Context, problemID string) ([]*Attempt, error)
	AttemptsBySession(ctx context.Context, sessionID string) ([]*Attempt, error)
	AllAttempts(ctx context.Context) ([]*Attempt, error)
	MostRecentAttempt(ctx context.Context, problemID string) (*Attempt, error)
}

// SessionStore persists sessions. CreateSession atomically seals any sibling
// in_progress session of the same type in the same transaction when asked;
// ReplaceSession deletes the old record and inserts the new one atomically.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	PutSession(ctx context.Context, s *Session) error
	CreateSession(ctx context.Context, s *Session, sealSameType bool) error
	ReplaceSession(ctx context.Context, oldSessionID string, s *Session) error
	DeleteSession(ctx context.Context, sessionID string) error
	InProgressSessions(ctx context.Context) ([]*Session, error)
	InProgressSessionByType(ctx context.Context, t SessionType) (*Session, error)
}

// MasteryStore persists the tag mastery cache.
type MasteryStore interface {
	AllTagMastery(ctx context.Context) (map[string]TagMastery, error)
	ReplaceTagMastery(ctx context.Context, rows []TagMastery) error
}

// StateStore persists the session_state singleton. GetSessionState returns a
// NotFound error before the first completion.
type StateStore interface {
	GetSessionState(ctx context.Context) (*SessionState, error)
	PutSessionState(ctx context.Context, st *SessionState) error
}

// ActionStore appends telemetry records. Best-effort: callers log and ignore
// failures.
type ActionStore interface {
	RecordAction(ctx context.Context, kind string, payload interface{}) error
}
