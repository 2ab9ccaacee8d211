// Package attempt records solve attempts and maintains each problem's
// spaced-repetition learning state. It is the only writer of attempts and of
// problem box levels, review schedules, and attempt statistics.
package attempt

import (
	"context"

	"github.com/google/uuid"

	"leetcoach/internal/clock"
	"leetcoach/internal/logging"
	"leetcoach/internal/types"
)

// Engine is the attempt engine.
type Engine struct {
	problems types.ProblemReader
	attempts types.AttemptStore
	clock    clock.Clock
}

// NewEngine wires an attempt engine.
func NewEngine(problems types.ProblemReader, attempts types.AttemptStore, clk clock.Clock) *Engine {
	return &Engine{problems: problems, attempts: attempts, clock: clk}
}

// Input describes one attempt to record. Exactly one of ProblemID or
// LeetCodeID must identify the problem.
type Input struct {
	ProblemID     string
	LeetCodeID    int
	SessionID     string // empty for ad-hoc attempts
	Success       bool
	TimeSpentSecs int
	HintsUsed     int
	Comments      string
}

// CompletionHint tells the lifecycle manager whether this attempt may have
// completed a session.
type CompletionHint struct {
	SessionID   string
	ShouldCheck bool
}

// AddAttempt writes the attempt and updates the problem's learning state in
// one readwrite transaction. Returns the written attempt and a completion
// hint. A missing problem yields a NotFound error; the caller recovers, it is
// not fatal.
func (e *Engine) AddAttempt(ctx context.Context, in Input) (*types.Attempt, CompletionHint, error) {
	timer := logging.StartTimer(logging.CategoryAttempt, "AddAttempt")
	defer timer.Stop()

	problem, err := e.resolveProblem(ctx, in)
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			logging.AttemptDebug("AddAttempt: problem not found (problem_id=%q leetcode_id=%d)", in.ProblemID, in.LeetCodeID)
			return nil, CompletionHint{}, types.NewError(types.KindNotFound, "Problem not found")
		}
		return nil, CompletionHint{}, err
	}

	now := e.clock.Now()
	attemptDate := now // time skew: a future-dated attempt clamps to now()

	boxBefore := problem.BoxLevel
	if boxBefore < MinBoxLevel {
		// No prior attempts: treat as box 1 for the purpose of the rule.
		boxBefore = MinBoxLevel
	}
	newBox := NextBoxLevel(boxBefore, in.Success)

	stats := problem.Stats
	stats.Total++
	if in.Success {
		stats.Successful++
	}

	a := types.Attempt{
		AttemptID:         uuid.NewString(),
		ProblemID:         problem.ProblemID,
		SessionID:         in.SessionID,
		AttemptDate:       attemptDate,
		Success:           in.Success,
		TimeSpentSecs:     in.TimeSpentSecs,
		HintsUsed:         in.HintsUsed,
		BoxLevelAtAttempt: boxBefore,
		Comments:          in.Comments,
	}

	write := types.AttemptWrite{
		Attempt:         a,
		ProblemID:       problem.ProblemID,
		NewBoxLevel:     newBox,
		NextReview:      attemptDate.Add(IntervalFor(newBox)),
		LastAttemptDate: attemptDate,
		Stats:           stats,
	}

	if err := e.attempts.RecordAttempt(ctx, write); err != nil {
		logging.Get(logging.CategoryAttempt).Error("AddAttempt: record failed for %s: %v", problem.ProblemID, err)
		return nil, CompletionHint{}, err
	}

	logging.Attempt("Attempt recorded: problem=%d success=%v box %d -> %d next_review=%s",
		problem.LeetCodeID, in.Success, boxBefore, newBox, write.NextReview.Format("2006-01-02"))

	hint := CompletionHint{SessionID: in.SessionID, ShouldCheck: in.SessionID != ""}
	return &a, hint, nil
}

// GetAttemptsByProblem returns a problem's attempts, oldest first.
func (e *Engine) GetAttemptsByProblem(ctx context.Context, problemID string) ([]*types.Attempt, error) {
	return e.attempts.AttemptsByProblem(ctx, problemID)
}

// GetAllAttempts returns every attempt, oldest first.
func (e *Engine) GetAllAttempts(ctx context.Context) ([]*types.Attempt, error) {
	return e.attempts.AllAttempts(ctx)
}

// GetMostRecentAttempt returns the latest attempt, optionally scoped to one
// problem.
func (e *Engine) GetMostRecentAttempt(ctx context.Context, problemID string) (*types.Attempt, error) {
	return e.attempts.MostRecentAttempt(ctx, problemID)
}

func (e *Engine) resolveProblem(ctx context.Context, in Input) (*types.Problem, error) {
	if in.ProblemID != "" {
		return e.problems.GetProblem(ctx, in.ProblemID)
	}
	return e.problems.GetProblemByLeetCodeID(ctx, in.LeetCodeID)
}
