package session

import (
	"context"

	"leetcoach/internal/logging"
	"leetcoach/internal/mastery"
	"leetcoach/internal/types"
)

// Progress is needed every three days to keep the progress date fresh.
const progressAccuracy = 0.8

// completionResult is the shared singleflight payload for one session id.
type completionResult struct {
	remaining []types.SessionProblem
	found     bool
}

// CheckAndCompleteSession verifies whether every problem of the session has a
// matching attempt and completes it if so. Idempotent: a second call on a
// completed session returns an empty remaining list without rerunning the
// pipeline. Concurrent calls for the same session share one evaluation.
//
// Returns the remaining (unattempted) problems, whether the session exists,
// and any hard error.
func (m *Manager) CheckAndCompleteSession(ctx context.Context, sessionID string) ([]types.SessionProblem, bool, error) {
	v, err, _ := m.completeGroup.Do("complete:"+sessionID, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, completionTimeout)
		defer cancel()
		return m.checkAndComplete(ctx, sessionID)
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(completionResult)
	return res.remaining, res.found, nil
}

func (m *Manager) checkAndComplete(ctx context.Context, sessionID string) (completionResult, error) {
	timer := logging.StartTimer(logging.CategorySession, "CheckAndCompleteSession")
	defer timer.Stop()

	sess, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return completionResult{found: false}, nil
		}
		return completionResult{}, err
	}
	if sess.Status == types.StatusCompleted {
		return completionResult{remaining: []types.SessionProblem{}, found: true}, nil
	}

	attempts, err := m.attempts.AttemptsBySession(ctx, sessionID)
	if err != nil {
		return completionResult{}, err
	}

	// Attempts reference problems by internal id; session problems carry the
	// external id. Resolve through the catalogue once.
	leetcodeByProblem, err := m.leetcodeIndex(ctx)
	if err != nil {
		return completionResult{}, err
	}

	attempted := make(map[int]bool, len(attempts))
	attemptIDs := make([]string, 0, len(attempts))
	for _, a := range attempts {
		attemptIDs = append(attemptIDs, a.AttemptID)
		if id, ok := leetcodeByProblem[a.ProblemID]; ok {
			attempted[id] = true
		}
	}

	var remaining []types.SessionProblem
	for _, p := range sess.Problems {
		if p.LeetCodeID <= 0 {
			// Corrupt entry: no attempt can ever match it, so the session
			// would stay open forever. Seal it with zero accuracy instead.
			logging.Get(logging.CategorySession).Error(
				"checkAndComplete: session %s carries invalid leetcode_id for problem %q, force-completing",
				sessionID, p.ProblemID)
			m.seal(ctx, sess, attemptIDs, 0, 0)
			return completionResult{remaining: []types.SessionProblem{}, found: true},
				types.NewError(types.KindInvariantViolation,
					"session %s had an invalid problem entry and was force-completed", sessionID)
		}
		if !attempted[p.LeetCodeID] {
			remaining = append(remaining, p)
		}
	}

	if len(remaining) > 0 {
		// Not done yet: sync the attempt list and bump activity.
		sess.AttemptIDs = attemptIDs
		sess.LastActivityTime = m.clock.Now()
		if err := m.sessions.PutSession(ctx, sess); err != nil {
			return completionResult{}, err
		}
		logging.SessionDebug("checkAndComplete: session %s has %d problems remaining", sessionID, len(remaining))
		return completionResult{remaining: remaining, found: true}, nil
	}

	accuracy, duration := summarize(attempts)
	if err := m.seal(ctx, sess, attemptIDs, accuracy, duration); err != nil {
		return completionResult{}, err
	}

	m.runCompletionPipeline(ctx, sess, attempts, accuracy)

	logging.Session("Session completed: %s (accuracy=%.2f, duration=%.1fm)", sessionID, accuracy, duration)
	return completionResult{remaining: []types.SessionProblem{}, found: true}, nil
}

// seal marks a session completed with its summary stats.
func (m *Manager) seal(ctx context.Context, sess *types.Session, attemptIDs []string, accuracy, duration float64) error {
	sess.Status = types.StatusCompleted
	sess.AttemptIDs = attemptIDs
	sess.Accuracy = &accuracy
	sess.DurationMinutes = &duration
	sess.LastActivityTime = m.clock.Now()
	if err := m.sessions.PutSession(ctx, sess); err != nil {
		return err
	}
	m.setActiveSession(ctx, sess.Type, "")
	return nil
}

// summarize derives accuracy and duration from the session's attempts.
// Accuracy counts attempts, not problems: three attempts with two successes
// is 2/3 even on a two-problem session.
func summarize(attempts []*types.Attempt) (accuracy, durationMinutes float64) {
	if len(attempts) == 0 {
		return 0, 0
	}
	successes := 0
	totalSecs := 0
	for _, a := range attempts {
		if a.Success {
			successes++
		}
		totalSecs += a.TimeSpentSecs
	}
	return float64(successes) / float64(len(attempts)), float64(totalSecs) / 60
}

// runCompletionPipeline recomputes mastery, consults the focus coordinator,
// and advances SessionState. The session is already sealed; nothing here may
// fail the completion, so every error is logged and swallowed.
func (m *Manager) runCompletionPipeline(ctx context.Context, sess *types.Session, attempts []*types.Attempt, accuracy float64) {
	pre, err := m.mastery.Cached(ctx)
	if err != nil {
		logging.SessionWarn("completion pipeline: cached mastery unavailable: %v", err)
		pre = map[string]types.TagMastery{}
	}

	post, err := m.mastery.Recompute(ctx)
	if err != nil {
		logging.Get(logging.CategorySession).Error("completion pipeline: mastery recompute failed: %v", err)
		post = pre
	}

	deltas := mastery.Deltas(pre, post)
	logging.SessionDebug("completion pipeline: %d mastery deltas for session %s", len(deltas), sess.SessionID)

	perf := types.PerformanceSnapshot{
		Accuracy:        accuracy,
		EfficiencyScore: efficiencyScore(accuracy, attempts),
	}

	st := m.loadStateOrZero(ctx)
	prev := st.LastPerformance

	cfg := m.settings()
	if cfg.Flexible() {
		m.applyFocus(st, perf, post)
	}

	st.NumSessionsCompleted++
	st.LastPerformance = perf
	if accuracy >= progressAccuracy || accuracy >= prev.Accuracy {
		today := m.clock.Today()
		st.LastProgressDate = &today
	}
	if st.ActiveSessionIDs != nil {
		delete(st.ActiveSessionIDs, sess.Type)
	}

	if err := m.state.PutSessionState(ctx, st); err != nil {
		logging.Get(logging.CategorySession).Error("completion pipeline: state save failed: %v", err)
	}

	m.recordAction(ctx, "session_completed", map[string]interface{}{
		"session_id": sess.SessionID,
		"type":       string(sess.Type),
		"accuracy":   accuracy,
		"deltas":     len(deltas),
	})
}

// applyFocus runs the coordinator and applies its decision. A panic here must
// not undo the completion, so it is recovered and logged as a focus failure.
func (m *Manager) applyFocus(st *types.SessionState, perf types.PerformanceSnapshot, snap map[string]types.TagMastery) {
	defer func() {
		if r := recover(); r != nil {
			err := types.NewError(types.KindFocusDecisionFailed, "focus decision panicked: %v", r)
			logging.Get(logging.CategoryFocus).Error("%v", err)
		}
	}()

	d := m.focus.Decide(st, perf, snap)
	st.CurrentFocusTags = d.NextFocusTags
	st.PerformanceLevel = d.PerformanceLevel
	logging.Focus("Focus %s: tags=%v level=%s", d.Action, d.NextFocusTags, d.PerformanceLevel)
}

// efficiencyScore discounts accuracy by hint reliance: heavy hint usage on a
// short session drags the score toward zero.
func efficiencyScore(accuracy float64, attempts []*types.Attempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	hints := 0
	for _, a := range attempts {
		hints += a.HintsUsed
	}
	penalty := float64(hints) / float64(2*len(attempts))
	if penalty > 1 {
		penalty = 1
	}
	return accuracy * (1 - penalty)
}

// leetcodeIndex maps internal problem ids to external leetcode ids.
func (m *Manager) leetcodeIndex(ctx context.Context) (map[string]int, error) {
	problems, err := m.problems.ListProblems(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(problems))
	for _, p := range problems {
		idx[p.ProblemID] = p.LeetCodeID
	}
	return idx, nil
}
