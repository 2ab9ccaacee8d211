// Package bridge exposes the scheduler's operations behind a uniform
// request/response envelope. Callers submit a kind plus a JSON payload and
// get back either a result or a typed error; no internal error ever crosses
// the boundary untranslated.
package bridge

import (
	"context"
	"encoding/json"

	"leetcoach/internal/attempt"
	"leetcoach/internal/logging"
	"leetcoach/internal/mastery"
	"leetcoach/internal/review"
	"leetcoach/internal/session"
	"leetcoach/internal/types"
)

// Request kinds.
const (
	KindAddAttempt              = "addAttempt"
	KindGetSession              = "getSession"
	KindResumeSession           = "resumeSession"
	KindGetOrCreateSession      = "getOrCreateSession"
	KindRefreshSession          = "refreshSession"
	KindCheckAndCompleteSession = "checkAndCompleteSession"
	KindSkipProblem             = "skipProblem"
	KindGetTagMastery           = "getTagMastery"
	KindGetProblemsByBoxLevel   = "getProblemsByBoxLevel"
	KindGetDailyReviewSchedule  = "getDailyReviewSchedule"
)

// Request is the inbound envelope.
type Request struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorBody is the wire form of a typed error.
type ErrorBody struct {
	Kind    types.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

// Response is the outbound envelope: exactly one of Result or Error is set.
type Response struct {
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

// Bridge dispatches requests to the engines.
type Bridge struct {
	attempts  *attempt.Engine
	sessions  *session.Manager
	mastery   *mastery.Engine
	scheduler *review.Scheduler
	problems  types.ProblemReader
	state     types.StateStore
	actions   types.ActionStore
}

// Deps bundles the bridge's collaborators.
type Deps struct {
	Attempts  *attempt.Engine
	Sessions  *session.Manager
	Mastery   *mastery.Engine
	Scheduler *review.Scheduler
	Problems  types.ProblemReader
	State     types.StateStore
	Actions   types.ActionStore
}

// New wires a bridge.
func New(d Deps) *Bridge {
	return &Bridge{
		attempts:  d.Attempts,
		sessions:  d.Sessions,
		mastery:   d.Mastery,
		scheduler: d.Scheduler,
		problems:  d.Problems,
		state:     d.State,
		actions:   d.Actions,
	}
}

// Dispatch routes one request. It never returns a Go error: failures are
// folded into the response envelope.
func (b *Bridge) Dispatch(ctx context.Context, req Request) Response {
	logging.BridgeDebug("Dispatch: %s", req.Kind)
	b.recordAction(ctx, req.Kind)

	result, err := b.route(ctx, req)
	if err != nil {
		kind := types.KindOf(err)
		logging.Bridge("Dispatch %s failed: %s: %v", req.Kind, kind, err)
		return Response{Error: &ErrorBody{Kind: kind, Message: err.Error()}}
	}
	return Response{Result: result}
}

func (b *Bridge) route(ctx context.Context, req Request) (interface{}, error) {
	switch req.Kind {
	case KindAddAttempt:
		return b.addAttempt(ctx, req.Payload)
	case KindGetSession:
		return b.getSession(ctx, req.Payload)
	case KindResumeSession:
		return b.resumeSession(ctx, req.Payload)
	case KindGetOrCreateSession:
		return b.getOrCreateSession(ctx, req.Payload)
	case KindRefreshSession:
		return b.refreshSession(ctx, req.Payload)
	case KindCheckAndCompleteSession:
		return b.checkAndComplete(ctx, req.Payload)
	case KindSkipProblem:
		return b.skipProblem(ctx, req.Payload)
	case KindGetTagMastery:
		return b.mastery.Cached(ctx)
	case KindGetProblemsByBoxLevel:
		return b.problems.CountByBoxLevel(ctx)
	case KindGetDailyReviewSchedule:
		return b.dailyReviewSchedule(ctx, req.Payload)
	default:
		return nil, types.NewError(types.KindTypeMismatch, "unknown request kind %q", req.Kind)
	}
}

// AddAttemptResult carries the written attempt plus whether the attempt
// completed its session and what remains.
type AddAttemptResult struct {
	Attempt          *types.Attempt         `json:"attempt"`
	SessionCompleted bool                   `json:"session_completed"`
	Remaining        []types.SessionProblem `json:"remaining_problems,omitempty"`
}

func (b *Bridge) addAttempt(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var in attempt.Input
	if err := decode(payload, &in); err != nil {
		return nil, err
	}

	a, hint, err := b.attempts.AddAttempt(ctx, in)
	if err != nil {
		return nil, err
	}

	res := AddAttemptResult{Attempt: a}
	if hint.ShouldCheck {
		remaining, found, err := b.sessions.CheckAndCompleteSession(ctx, hint.SessionID)
		if err != nil {
			// The attempt is durably recorded; surface the completion
			// failure without losing that fact.
			logging.Bridge("addAttempt: completion check for %s failed: %v", hint.SessionID, err)
			return res, err
		}
		res.SessionCompleted = found && len(remaining) == 0
		res.Remaining = remaining
	}
	return res, nil
}

func (b *Bridge) getSession(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	return b.sessions.GetSession(ctx, p.SessionID)
}

func (b *Bridge) resumeSession(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p struct {
		Type types.SessionType `json:"session_type"`
	}
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	return b.sessions.ResumeSession(ctx, p.Type)
}

func (b *Bridge) getOrCreateSession(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	p := struct {
		Type types.SessionType `json:"session_type"`
	}{Type: types.SessionStandard}
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	return b.sessions.GetOrCreateSession(ctx, p.Type)
}

func (b *Bridge) refreshSession(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	p := struct {
		Type     types.SessionType `json:"session_type"`
		ForceNew bool              `json:"force_new"`
	}{Type: types.SessionStandard}
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	return b.sessions.RefreshSession(ctx, p.Type, p.ForceNew)
}

// CompletionResult is the wire form of a completion check.
type CompletionResult struct {
	Found     bool                   `json:"found"`
	Completed bool                   `json:"completed"`
	Remaining []types.SessionProblem `json:"remaining_problems,omitempty"`
}

func (b *Bridge) checkAndComplete(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	remaining, found, err := b.sessions.CheckAndCompleteSession(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}
	return CompletionResult{
		Found:     found,
		Completed: found && len(remaining) == 0,
		Remaining: remaining,
	}, nil
}

func (b *Bridge) skipProblem(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p struct {
		SessionID   string                `json:"session_id"`
		LeetCodeID  int                   `json:"leetcode_id"`
		Replacement *types.SessionProblem `json:"replacement,omitempty"`
	}
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := b.sessions.SkipProblem(ctx, p.SessionID, p.LeetCodeID, p.Replacement); err != nil {
		return nil, err
	}
	return map[string]bool{"skipped": true}, nil
}

func (b *Bridge) dailyReviewSchedule(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	p := struct {
		Budget int `json:"budget"`
	}{Budget: 5}
	if err := decode(payload, &p); err != nil {
		return nil, err
	}

	ls := review.LearningState{}
	if st, err := b.state.GetSessionState(ctx); err == nil {
		ls.TierTags = st.CurrentAllowedTags
		ls.FocusTags = st.CurrentFocusTags
		ls.UnmasteredTags = st.CurrentFocusTags
	}
	return b.scheduler.DailyReviewSchedule(ctx, p.Budget, ls), nil
}

func (b *Bridge) recordAction(ctx context.Context, kind string) {
	if b.actions == nil {
		return
	}
	if err := b.actions.RecordAction(ctx, "bridge:"+kind, nil); err != nil {
		logging.BridgeDebug("recordAction %s: %v", kind, err)
	}
}

// decode tolerates a nil payload and maps malformed JSON to TypeMismatch.
func decode(payload json.RawMessage, dst interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return types.WrapError(types.KindTypeMismatch, err, "malformed payload")
	}
	return nil
}
