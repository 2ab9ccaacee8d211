// Package session implements the session lifecycle manager: the only mutator
// of Session records and the sole authority on session identity and type.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"leetcoach/internal/assembler"
	"leetcoach/internal/clock"
	"leetcoach/internal/config"
	"leetcoach/internal/focus"
	"leetcoach/internal/logging"
	"leetcoach/internal/mastery"
	"leetcoach/internal/review"
	"leetcoach/internal/types"
)

// Default operation deadlines: DB-bound paths get 10s, the completion
// pipeline 30s.
const (
	dbTimeout         = 10 * time.Second
	completionTimeout = 30 * time.Second
)

// Manager creates, resumes, refreshes, and completes sessions.
type Manager struct {
	sessions types.SessionStore
	problems types.ProblemReader
	attempts types.AttemptStore
	state    types.StateStore
	actions  types.ActionStore

	assembler *assembler.Assembler
	mastery   *mastery.Engine
	focus     *focus.Coordinator
	clock     clock.Clock
	settings  func() config.Settings

	// Keyed latches: at most one create/refresh per session type in flight;
	// concurrent callers attach to the existing result. Completion saves are
	// deduplicated per session id the same way.
	createGroup   singleflight.Group
	refreshGroup  singleflight.Group
	completeGroup singleflight.Group
}

// Deps bundles the manager's collaborators.
type Deps struct {
	Sessions  types.SessionStore
	Problems  types.ProblemReader
	Attempts  types.AttemptStore
	State     types.StateStore
	Actions   types.ActionStore
	Assembler *assembler.Assembler
	Mastery   *mastery.Engine
	Focus     *focus.Coordinator
	Clock     clock.Clock
	Settings  func() config.Settings
}

// NewManager wires a lifecycle manager.
func NewManager(d Deps) *Manager {
	return &Manager{
		sessions:  d.Sessions,
		problems:  d.Problems,
		attempts:  d.Attempts,
		state:     d.State,
		actions:   d.Actions,
		assembler: d.Assembler,
		mastery:   d.Mastery,
		focus:     d.Focus,
		clock:     d.Clock,
		settings:  d.Settings,
	}
}

// GetSession returns a session by id, or nil when it does not exist.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sess, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// GetOrCreateSession is the canonical entry: it returns an existing
// compatible in_progress session of the requested type or atomically creates
// a fresh one. Concurrent callers for the same type share one result.
func (m *Manager) GetOrCreateSession(ctx context.Context, t types.SessionType) (*types.Session, error) {
	if !t.Valid() {
		return nil, types.NewError(types.KindTypeMismatch, "unknown session type %q", t)
	}

	v, err, _ := m.createGroup.Do(string(t), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, dbTimeout)
		defer cancel()

		existing, err := m.findCompatible(ctx, t)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			logging.SessionDebug("GetOrCreateSession: reusing %s (type=%s) for requested %s",
				existing.SessionID, existing.Type, t)
			return existing, nil
		}
		return m.createLocked(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Session), nil
}

// ResumeSession returns the most recent in_progress session compatible with
// the requested type, or nil on mismatch; the caller decides whether to
// create. An empty type matches any in_progress session.
func (m *Manager) ResumeSession(ctx context.Context, t types.SessionType) (*types.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	active, err := m.sessions.InProgressSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, sess := range active {
		if t == "" || types.Compatible(sess.Type, t) {
			m.touch(ctx, sess)
			return sess, nil
		}
	}
	logging.SessionDebug("ResumeSession: no in_progress session compatible with %q", t)
	return nil, nil
}

// CreateNewSession unconditionally builds a new session. Any existing
// in_progress session of the same type is sealed completed-as-is in the same
// transaction, without recomputing accuracy.
func (m *Manager) CreateNewSession(ctx context.Context, t types.SessionType) (*types.Session, error) {
	if !t.Valid() {
		return nil, types.NewError(types.KindTypeMismatch, "unknown session type %q", t)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return m.createLocked(ctx, t)
}

// RefreshSession replaces the in_progress session of the given type with a
// fresh one. With forceNew and no existing session it returns nil and
// creates nothing: a hard guard against materializing a session of the wrong
// type by accident.
func (m *Manager) RefreshSession(ctx context.Context, t types.SessionType, forceNew bool) (*types.Session, error) {
	if !t.Valid() {
		return nil, types.NewError(types.KindTypeMismatch, "unknown session type %q", t)
	}

	v, err, _ := m.refreshGroup.Do(string(t), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, dbTimeout)
		defer cancel()

		existing, err := m.sessions.InProgressSessionByType(ctx, t)
		if err != nil && !types.IsKind(err, types.KindNotFound) {
			return nil, err
		}

		if existing == nil {
			if forceNew {
				logging.SessionWarn("RefreshSession: forceNew with no in_progress %s session, refusing to create", t)
				return (*types.Session)(nil), nil
			}
			return m.createLocked(ctx, t)
		}

		fresh, err := m.buildSession(ctx, t)
		if err != nil {
			return nil, err
		}
		if err := m.sessions.ReplaceSession(ctx, existing.SessionID, fresh); err != nil {
			return nil, err
		}
		m.setActiveSession(ctx, t, fresh.SessionID)
		m.recordAction(ctx, "session_refreshed", map[string]string{
			"old": existing.SessionID, "new": fresh.SessionID, "type": string(t),
		})
		logging.Session("Session refreshed: %s -> %s (type=%s)", existing.SessionID, fresh.SessionID, t)
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Session), nil
}

// SkipProblem removes a problem from an in_progress session, optionally
// appending a normalized replacement. Attempts are never modified.
func (m *Manager) SkipProblem(ctx context.Context, sessionID string, leetcodeID int, replacement *types.SessionProblem) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sess, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status == types.StatusCompleted {
		return types.NewError(types.KindInvariantViolation, "session %s is completed and frozen", sessionID)
	}

	kept := sess.Problems[:0]
	removed := false
	for _, p := range sess.Problems {
		if !removed && p.LeetCodeID == leetcodeID {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		return types.NewError(types.KindNotFound, "problem %d not in session %s", leetcodeID, sessionID)
	}
	sess.Problems = kept

	if replacement != nil {
		r := *replacement
		r.Reason = types.ReasonPrerequisite
		sess.Problems = append(sess.Problems, r)
	}
	if sess.CurrentProblemIndex >= len(sess.Problems) && len(sess.Problems) > 0 {
		sess.CurrentProblemIndex = len(sess.Problems) - 1
	}
	sess.LastActivityTime = m.clock.Now()

	if err := m.sessions.PutSession(ctx, sess); err != nil {
		return err
	}
	logging.Session("Skipped problem %d in session %s (replacement=%v)", leetcodeID, sessionID, replacement != nil)
	return nil
}

// findCompatible returns the most recent in_progress session compatible with
// the requested type, or nil.
func (m *Manager) findCompatible(ctx context.Context, t types.SessionType) (*types.Session, error) {
	active, err := m.sessions.InProgressSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, sess := range active {
		if types.Compatible(sess.Type, t) {
			return sess, nil
		}
	}
	return nil, nil
}

// createLocked assembles and persists a new session, sealing any sibling of
// the same type.
func (m *Manager) createLocked(ctx context.Context, t types.SessionType) (*types.Session, error) {
	sess, err := m.buildSession(ctx, t)
	if err != nil {
		return nil, err
	}
	if err := m.sessions.CreateSession(ctx, sess, true); err != nil {
		return nil, err
	}
	m.setActiveSession(ctx, t, sess.SessionID)
	m.recordAction(ctx, "session_created", map[string]string{
		"session_id": sess.SessionID, "type": string(t),
	})
	logging.Session("Session created: %s (type=%s, %d problems)", sess.SessionID, t, len(sess.Problems))
	return sess, nil
}

// buildSession runs the assembler and wraps the result in a Session record.
func (m *Manager) buildSession(ctx context.Context, t types.SessionType) (*types.Session, error) {
	cfg := m.settings()
	st := m.loadStateOrZero(ctx)
	profile := types.ProfileFor(t)

	settings := assembler.Settings{
		SessionLength:       cfg.SessionLength,
		NumberOfNewProblems: cfg.NumberOfNewProblems,
		AllowedTags:         st.CurrentAllowedTags,
		DifficultyCap:       cfg.DifficultyCap,
		ReviewRatio:         cfg.ReviewRatio,
		MinReviewRatio:      cfg.MinReviewRatio,
	}
	// SessionState overrides win over config defaults.
	if st.SessionLength > 0 {
		settings.SessionLength = st.SessionLength
	}
	if st.NumberOfNewProblems > 0 {
		settings.NumberOfNewProblems = st.NumberOfNewProblems
	}
	if t.IsInterviewGroup() {
		// Interview variants use their own length and new-problem mix.
		settings.SessionLength = profile.Length
		settings.NumberOfNewProblems = profile.NewProblems
	}
	if st.CurrentDifficultyCap.Valid() {
		settings.DifficultyCap = st.CurrentDifficultyCap
	}

	problems, err := m.assembler.Assemble(ctx, settings, m.learningState(ctx, st))
	if err != nil {
		return nil, err
	}

	origin := types.OriginGenerator
	if t == types.SessionTracking {
		origin = types.OriginTracking
	}

	now := m.clock.Now()
	return &types.Session{
		SessionID:        uuid.NewString(),
		Type:             t,
		Status:           types.StatusInProgress,
		Origin:           origin,
		CreatedAt:        now,
		LastActivityTime: now,
		Problems:         problems,
		AttemptIDs:       []string{},
	}, nil
}

// learningState derives the scheduler's tag context from session state and
// the mastery cache: focus tags needing review lead, then the rest of the
// tier, weakest first.
func (m *Manager) learningState(ctx context.Context, st *types.SessionState) review.LearningState {
	ls := review.LearningState{
		TierTags:  st.CurrentAllowedTags,
		FocusTags: st.CurrentFocusTags,
	}

	snap, err := m.mastery.Cached(ctx)
	if err != nil {
		logging.SessionWarn("learningState: mastery cache unavailable: %v", err)
		ls.UnmasteredTags = st.CurrentFocusTags
		return ls
	}

	seen := make(map[string]bool)
	for _, tag := range st.CurrentFocusTags {
		if mRow, ok := snap[tag]; !ok || mRow.NeedsReview() {
			ls.UnmasteredTags = append(ls.UnmasteredTags, tag)
			seen[tag] = true
		}
	}
	for _, tag := range st.CurrentAllowedTags {
		if seen[tag] {
			continue
		}
		if mRow, ok := snap[tag]; !ok || mRow.NeedsReview() {
			ls.UnmasteredTags = append(ls.UnmasteredTags, tag)
		}
	}
	return ls
}

// loadStateOrZero reads the session_state singleton, substituting a zero
// state before the first completion.
func (m *Manager) loadStateOrZero(ctx context.Context) *types.SessionState {
	st, err := m.state.GetSessionState(ctx)
	if err != nil {
		if !types.IsKind(err, types.KindNotFound) {
			logging.SessionWarn("loadStateOrZero: %v", err)
		}
		return types.NewSessionState()
	}
	return st
}

// setActiveSession updates the explicit per-type active session pointer on
// SessionState. Best-effort: a failure only loses the pointer, not the
// session.
func (m *Manager) setActiveSession(ctx context.Context, t types.SessionType, sessionID string) {
	st := m.loadStateOrZero(ctx)
	if st.ActiveSessionIDs == nil {
		st.ActiveSessionIDs = make(map[types.SessionType]string)
	}
	if sessionID == "" {
		delete(st.ActiveSessionIDs, t)
	} else {
		st.ActiveSessionIDs[t] = sessionID
	}
	if err := m.state.PutSessionState(ctx, st); err != nil {
		logging.SessionWarn("setActiveSession: %v", err)
	}
}

// touch bumps last_activity_time on an in_progress session.
func (m *Manager) touch(ctx context.Context, sess *types.Session) {
	if sess.Status != types.StatusInProgress {
		return
	}
	sess.LastActivityTime = m.clock.Now()
	if err := m.sessions.PutSession(ctx, sess); err != nil {
		logging.SessionWarn("touch: failed to bump activity on %s: %v", sess.SessionID, err)
	}
}

// recordAction appends telemetry, best-effort.
func (m *Manager) recordAction(ctx context.Context, kind string, payload interface{}) {
	if m.actions == nil {
		return
	}
	if err := m.actions.RecordAction(ctx, kind, payload); err != nil {
		logging.SessionDebug("recordAction %s: %v", kind, err)
	}
}
