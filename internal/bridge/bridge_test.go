package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leetcoach/internal/assembler"
	"leetcoach/internal/attempt"
	"leetcoach/internal/clock"
	"leetcoach/internal/config"
	"leetcoach/internal/focus"
	"leetcoach/internal/mastery"
	"leetcoach/internal/review"
	"leetcoach/internal/session"
	"leetcoach/internal/store"
	"leetcoach/internal/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBridge(t *testing.T) (*Bridge, *store.LocalStore) {
	t.Helper()
	s, err := store.NewLocalStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clk := clock.NewFake(testNow)
	scheduler := review.NewScheduler(s, clk)
	asm := assembler.New(s, s, scheduler, clk)
	masteryEngine := mastery.NewEngine(s, s, s, clk)
	attempts := attempt.NewEngine(s, s, clk)

	sessions := session.NewManager(session.Deps{
		Sessions:  s,
		Problems:  s,
		Attempts:  s,
		State:     s,
		Actions:   s,
		Assembler: asm,
		Mastery:   masteryEngine,
		Focus:     focus.New(),
		Clock:     clk,
		Settings:  func() config.Settings { return config.DefaultSettings() },
	})

	return New(Deps{
		Attempts:  attempts,
		Sessions:  sessions,
		Mastery:   masteryEngine,
		Scheduler: scheduler,
		Problems:  s,
		State:     s,
		Actions:   s,
	}), s
}

func seedProblems(t *testing.T, s *store.LocalStore, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, s.PutProblem(context.Background(), &types.Problem{
			ProblemID:      "p" + string(rune('a'+i)),
			LeetCodeID:     i,
			Title:          "Problem",
			Difficulty:     types.DifficultyEasy,
			Tags:           []string{"array"},
			BoxLevel:       1,
			ReviewSchedule: testNow.Add(-time.Hour),
		}))
	}
}

func payload(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestDispatchUnknownKind(t *testing.T) {
	b, _ := newTestBridge(t)

	resp := b.Dispatch(context.Background(), Request{Kind: "teleport"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.KindTypeMismatch, resp.Error.Kind)
	assert.Nil(t, resp.Result)
}

func TestDispatchMalformedPayload(t *testing.T) {
	b, _ := newTestBridge(t)

	resp := b.Dispatch(context.Background(), Request{
		Kind:    KindGetSession,
		Payload: json.RawMessage(`{broken`),
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.KindTypeMismatch, resp.Error.Kind)
}

func TestDispatchGetOrCreateSession(t *testing.T) {
	b, s := newTestBridge(t)
	seedProblems(t, s, 6)

	resp := b.Dispatch(context.Background(), Request{Kind: KindGetOrCreateSession})
	require.Nil(t, resp.Error)

	sess, ok := resp.Result.(*types.Session)
	require.True(t, ok)
	assert.Equal(t, types.SessionStandard, sess.Type)
	assert.Len(t, sess.Problems, 5)
}

func TestDispatchAddAttemptErrorMapping(t *testing.T) {
	b, _ := newTestBridge(t)

	resp := b.Dispatch(context.Background(), Request{
		Kind:    KindAddAttempt,
		Payload: payload(t, map[string]interface{}{"LeetCodeID": 999, "Success": true}),
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.KindNotFound, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "Problem not found")
}

func TestDispatchAddAttemptCompletesSession(t *testing.T) {
	b, s := newTestBridge(t)
	seedProblems(t, s, 2)

	// A one-problem session, then an attempt through the bridge closes it.
	sess := &types.Session{
		SessionID:        "s1",
		Type:             types.SessionStandard,
		Status:           types.StatusInProgress,
		Origin:           types.OriginGenerator,
		CreatedAt:        testNow,
		LastActivityTime: testNow,
		Problems:         []types.SessionProblem{{ProblemID: "pb", LeetCodeID: 1, Title: "Problem"}},
		AttemptIDs:       []string{},
	}
	require.NoError(t, s.CreateSession(context.Background(), sess, false))

	resp := b.Dispatch(context.Background(), Request{
		Kind: KindAddAttempt,
		Payload: payload(t, map[string]interface{}{
			"LeetCodeID": 1,
			"SessionID":  "s1",
			"Success":    true,
		}),
	})
	require.Nil(t, resp.Error)

	res, ok := resp.Result.(AddAttemptResult)
	require.True(t, ok)
	assert.True(t, res.SessionCompleted)
	assert.Empty(t, res.Remaining)

	got, err := s.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
}

func TestDispatchDailyReviewSchedule(t *testing.T) {
	b, s := newTestBridge(t)
	seedProblems(t, s, 3)

	// The review gate opens once session state carries allowed tags.
	st := types.NewSessionState()
	st.CurrentAllowedTags = []string{"array"}
	require.NoError(t, s.PutSessionState(context.Background(), st))

	resp := b.Dispatch(context.Background(), Request{
		Kind:    KindGetDailyReviewSchedule,
		Payload: payload(t, map[string]int{"budget": 2}),
	})
	require.Nil(t, resp.Error)

	problems, ok := resp.Result.([]*types.Problem)
	require.True(t, ok)
	assert.Len(t, problems, 2)
}

func TestDispatchProblemsByBoxLevel(t *testing.T) {
	b, s := newTestBridge(t)
	seedProblems(t, s, 3)

	resp := b.Dispatch(context.Background(), Request{Kind: KindGetProblemsByBoxLevel})
	require.Nil(t, resp.Error)

	counts, ok := resp.Result.(map[int]int)
	require.True(t, ok)
	assert.Equal(t, 3, counts[1])
}

func TestDispatchSkipProblemNotFound(t *testing.T) {
	b, _ := newTestBridge(t)

	resp := b.Dispatch(context.Background(), Request{
		Kind:    KindSkipProblem,
		Payload: payload(t, map[string]interface{}{"session_id": "ghost", "leetcode_id": 1}),
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.KindNotFound, resp.Error.Kind)
}

func TestResponseEnvelopeSerialization(t *testing.T) {
	ok := Response{Result: map[string]bool{"skipped": true}}
	data, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":{"skipped":true}}`, string(data))

	fail := Response{Error: &ErrorBody{Kind: types.KindTimedOut, Message: "too slow"}}
	data, err = json.Marshal(fail)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"kind":"TimedOut","message":"too slow"}}`, string(data))
}
