package store

import (
	"context"
	"encoding/json"
	"time"

	"leetcoach/internal/logging"
	"leetcoach/internal/types"
)

// =============================================================================
// SESSION STATE SINGLETON + USER ACTION TELEMETRY
// =============================================================================

// GetSessionState loads the singleton record. Returns NotFound before the
// first completion creates it.
func (s *LocalStore) GetSessionState(ctx context.Context) (*types.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stateJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT state_json FROM session_state WHERE id = ?", types.SessionStateID,
	).Scan(&stateJSON)
	if err != nil {
		return nil, mapErr("GetSessionState", err)
	}

	st := types.NewSessionState()
	if err := json.Unmarshal([]byte(stateJSON), st); err != nil {
		return nil, types.WrapError(types.KindStoreUnavailable, err, "GetSessionState: corrupt state record")
	}
	if st.ActiveSessionIDs == nil {
		st.ActiveSessionIDs = make(map[types.SessionType]string)
	}
	return st, nil
}

// PutSessionState writes the singleton record.
func (s *LocalStore) PutSessionState(ctx context.Context, st *types.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(st)
	if err != nil {
		return types.WrapError(types.KindStoreUnavailable, err, "PutSessionState: marshal failed")
	}

	logging.StoreDebug("Persisting session state: completed=%d focus=%v",
		st.NumSessionsCompleted, st.CurrentFocusTags)

	return withRetry(ctx, "PutSessionState", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO session_state (id, state_json, updated_at) VALUES (?, ?, ?)`,
			types.SessionStateID, string(data), encodeTime(time.Now()),
		)
		return err
	})
}

// RecordAction appends a telemetry record. Failures are mapped but callers
// treat them as best-effort.
func (s *LocalStore) RecordAction(ctx context.Context, kind string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payloadJSON []byte
	if payload != nil {
		var err error
		if payloadJSON, err = json.Marshal(payload); err != nil {
			payloadJSON = []byte(`{}`)
		}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO user_actions (kind, payload) VALUES (?, ?)",
		kind, string(payloadJSON),
	)
	if err != nil {
		return mapErr("RecordAction", err)
	}
	return nil
}
