package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"leetcoach/internal/logging"
	"leetcoach/internal/types"
)

// =============================================================================
// SESSIONS (exclusively mutated by the lifecycle manager)
// =============================================================================

// PutSession inserts or replaces a session record.
func (s *LocalStore) PutSession(ctx context.Context, sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, "PutSession", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			return putSessionTx(ctx, tx, sess)
		})
	})
}

// CreateSession inserts a new session. When sealSameType is set, any existing
// in_progress session of the same type is transitioned to completed in the
// same transaction, sealed as-is without recomputing accuracy. This keeps the
// at-most-one-in_progress-per-type invariant race free.
func (s *LocalStore) CreateSession(ctx context.Context, sess *types.Session, sealSameType bool) error {
	timer := logging.StartTimer(logging.CategoryStore, "CreateSession")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Creating session: id=%s type=%s seal=%v", sess.SessionID, sess.Type, sealSameType)

	return withRetry(ctx, "CreateSession", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if sealSameType {
				_, err := tx.ExecContext(ctx,
					`UPDATE sessions SET status = ?, last_activity_time = ?
					 WHERE session_type = ? AND status = ?`,
					string(types.StatusCompleted), encodeTime(sess.CreatedAt),
					string(sess.Type), string(types.StatusInProgress),
				)
				if err != nil {
					return err
				}
			}
			return putSessionTx(ctx, tx, sess)
		})
	})
}

// ReplaceSession deletes the old session and inserts the new one atomically.
// Used by refreshSession so no instant exists where both or neither session
// is visible.
func (s *LocalStore) ReplaceSession(ctx context.Context, oldSessionID string, sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Replacing session %s with %s", oldSessionID, sess.SessionID)

	return withRetry(ctx, "ReplaceSession", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", oldSessionID); err != nil {
				return err
			}
			return putSessionTx(ctx, tx, sess)
		})
	})
}

// DeleteSession removes a session record.
func (s *LocalStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, "DeleteSession", func() error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", sessionID)
		return err
	})
}

// GetSession retrieves a session by id.
func (s *LocalStore) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, sessionSelect+" WHERE session_id = ?", sessionID)
	sess, err := scanSession(row)
	if err != nil {
		return nil, mapErr("GetSession", err)
	}
	return sess, nil
}

// InProgressSessions returns all in_progress sessions, most recent activity
// first.
func (s *LocalStore) InProgressSessions(ctx context.Context) ([]*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		sessionSelect+" WHERE status = ? ORDER BY last_activity_time DESC",
		string(types.StatusInProgress))
	if err != nil {
		return nil, mapErr("InProgressSessions", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			logging.StoreDebug("InProgressSessions: skipping unreadable row: %v", err)
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, mapErr("InProgressSessions", rows.Err())
}

// InProgressSessionByType returns the most recently active in_progress
// session of exactly the given type, or NotFound.
func (s *LocalStore) InProgressSessionByType(ctx context.Context, t types.SessionType) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		sessionSelect+` WHERE status = ? AND session_type = ?
		 ORDER BY last_activity_time DESC LIMIT 1`,
		string(types.StatusInProgress), string(t))
	sess, err := scanSession(row)
	if err != nil {
		return nil, mapErr("InProgressSessionByType", err)
	}
	return sess, nil
}

const sessionSelect = `SELECT session_id, session_type, status, origin, created_at,
	last_activity_time, problems_json, attempt_ids_json, current_problem_index,
	accuracy, duration_minutes FROM sessions`

func putSessionTx(ctx context.Context, tx *sql.Tx, sess *types.Session) error {
	problemsJSON, err := json.Marshal(sess.Problems)
	if err != nil {
		return err
	}
	attemptsJSON, err := json.Marshal(sess.AttemptIDs)
	if err != nil {
		return err
	}

	var accuracy, duration interface{}
	if sess.Accuracy != nil {
		accuracy = *sess.Accuracy
	}
	if sess.DurationMinutes != nil {
		duration = *sess.DurationMinutes
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions
		 (session_id, session_type, status, origin, created_at, last_activity_time,
		  problems_json, attempt_ids_json, current_problem_index, accuracy, duration_minutes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.SessionID, string(sess.Type), string(sess.Status), string(sess.Origin),
		encodeTime(sess.CreatedAt), encodeTime(sess.LastActivityTime),
		string(problemsJSON), string(attemptsJSON), sess.CurrentProblemIndex,
		accuracy, duration,
	)
	return err
}

func scanSession(row rowScanner) (*types.Session, error) {
	var sess types.Session
	var sessType, status, origin, createdAt, lastActivity, problemsJSON, attemptsJSON string
	var accuracy, duration sql.NullFloat64

	err := row.Scan(&sess.SessionID, &sessType, &status, &origin, &createdAt,
		&lastActivity, &problemsJSON, &attemptsJSON, &sess.CurrentProblemIndex,
		&accuracy, &duration)
	if err != nil {
		return nil, err
	}

	sess.Type = types.SessionType(sessType)
	sess.Status = types.SessionStatus(status)
	sess.Origin = types.SessionOrigin(origin)
	if sess.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if sess.LastActivityTime, err = decodeTime(lastActivity); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(problemsJSON), &sess.Problems); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attemptsJSON), &sess.AttemptIDs); err != nil {
		return nil, err
	}
	if accuracy.Valid {
		v := accuracy.Float64
		sess.Accuracy = &v
	}
	if duration.Valid {
		v := duration.Float64
		sess.DurationMinutes = &v
	}
	return &sess, nil
}
