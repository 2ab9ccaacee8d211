package store

import (
	"context"
	"database/sql"

	"leetcoach/internal/logging"
	"leetcoach/internal/types"
)

// =============================================================================
// ATTEMPTS (append-only) + LEARNING STATE UPDATE
// =============================================================================

// RecordAttempt writes the attempt and the problem's new learning state in a
// single readwrite transaction, so a reader never observes an attempt whose
// box-level update is missing.
func (s *LocalStore) RecordAttempt(ctx context.Context, w types.AttemptWrite) error {
	timer := logging.StartTimer(logging.CategoryStore, "RecordAttempt")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Recording attempt: id=%s problem=%s success=%v box=%d",
		w.Attempt.AttemptID, w.ProblemID, w.Attempt.Success, w.NewBoxLevel)

	return withRetry(ctx, "RecordAttempt", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			var sessionID interface{}
			if w.Attempt.SessionID != "" {
				sessionID = w.Attempt.SessionID
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO attempts
				 (attempt_id, problem_id, session_id, attempt_date, success,
				  time_spent_secs, hints_used, box_level_at_attempt, comments)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				w.Attempt.AttemptID, w.Attempt.ProblemID, sessionID,
				encodeTime(w.Attempt.AttemptDate), w.Attempt.Success,
				w.Attempt.TimeSpentSecs, w.Attempt.HintsUsed,
				w.Attempt.BoxLevelAtAttempt, w.Attempt.Comments,
			)
			if err != nil {
				return err
			}

			res, err := tx.ExecContext(ctx,
				`UPDATE problems
				 SET box_level = ?, review_schedule = ?, last_attempt_date = ?,
				     attempts_total = ?, attempts_successful = ?
				 WHERE problem_id = ?`,
				w.NewBoxLevel, encodeTime(w.NextReview), encodeTime(w.LastAttemptDate),
				w.Stats.Total, w.Stats.Successful, w.ProblemID,
			)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return sql.ErrNoRows
			}
			return nil
		})
	})
}

// AttemptsByProblem returns all attempts on one problem, oldest first.
func (s *LocalStore) AttemptsByProblem(ctx context.Context, problemID string) ([]*types.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAttempts(ctx,
		`SELECT attempt_id, problem_id, session_id, attempt_date, success,
		        time_spent_secs, hints_used, box_level_at_attempt, comments
		 FROM attempts WHERE problem_id = ? ORDER BY attempt_date`, problemID)
}

// AttemptsBySession returns all attempts bound to a session, oldest first.
func (s *LocalStore) AttemptsBySession(ctx context.Context, sessionID string) ([]*types.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAttempts(ctx,
		`SELECT attempt_id, problem_id, session_id, attempt_date, success,
		        time_spent_secs, hints_used, box_level_at_attempt, comments
		 FROM attempts WHERE session_id = ? ORDER BY attempt_date`, sessionID)
}

// AllAttempts returns every attempt, oldest first. Ordering by attempt_date
// is authoritative.
func (s *LocalStore) AllAttempts(ctx context.Context) ([]*types.Attempt, error) {
	timer := logging.StartTimer(logging.CategoryStore, "AllAttempts")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAttempts(ctx,
		`SELECT attempt_id, problem_id, session_id, attempt_date, success,
		        time_spent_secs, hints_used, box_level_at_attempt, comments
		 FROM attempts ORDER BY attempt_date`)
}

// MostRecentAttempt returns the latest attempt, optionally scoped to one
// problem (empty problemID = any problem). NotFound when no attempts exist.
func (s *LocalStore) MostRecentAttempt(ctx context.Context, problemID string) (*types.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT attempt_id, problem_id, session_id, attempt_date, success,
	                 time_spent_secs, hints_used, box_level_at_attempt, comments
	          FROM attempts`
	args := []interface{}{}
	if problemID != "" {
		query += " WHERE problem_id = ?"
		args = append(args, problemID)
	}
	query += " ORDER BY attempt_date DESC LIMIT 1"

	row := s.db.QueryRowContext(ctx, query, args...)
	a, err := scanAttempt(row)
	if err != nil {
		return nil, mapErr("MostRecentAttempt", err)
	}
	return a, nil
}

func (s *LocalStore) queryAttempts(ctx context.Context, query string, args ...interface{}) ([]*types.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("queryAttempts", err)
	}
	defer rows.Close()

	var attempts []*types.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			logging.StoreDebug("queryAttempts: skipping unreadable row: %v", err)
			continue
		}
		attempts = append(attempts, a)
	}
	return attempts, mapErr("queryAttempts", rows.Err())
}

func scanAttempt(row rowScanner) (*types.Attempt, error) {
	var a types.Attempt
	var sessionID, comments sql.NullString
	var date string

	err := row.Scan(&a.AttemptID, &a.ProblemID, &sessionID, &date, &a.Success,
		&a.TimeSpentSecs, &a.HintsUsed, &a.BoxLevelAtAttempt, &comments)
	if err != nil {
		return nil, err
	}

	a.SessionID = sessionID.String
	a.Comments = comments.String
	if a.AttemptDate, err = decodeTime(date); err != nil {
		return nil, err
	}
	return &a, nil
}
