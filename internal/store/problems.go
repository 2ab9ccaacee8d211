package store

import (
	"context"
	"database/sql"

	"leetcoach/internal/logging"
	"leetcoach/internal/types"
)

// =============================================================================
// PROBLEM CATALOGUE (identity + learning state + tag multi-index)
// =============================================================================

// PutProblem inserts or replaces a problem and its tag index rows.
// Used by catalogue import; learning-state updates flow through the attempt
// engine's RecordAttempt instead.
func (s *LocalStore) PutProblem(ctx context.Context, p *types.Problem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Storing problem: id=%s leetcode=%d tags=%d", p.ProblemID, p.LeetCodeID, len(p.Tags))

	return withRetry(ctx, "PutProblem", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO problems
				 (problem_id, leetcode_id, title, slug, difficulty, box_level,
				  review_schedule, last_attempt_date, attempts_total, attempts_successful)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ProblemID, p.LeetCodeID, p.Title, p.Slug, string(p.Difficulty), p.BoxLevel,
				encodeTime(p.ReviewSchedule), encodeTimePtr(p.LastAttemptDate),
				p.Stats.Total, p.Stats.Successful,
			)
			if err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx, "DELETE FROM problem_tags WHERE problem_id = ?", p.ProblemID); err != nil {
				return err
			}
			for _, tag := range p.Tags {
				if _, err := tx.ExecContext(ctx,
					"INSERT OR IGNORE INTO problem_tags (problem_id, tag) VALUES (?, ?)",
					p.ProblemID, tag,
				); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// GetProblem retrieves a problem by its UUID.
func (s *LocalStore) GetProblem(ctx context.Context, problemID string) (*types.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryProblem(ctx, "WHERE p.problem_id = ?", problemID)
}

// GetProblemByLeetCodeID retrieves a problem by its external integer id.
func (s *LocalStore) GetProblemByLeetCodeID(ctx context.Context, leetcodeID int) (*types.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryProblem(ctx, "WHERE p.leetcode_id = ?", leetcodeID)
}

func (s *LocalStore) queryProblem(ctx context.Context, where string, arg interface{}) (*types.Problem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT p.problem_id, p.leetcode_id, p.title, p.slug, p.difficulty, p.box_level,
		        p.review_schedule, p.last_attempt_date, p.attempts_total, p.attempts_successful
		 FROM problems p `+where, arg)

	p, err := scanProblem(row)
	if err != nil {
		return nil, mapErr("GetProblem", err)
	}

	if err := s.loadTags(ctx, p); err != nil {
		return nil, mapErr("GetProblem", err)
	}
	return p, nil
}

// ListProblems returns the full catalogue with tags resolved.
func (s *LocalStore) ListProblems(ctx context.Context) ([]*types.Problem, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ListProblems")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT problem_id, leetcode_id, title, slug, difficulty, box_level,
		        review_schedule, last_attempt_date, attempts_total, attempts_successful
		 FROM problems ORDER BY leetcode_id`)
	if err != nil {
		return nil, mapErr("ListProblems", err)
	}
	defer rows.Close()

	var problems []*types.Problem
	byID := make(map[string]*types.Problem)
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			logging.StoreDebug("ListProblems: skipping unreadable row: %v", err)
			continue
		}
		problems = append(problems, p)
		byID[p.ProblemID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("ListProblems", err)
	}

	tagRows, err := s.db.QueryContext(ctx, "SELECT problem_id, tag FROM problem_tags ORDER BY problem_id, tag")
	if err != nil {
		return nil, mapErr("ListProblems", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var id, tag string
		if err := tagRows.Scan(&id, &tag); err != nil {
			continue
		}
		if p, ok := byID[id]; ok {
			p.Tags = append(p.Tags, tag)
		}
	}

	logging.StoreDebug("ListProblems: %d problems loaded", len(problems))
	return problems, nil
}

// CountByBoxLevel returns the box-level histogram.
func (s *LocalStore) CountByBoxLevel(ctx context.Context) (map[int]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT box_level, COUNT(*) FROM problems GROUP BY box_level")
	if err != nil {
		return nil, mapErr("CountByBoxLevel", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var level, n int
		if err := rows.Scan(&level, &n); err != nil {
			continue
		}
		counts[level] = n
	}
	return counts, rows.Err()
}

// loadTags resolves a single problem's tag set.
func (s *LocalStore) loadTags(ctx context.Context, p *types.Problem) error {
	rows, err := s.db.QueryContext(ctx, "SELECT tag FROM problem_tags WHERE problem_id = ? ORDER BY tag", p.ProblemID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			continue
		}
		p.Tags = append(p.Tags, tag)
	}
	return rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProblem(row rowScanner) (*types.Problem, error) {
	var p types.Problem
	var difficulty, review string
	var lastAttempt sql.NullString
	var slug sql.NullString

	err := row.Scan(&p.ProblemID, &p.LeetCodeID, &p.Title, &slug, &difficulty, &p.BoxLevel,
		&review, &lastAttempt, &p.Stats.Total, &p.Stats.Successful)
	if err != nil {
		return nil, err
	}

	p.Slug = slug.String
	p.Difficulty = types.Difficulty(difficulty)
	if p.ReviewSchedule, err = decodeTime(review); err != nil {
		return nil, err
	}
	if lastAttempt.Valid {
		t, err := decodeTime(lastAttempt.String)
		if err != nil {
			return nil, err
		}
		p.LastAttemptDate = &t
	}
	return &p, nil
}
