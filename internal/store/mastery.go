package store

import (
	"context"
	"database/sql"

	"leetcoach/internal/logging"
	"leetcoach/internal/types"
)

// =============================================================================
// TAG MASTERY CACHE (owned by the mastery engine; a cache, not truth)
// =============================================================================

// AllTagMastery loads the persisted mastery snapshot keyed by tag.
func (s *LocalStore) AllTagMastery(ctx context.Context) (map[string]types.TagMastery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT tag, total_attempts, successful_attempts, success_rate,
		        mastered, decay_score, last_recomputed_at
		 FROM tag_mastery ORDER BY tag`)
	if err != nil {
		return nil, mapErr("AllTagMastery", err)
	}
	defer rows.Close()

	snapshot := make(map[string]types.TagMastery)
	for rows.Next() {
		var m types.TagMastery
		var recomputed string
		if err := rows.Scan(&m.Tag, &m.TotalAttempts, &m.SuccessfulAttempts,
			&m.SuccessRate, &m.Mastered, &m.DecayScore, &recomputed); err != nil {
			logging.StoreDebug("AllTagMastery: skipping unreadable row: %v", err)
			continue
		}
		if m.LastRecomputedAt, err = decodeTime(recomputed); err != nil {
			continue
		}
		snapshot[m.Tag] = m
	}
	return snapshot, mapErr("AllTagMastery", rows.Err())
}

// ReplaceTagMastery atomically swaps the whole cache for a fresh snapshot.
func (s *LocalStore) ReplaceTagMastery(ctx context.Context, rows []types.TagMastery) error {
	timer := logging.StartTimer(logging.CategoryStore, "ReplaceTagMastery")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Replacing tag mastery cache: %d tags", len(rows))

	return withRetry(ctx, "ReplaceTagMastery", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "DELETE FROM tag_mastery"); err != nil {
				return err
			}
			for _, m := range rows {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO tag_mastery
					 (tag, total_attempts, successful_attempts, success_rate,
					  mastered, decay_score, last_recomputed_at)
					 VALUES (?, ?, ?, ?, ?, ?, ?)`,
					m.Tag, m.TotalAttempts, m.SuccessfulAttempts, m.SuccessRate,
					m.Mastered, m.DecayScore, encodeTime(m.LastRecomputedAt),
				)
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
}
