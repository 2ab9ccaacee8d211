// Package store implements the persistence port over SQLite. One LocalStore
// per user; object spaces are problems (+problem_tags multi-index), attempts,
// sessions, tag_mastery, the session_state singleton, and the append-only
// user_actions telemetry log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"leetcoach/internal/logging"
	"leetcoach/internal/types"
)

// LocalStore is the single shared mutable resource of the core. Writes are
// serialized through an internal mutex on top of SQLite's own locking;
// non-overlapping write sets per component eliminate most conflicts.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Conflict retry policy: max 3 attempts with exponential backoff starting at
// 1 second.
const (
	conflictRetries      = 3
	conflictBackoffStart = time.Second
)

// NewLocalStore initializes the SQLite database at the given path.
func NewLocalStore(path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("Initializing LocalStore at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// PRAGMA synchronous=NORMAL provides 5-10x write speedup with WAL mode
	// (vs FULL which is default). Safe because WAL already provides crash recovery.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable sqlite foreign_keys: %v", err)
	}

	store := &LocalStore{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Database schema initialized successfully")

	logging.Store("LocalStore initialization complete (problems, attempts, sessions, tag_mastery, session_state ready)")
	return store, nil
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	problemsTable := `
	CREATE TABLE IF NOT EXISTS problems (
		problem_id TEXT PRIMARY KEY,
		leetcode_id INTEGER NOT NULL UNIQUE,
		title TEXT NOT NULL,
		slug TEXT,
		difficulty TEXT NOT NULL,
		box_level INTEGER NOT NULL DEFAULT 1,
		review_schedule DATETIME NOT NULL,
		last_attempt_date DATETIME,
		attempts_total INTEGER NOT NULL DEFAULT 0,
		attempts_successful INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_problems_leetcode ON problems(leetcode_id);
	CREATE INDEX IF NOT EXISTS idx_problems_review ON problems(review_schedule);
	CREATE INDEX IF NOT EXISTS idx_problems_box ON problems(box_level);
	`

	// Multi-entry tag index: one row per (problem, tag).
	problemTagsTable := `
	CREATE TABLE IF NOT EXISTS problem_tags (
		problem_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (problem_id, tag),
		FOREIGN KEY (problem_id) REFERENCES problems(problem_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_problem_tags_tag ON problem_tags(tag);
	`

	attemptsTable := `
	CREATE TABLE IF NOT EXISTS attempts (
		attempt_id TEXT PRIMARY KEY,
		problem_id TEXT NOT NULL,
		session_id TEXT,
		attempt_date DATETIME NOT NULL,
		success BOOLEAN NOT NULL,
		time_spent_secs INTEGER NOT NULL DEFAULT 0,
		hints_used INTEGER NOT NULL DEFAULT 0,
		box_level_at_attempt INTEGER NOT NULL DEFAULT 1,
		comments TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_problem ON attempts(problem_id);
	CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts(session_id);
	CREATE INDEX IF NOT EXISTS idx_attempts_date ON attempts(attempt_date);
	CREATE INDEX IF NOT EXISTS idx_attempts_problem_date ON attempts(problem_id, attempt_date);
	`

	sessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		session_type TEXT NOT NULL,
		status TEXT NOT NULL,
		origin TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		last_activity_time DATETIME NOT NULL,
		problems_json TEXT NOT NULL DEFAULT '[]',
		attempt_ids_json TEXT NOT NULL DEFAULT '[]',
		current_problem_index INTEGER NOT NULL DEFAULT 0,
		accuracy REAL,
		duration_minutes REAL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_type ON sessions(session_type);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(last_activity_time);
	`

	masteryTable := `
	CREATE TABLE IF NOT EXISTS tag_mastery (
		tag TEXT PRIMARY KEY,
		total_attempts INTEGER NOT NULL DEFAULT 0,
		successful_attempts INTEGER NOT NULL DEFAULT 0,
		success_rate REAL NOT NULL DEFAULT 0,
		mastered BOOLEAN NOT NULL DEFAULT 0,
		decay_score REAL NOT NULL DEFAULT 1.0,
		last_recomputed_at DATETIME NOT NULL
	);
	`

	stateTable := `
	CREATE TABLE IF NOT EXISTS session_state (
		id TEXT PRIMARY KEY CHECK (id = 'session_state'),
		state_json TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	actionsTable := `
	CREATE TABLE IF NOT EXISTS user_actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		payload TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_user_actions_kind ON user_actions(kind);
	`

	for _, table := range []string{
		problemsTable,
		problemTagsTable,
		attemptsTable,
		sessionsTable,
		masteryTable,
		stateTable,
		actionsTable,
	} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *LocalStore) Close() error {
	logging.Store("Closing LocalStore database connection")
	return s.db.Close()
}

// GetDB returns the underlying SQL database connection.
func (s *LocalStore) GetDB() *sql.DB {
	return s.db
}

// GetStats returns per-table row counts.
func (s *LocalStore) GetStats() (map[string]int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetStats")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{"problems", "problem_tags", "attempts", "sessions", "tag_mastery", "user_actions"}

	for _, table := range tables {
		var count int64
		err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			logging.StoreDebug("Table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}

	return stats, nil
}

// =============================================================================
// ERROR MAPPING AND CONFLICT RETRY
// =============================================================================

// isBusy reports whether err is a SQLite lock contention error.
func isBusy(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	return false
}

// mapErr converts driver errors into the shared error taxonomy.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return types.WrapError(types.KindNotFound, err, "%s: record not found", op)
	case errors.Is(err, context.DeadlineExceeded):
		return types.WrapError(types.KindTimedOut, err, "%s: deadline exceeded", op)
	case isBusy(err):
		return types.WrapError(types.KindConflictAborted, err, "%s: transaction aborted", op)
	default:
		return types.WrapError(types.KindStoreUnavailable, err, "%s: store operation failed", op)
	}
}

// withRetry runs fn, retrying lock-contention aborts up to conflictRetries
// times with exponential backoff. Other errors pass through immediately.
func withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := conflictBackoffStart
	var err error
	for attempt := 1; attempt <= conflictRetries; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return mapErr(op, err)
		}
		logging.Get(logging.CategoryStore).Warn("%s: conflict aborted (attempt %d/%d), backing off %v", op, attempt, conflictRetries, backoff)
		select {
		case <-ctx.Done():
			return mapErr(op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return mapErr(op, err)
}

// inTx runs fn inside a transaction, committing on success and rolling back
// on error. The write mutex must already be held for readwrite use.
func (s *LocalStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// =============================================================================
// TIME ENCODING - instants are stored as RFC3339 UTC strings
// =============================================================================

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", v)
}

func encodeTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}
