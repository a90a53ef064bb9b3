// Package transcript persists task transcripts to SQLite for session replay
// and audit. It implements the orchestrator's Recorder interface; writes
// happen inline with the loop, so statements are kept small and indexed.
package transcript

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"shellpilot/internal/logging"
	"shellpilot/internal/types"
)

// Store records tasks and their content blocks in SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// TaskRecord is one persisted task row.
type TaskRecord struct {
	ID          string
	Goal        string
	State       string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// BlockRecord is one persisted content block row.
type BlockRecord struct {
	TaskID    string
	Kind      string
	Text      string
	Commands  []types.Command
	CreatedAt time.Time
}

// NewStore initializes the SQLite database at the given path. ":memory:" is
// accepted for tests.
func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			goal TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			completed_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS blocks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			content TEXT,
			commands TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_task ON blocks(task_id);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// TaskStarted inserts the task row.
func (s *Store) TaskStarted(t *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO tasks (id, goal, state, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Goal, string(t.State), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	logging.Store("task %s recorded", t.ID)
	return nil
}

// BlockAppended inserts one content block row. Commands are stored as JSON;
// the raw text column stays queryable.
func (s *Store) BlockAppended(taskID string, b types.ContentBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var commands []byte
	if len(b.Commands) > 0 {
		var err error
		commands, err = json.Marshal(b.Commands)
		if err != nil {
			return fmt.Errorf("marshal commands: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO blocks (task_id, kind, content, commands, created_at) VALUES (?, ?, ?, ?, ?)`,
		taskID, string(b.Kind), b.Text, string(commands), b.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// TaskFinished updates the task's terminal state and completion time.
func (s *Store) TaskFinished(t *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE tasks SET state = ?, completed_at = ? WHERE id = ?`,
		string(t.State), t.CompletedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// ListTasks returns the most recent tasks, newest first.
func (s *Store) ListTasks(limit int) ([]TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, goal, state, created_at, completed_at
		 FROM tasks ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var records []TaskRecord
	for rows.Next() {
		var r TaskRecord
		// completed_at is NULL until TaskFinished; fall back to created_at.
		// Selecting the raw column (rather than COALESCE in SQL) keeps the
		// driver's declared-type time conversion working.
		var completed sql.NullTime
		if err := rows.Scan(&r.ID, &r.Goal, &r.State, &r.CreatedAt, &completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if completed.Valid {
			r.CompletedAt = completed.Time
		} else {
			r.CompletedAt = r.CreatedAt
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Blocks returns the transcript of one task in append order.
func (s *Store) Blocks(taskID string) ([]BlockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT task_id, kind, content, commands, created_at
		 FROM blocks WHERE task_id = ? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var records []BlockRecord
	for rows.Next() {
		var r BlockRecord
		var commands string
		if err := rows.Scan(&r.TaskID, &r.Kind, &r.Text, &commands, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		if commands != "" {
			if err := json.Unmarshal([]byte(commands), &r.Commands); err != nil {
				return nil, fmt.Errorf("unmarshal commands: %w", err)
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
