// Package checkpoint persists run state snapshots to SQLite so that runs
// can suspend on ask_user, survive process restarts, and resume from the
// exact suspension point. One checkpoint row = one full run-state snapshot.
package checkpoint

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"foreman/internal/state"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusSuspended = "suspended"
	StatusDone      = "done"
)

// ErrNotFound is returned when no checkpoint exists for a run id.
var ErrNotFound = errors.New("checkpoint not found")

// Snapshot is one persisted run.
type Snapshot struct {
	RunID     string
	State     *state.State
	Status    string
	Prompt    string // set while suspended on ask_user
	UpdatedAt time.Time
}

// Store persists snapshots keyed by run id.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    run_id     TEXT PRIMARY KEY,
    state_json TEXT NOT NULL,
    status     TEXT NOT NULL,
    prompt     TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Open creates or opens the checkpoint database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize checkpoint schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes a full snapshot, replacing any previous checkpoint for the
// run id.
func (s *Store) Save(runID string, st *state.State, status, prompt string) error {
	data, err := st.Marshal()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
INSERT INTO checkpoints (run_id, state_json, status, prompt, updated_at)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(run_id) DO UPDATE SET
    state_json = excluded.state_json,
    status     = excluded.status,
    prompt     = excluded.prompt,
    updated_at = CURRENT_TIMESTAMP`,
		runID, string(data), status, prompt)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", runID, err)
	}
	return nil
}

// Load restores the snapshot for a run id.
func (s *Store) Load(runID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		"SELECT state_json, status, prompt, updated_at FROM checkpoints WHERE run_id = ?",
		runID)

	var stateJSON, status, prompt string
	var updatedAt time.Time
	if err := row.Scan(&stateJSON, &status, &prompt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("load checkpoint %s: %w", runID, err)
	}

	st, err := state.Unmarshal([]byte(stateJSON))
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		RunID:     runID,
		State:     st,
		Status:    status,
		Prompt:    prompt,
		UpdatedAt: updatedAt,
	}, nil
}

// List returns all known runs, most recently updated first.
func (s *Store) List() ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT run_id, status, prompt, updated_at FROM checkpoints ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.RunID, &snap.Status, &snap.Prompt, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Delete removes a run's checkpoint.
func (s *Store) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM checkpoints WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", runID, err)
	}
	return nil
}
