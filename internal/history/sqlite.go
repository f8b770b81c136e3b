package history

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store keeps finished runs in SQLite so repeated start/target pairs can be
// compared across invocations
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the history database and initializes its schema
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_article TEXT NOT NULL,
		target_article TEXT NOT NULL,
		status TEXT NOT NULL,
		steps INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		path TEXT NOT NULL,
		reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_pair ON runs(start_article, target_article);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun records a finished traversal and returns its run_id
func (s *Store) SaveRun(run Run) (int, error) {
	pathJSON, err := json.Marshal(run.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal path: %w", err)
	}

	result, err := s.db.Exec(`
		INSERT INTO runs (start_article, target_article, status, steps, elapsed_ms, path, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.Start, run.Target, run.Status, run.Steps, run.ElapsedMs, string(pathJSON), run.Reason)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to retrieve run_id: %w", err)
	}

	return int(runID), nil
}

// BestRun returns the successful run with the fewest steps for a start/target
// pair, or nil if the pair has never succeeded
func (s *Store) BestRun(start, target string) (*Run, error) {
	var run Run
	var pathJSON string

	err := s.db.QueryRow(`
		SELECT run_id, start_article, target_article, status, steps, elapsed_ms, path, reason, created_at
		FROM runs
		WHERE start_article = ? AND target_article = ? AND status = 'FOUND'
		ORDER BY steps ASC, elapsed_ms ASC
		LIMIT 1
	`, start, target).Scan(&run.RunID, &run.Start, &run.Target, &run.Status, &run.Steps, &run.ElapsedMs, &pathJSON, &run.Reason, &run.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get best run: %w", err)
	}

	if err := json.Unmarshal([]byte(pathJSON), &run.Path); err != nil {
		return nil, fmt.Errorf("failed to unmarshal path: %w", err)
	}

	return &run, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
