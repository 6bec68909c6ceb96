// Package history persists a local ledger of build runs and stage results,
// queried by the `history` command.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded pipeline invocation.
type Run struct {
	RunID       string
	BuildNumber string
	Command     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Outcome     string
}

// StageResult is one stage's recorded result within a run.
type StageResult struct {
	RunID    string
	Stage    string
	Duration time.Duration
	Result   string
	Error    string
}

// Store is a SQLite-backed ledger.
// Use ":memory:" for an in-memory database, or a file path for persistence.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the ledger database and ensures the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		build_number TEXT,
		command TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		outcome TEXT
	);
	CREATE TABLE IF NOT EXISTS stage_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		result TEXT NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_stage_run_id ON stage_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// BeginRun records the start of a pipeline invocation.
func (s *Store) BeginRun(ctx context.Context, runID, buildNumber, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (run_id, build_number, command, started_at) VALUES (?, ?, ?, ?)",
		runID, buildNumber, command, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the terminal outcome of a run.
func (s *Store) FinishRun(ctx context.Context, runID, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, outcome = ? WHERE run_id = ?",
		time.Now().Unix(), outcome, runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// RecordStage appends one stage result for a run.
func (s *Store) RecordStage(ctx context.Context, r StageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO stage_results (run_id, stage, duration_ms, result, error) VALUES (?, ?, ?, ?, ?)",
		r.RunID, r.Stage, r.Duration.Milliseconds(), r.Result, r.Error,
	)
	if err != nil {
		return fmt.Errorf("insert stage result: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, build_number, command, started_at, COALESCE(finished_at, 0), COALESCE(outcome, '') FROM runs ORDER BY started_at DESC, run_id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.RunID, &r.BuildNumber, &r.Command, &started, &finished, &r.Outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		if finished > 0 {
			r.FinishedAt = time.Unix(finished, 0)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// StagesForRun returns the stage results recorded for a run, in insertion order.
func (s *Store) StagesForRun(ctx context.Context, runID string) ([]StageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, stage, duration_ms, result, COALESCE(error, '') FROM stage_results WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stage results: %w", err)
	}
	defer rows.Close()

	var results []StageResult
	for rows.Next() {
		var r StageResult
		var ms int64
		if err := rows.Scan(&r.RunID, &r.Stage, &ms, &r.Result, &r.Error); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return results, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
