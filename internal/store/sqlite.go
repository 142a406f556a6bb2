package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// SQLiteStore persists progress, results and LLM request events in a
// single SQLite database. Progress rows are keyed by respondent id and
// upserted; results and events are append-only.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn, applies recommended
// pragmas and creates the schema.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS progress (
		respondent_id TEXT PRIMARY KEY,
		data_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL,
		data_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at);

	CREATE TABLE IF NOT EXISTS llm_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error_message TEXT,
		request_body TEXT,
		response_body TEXT
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveProgress(ctx context.Context, respondentID string, p *Progress) error {
	if respondentID == "" {
		return fmt.Errorf("respondent id is empty")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	query := `
	INSERT INTO progress (respondent_id, data_json, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(respondent_id) DO UPDATE SET
		data_json = excluded.data_json,
		updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query, respondentID, string(data), p.LastUpdate.Unix())
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadProgress(ctx context.Context, respondentID string) (*Progress, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data_json FROM progress WHERE respondent_id = ?`, respondentID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}

	var p Progress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) DeleteProgress(ctx context.Context, respondentID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM progress WHERE respondent_id = ?`, respondentID)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendResult(ctx context.Context, r *Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (created_at, data_json) VALUES (?, ?)`,
		r.Timestamp.Unix(), string(data))
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	query := `
	INSERT INTO llm_events (
		created_at, provider, model, purpose, input_tokens, output_tokens,
		latency_ms, success, error_message, request_body, response_body
	) VALUES (strftime('%s','now'), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		data.Provider, data.Model, data.Purpose,
		data.InputTokens, data.OutputTokens, data.LatencyMs,
		data.Success, data.ErrorMessage, data.RequestBody, data.ResponseBody,
	)
	if err != nil {
		return fmt.Errorf("insert llm event: %w", err)
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. MINDSCALE_DB environment variable
// 2. $XDG_DATA_HOME/mindscale/mindscale.db
// 3. ~/.local/share/mindscale/mindscale.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("MINDSCALE_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "mindscale", "mindscale.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
