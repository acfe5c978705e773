package store

import (
	"context"
	"fmt"
)

// Tables lists every table the migrations create.
var Tables = []string{"projects", "test_runs", "manual_test_sessions", "manual_test_items", "meta"}

// Migrate brings the schema up to date. It is idempotent and safe to call on
// a live database.
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.migrateV1(ctx); err != nil {
		return err
	}
	return s.migrateV2(ctx)
}

// SchemaVersion returns the recorded schema version.
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	var version string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) migrateV1(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		base_url   TEXT,
		port       INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS test_runs (
		id             INTEGER PRIMARY KEY,
		project_id     TEXT NOT NULL,
		timestamp      INTEGER NOT NULL,
		stats_total    INTEGER NOT NULL DEFAULT 0,
		stats_passed   INTEGER NOT NULL DEFAULT 0,
		stats_failed   INTEGER NOT NULL DEFAULT 0,
		stats_skipped  INTEGER NOT NULL DEFAULT 0,
		stats_duration REAL NOT NULL DEFAULT 0,
		source         TEXT NOT NULL DEFAULT 'ci-upload',
		exit_code      INTEGER NOT NULL DEFAULT 0,
		suites         TEXT NOT NULL DEFAULT '[]',
		errors         TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_runs_project ON test_runs(project_id, id);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON test_runs(timestamp);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}
	return nil
}

func (s *Store) migrateV2(ctx context.Context) error {
	var version string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if err != nil || version >= "2" {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS manual_test_sessions (
		session_id    TEXT PRIMARY KEY,
		project_id    TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'in_progress'
		              CHECK (status IN ('in_progress', 'completed', 'cancelled')),
		started_at    INTEGER NOT NULL,
		completed_at  INTEGER,
		total_items   INTEGER NOT NULL DEFAULT 0,
		passed_items  INTEGER NOT NULL DEFAULT 0,
		failed_items  INTEGER NOT NULL DEFAULT 0,
		skipped_items INTEGER NOT NULL DEFAULT 0,
		created_by    TEXT,
		notes         TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_manual_sessions_project ON manual_test_sessions(project_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_manual_sessions_status ON manual_test_sessions(status);

	CREATE TABLE IF NOT EXISTS manual_test_items (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id        TEXT NOT NULL REFERENCES manual_test_sessions(session_id) ON DELETE CASCADE,
		item_index        INTEGER NOT NULL CHECK (item_index >= 0),
		category          TEXT,
		title             TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'pending'
		                  CHECK (status IN ('pending', 'passed', 'failed', 'skipped')),
		error_description TEXT,
		is_custom         INTEGER NOT NULL DEFAULT 0,
		tested_at         INTEGER,
		kanban_card_id    TEXT,
		UNIQUE (session_id, item_index)
	);

	CREATE INDEX IF NOT EXISTS idx_manual_items_category ON manual_test_items(session_id, category);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute migration v2: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '2')`); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}
