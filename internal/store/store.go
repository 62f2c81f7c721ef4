// Package store persists problem definitions and solve runs in SQLite.
package store

import (
	"database/sql"
	"fmt"

	"millwright/internal/logger"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database connection.
type Store struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &Store{sql: sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate() error {
	version := 0
	s.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS templates (
				id      INTEGER PRIMARY KEY,
				name    TEXT NOT NULL,
				task_count        INTEGER NOT NULL DEFAULT 0,
				total_min_minutes INTEGER NOT NULL DEFAULT 0,
				critical_path_min INTEGER NOT NULL DEFAULT 0
			);

			CREATE TABLE IF NOT EXISTS template_tasks (
				id          INTEGER PRIMARY KEY,
				template_id INTEGER NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
				name        TEXT NOT NULL,
				position    INTEGER NOT NULL,
				type        TEXT NOT NULL DEFAULT '',
				department  TEXT NOT NULL DEFAULT '',
				unattended  INTEGER NOT NULL DEFAULT 0,
				setup_only  INTEGER NOT NULL DEFAULT 0,
				UNIQUE(template_id, position)
			);
			CREATE INDEX IF NOT EXISTS idx_task_template ON template_tasks(template_id);

			CREATE TABLE IF NOT EXISTS task_modes (
				id           INTEGER PRIMARY KEY,
				task_id      INTEGER NOT NULL REFERENCES template_tasks(id) ON DELETE CASCADE,
				machine_id   INTEGER NOT NULL,
				duration_min INTEGER NOT NULL,
				name         TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_mode_task ON task_modes(task_id);

			CREATE TABLE IF NOT EXISTS precedences (
				template_id INTEGER NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
				pred_id     INTEGER NOT NULL,
				succ_id     INTEGER NOT NULL,
				lag_min     INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (template_id, pred_id, succ_id)
			);

			CREATE TABLE IF NOT EXISTS instances (
				id          INTEGER PRIMARY KEY,
				template_id INTEGER NOT NULL REFERENCES templates(id),
				due         TEXT,
				priority    INTEGER NOT NULL DEFAULT 0,
				status      TEXT NOT NULL DEFAULT 'pending'
			);

			CREATE TABLE IF NOT EXISTS machines (
				id       INTEGER PRIMARY KEY,
				name     TEXT NOT NULL,
				capacity INTEGER NOT NULL
			);

			CREATE TABLE IF NOT EXISTS machine_downtime (
				machine_id INTEGER NOT NULL REFERENCES machines(id) ON DELETE CASCADE,
				start_min  INTEGER NOT NULL,
				end_min    INTEGER NOT NULL
			);

			CREATE TABLE IF NOT EXISTS setup_times (
				machine_id   INTEGER NOT NULL REFERENCES machines(id) ON DELETE CASCADE,
				from_type    TEXT NOT NULL,
				to_type      TEXT NOT NULL,
				duration_min INTEGER NOT NULL,
				PRIMARY KEY (machine_id, from_type, to_type)
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	if version < 2 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS solve_runs (
				id             TEXT PRIMARY KEY,
				created_at     TEXT NOT NULL,
				template_id    INTEGER NOT NULL,
				status         TEXT NOT NULL,
				objective_kind TEXT NOT NULL,
				objective      INTEGER NOT NULL DEFAULT 0,
				makespan       INTEGER NOT NULL DEFAULT 0,
				horizon        INTEGER NOT NULL DEFAULT 0,
				slot_minutes   INTEGER NOT NULL DEFAULT 0,
				workers        INTEGER NOT NULL DEFAULT 0,
				nodes          INTEGER NOT NULL DEFAULT 0,
				backtracks     INTEGER NOT NULL DEFAULT 0,
				wall_ms        INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_run_created ON solve_runs(created_at);

			CREATE TABLE IF NOT EXISTS assignments (
				run_id      TEXT NOT NULL REFERENCES solve_runs(id) ON DELETE CASCADE,
				instance_id INTEGER NOT NULL,
				task_id     INTEGER NOT NULL,
				mode_id     INTEGER NOT NULL,
				machine_id  INTEGER NOT NULL,
				start_slot  INTEGER NOT NULL,
				end_slot    INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_assignment_run ON assignments(run_id);

			CREATE TABLE IF NOT EXISTS machine_stats (
				run_id      TEXT NOT NULL REFERENCES solve_runs(id) ON DELETE CASCADE,
				machine_id  INTEGER NOT NULL,
				name        TEXT NOT NULL,
				busy_slots  INTEGER NOT NULL,
				utilization REAL NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_stat_run ON machine_stats(run_id);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (solve runs)")
	}

	return nil
}

// SqlDB returns the underlying *sql.DB for use by other packages.
func (s *Store) SqlDB() *sql.DB {
	return s.sql
}
