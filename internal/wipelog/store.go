// Package wipelog persists proof of erasure: a SQLite audit store for the
// station plus the operator-facing CSV wipe log.
package wipelog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultPath is the default audit database location
const DefaultPath = "/var/lib/sanistation/audit.db"

// Record is one completed (or failed) tool run against a drive.
type Record struct {
	ID          int64
	RunID       string
	Bay         string
	DevicePath  string
	Target      string
	MappingHint string
	Size        string
	Model       string
	Serial      string
	Transport   string
	Method      string
	Standard    string
	Tool        string
	Command     string
	OK          bool
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Store wraps the SQLite audit database
type Store struct {
	conn *sql.DB
	path string
}

// Open opens or creates the audit database at the given path
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	var version int
	if err := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return err
	}

	migrations := []string{migrationV1}
	for i, migration := range migrations {
		v := i + 1
		if v <= version {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migration); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d failed: %w", v, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

const migrationV1 = `
CREATE TABLE IF NOT EXISTS wipe_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	bay TEXT,
	device_path TEXT,
	target TEXT NOT NULL,
	mapping_hint TEXT,
	size TEXT,
	model TEXT,
	serial TEXT,
	transport TEXT,
	method TEXT,
	standard TEXT,
	tool TEXT,
	command TEXT,
	ok INTEGER NOT NULL,
	error TEXT,
	started_at TIMESTAMP,
	finished_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_wipe_runs_serial ON wipe_runs(serial);
CREATE INDEX IF NOT EXISTS idx_wipe_runs_finished ON wipe_runs(finished_at);
`

// Insert stores a record and assigns it a run UUID if it has none.
func (s *Store) Insert(r *Record) error {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}

	result, err := s.conn.Exec(`
		INSERT INTO wipe_runs (
			run_id, bay, device_path, target, mapping_hint, size, model,
			serial, transport, method, standard, tool, command, ok, error,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.RunID, r.Bay, r.DevicePath, r.Target, r.MappingHint, r.Size,
		r.Model, r.Serial, r.Transport, r.Method, r.Standard, r.Tool,
		r.Command, boolInt(r.OK), r.Error, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert wipe run: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		r.ID = id
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.Query(`
		SELECT id, run_id, bay, device_path, target, mapping_hint, size,
			model, serial, transport, method, standard, tool, command, ok,
			error, started_at, finished_at
		FROM wipe_runs
		ORDER BY finished_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query wipe runs: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// BySerial returns all runs recorded for a drive serial, newest first.
func (s *Store) BySerial(serial string) ([]*Record, error) {
	rows, err := s.conn.Query(`
		SELECT id, run_id, bay, device_path, target, mapping_hint, size,
			model, serial, transport, method, standard, tool, command, ok,
			error, started_at, finished_at
		FROM wipe_runs
		WHERE serial = ?
		ORDER BY finished_at DESC, id DESC
	`, serial)
	if err != nil {
		return nil, fmt.Errorf("failed to query wipe runs: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		var r Record
		var ok int
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.Bay, &r.DevicePath, &r.Target, &r.MappingHint,
			&r.Size, &r.Model, &r.Serial, &r.Transport, &r.Method, &r.Standard,
			&r.Tool, &r.Command, &ok, &r.Error, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, err
		}
		r.OK = ok != 0
		out = append(out, &r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
