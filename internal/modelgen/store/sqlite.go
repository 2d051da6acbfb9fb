package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
)

// Store persists pass results using SQLite: the hash of every generated unit
// (so unchanged output is never rewritten across processes) and a history of
// diagnostics per run. Everything in it is re-derivable from source; deleting
// the database only costs a full regeneration.
type Store struct {
	db *sql.DB
}

// NewStore initializes a new Store in the specified cache directory.
// It creates the directory if it doesn't exist and opens/creates 'modelgen.db'.
// It also initializes the database schema if needed.
func NewStore(cacheDir string) (*Store, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	dbPath := filepath.Join(cacheDir, "modelgen.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates the necessary tables and indexes if they do not exist.
func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT,
			models INTEGER,
			units INTEGER,
			errors INTEGER,
			warnings INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS units (
			model_id TEXT,
			file_name TEXT,
			hash TEXT,
			companion INTEGER,
			PRIMARY KEY (model_id, file_name)
		);`,
		`CREATE TABLE IF NOT EXISTS diagnostics (
			run_id INTEGER,
			code TEXT,
			severity TEXT,
			message TEXT,
			file TEXT,
			line INTEGER,
			col INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_diagnostics_run ON diagnostics(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_diagnostics_code ON diagnostics(code);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec schema query: %w", err)
		}
	}
	return nil
}

// RunSummary is one recorded pass.
type RunSummary struct {
	ID        int64
	StartedAt time.Time
	Models    int
	Units     int
	Errors    int
	Warnings  int
}

// RecordPass persists one pass: run summary, unit hashes and diagnostics.
// It returns the run id.
func (s *Store) RecordPass(models int, units []domain.GeneratedUnit, diags []domain.Diagnostic) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	errors, warnings := 0, 0
	for _, d := range diags {
		switch d.Severity {
		case domain.SeverityError:
			errors++
		case domain.SeverityWarning:
			warnings++
		}
	}

	res, err := tx.Exec(`
		INSERT INTO runs (started_at, models, units, errors, warnings)
		VALUES (?, ?, ?, ?, ?)
	`, time.Now().UTC().Format(time.RFC3339), models, len(units), errors, warnings)
	if err != nil {
		return 0, err
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, u := range units {
		companion := 0
		if u.Companion {
			companion = 1
		}
		if _, err := tx.Exec(`
			INSERT INTO units (model_id, file_name, hash, companion)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(model_id, file_name) DO UPDATE SET
				hash=excluded.hash,
				companion=excluded.companion;
		`, u.ModelID, u.FileName, u.Hash, companion); err != nil {
			return 0, err
		}
	}

	for _, d := range diags {
		if _, err := tx.Exec(`
			INSERT INTO diagnostics (run_id, code, severity, message, file, line, col)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, d.Code, string(d.Severity), d.Message, d.Pos.Filename, d.Pos.Line, d.Pos.Column); err != nil {
			return 0, err
		}
	}

	return runID, tx.Commit()
}

// UnitHash returns the recorded hash for a generated unit, or "" when the
// unit has never been recorded.
func (s *Store) UnitHash(modelID, fileName string) (string, error) {
	var hash string
	err := s.db.QueryRow(
		"SELECT hash FROM units WHERE model_id = ? AND file_name = ?",
		modelID, fileName,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// History returns the most recent runs, newest first.
func (s *Store) History(limit int) ([]RunSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, models, units, errors, warnings
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started string
		if err := rows.Scan(&r.ID, &started, &r.Models, &r.Units, &r.Errors, &r.Warnings); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Diagnostics returns the stored diagnostics of one run in insertion order.
func (s *Store) Diagnostics(runID int64) ([]domain.Diagnostic, error) {
	rows, err := s.db.Query(`
		SELECT code, severity, message, file, line, col
		FROM diagnostics WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Diagnostic
	for rows.Next() {
		var d domain.Diagnostic
		var sev string
		if err := rows.Scan(&d.Code, &sev, &d.Message, &d.Pos.Filename, &d.Pos.Line, &d.Pos.Column); err != nil {
			return nil, err
		}
		d.Severity = domain.Severity(sev)
		out = append(out, d)
	}
	return out, rows.Err()
}
