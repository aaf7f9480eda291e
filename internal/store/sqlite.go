package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements RunStore on a local SQLite file.
type SQLiteStore struct {
	sqlStore
	dbPath string
}

// NewSQLiteStore opens dbPath, creating the file and schema if needed.
// ":memory:" opens a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases and WAL writes coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		sqlStore: sqlStore{db: db},
		dbPath:   dbPath,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.dbPath }

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		condition_label TEXT NOT NULL DEFAULT '',
		organism TEXT NOT NULL DEFAULT '',
		experiment TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		min_quality REAL NOT NULL DEFAULT 0,
		quality_filter INTEGER NOT NULL DEFAULT 1,
		total_identified INTEGER NOT NULL DEFAULT 0,
		total_screened INTEGER NOT NULL DEFAULT 0,
		total_excluded INTEGER NOT NULL DEFAULT 0,
		total_included INTEGER NOT NULL DEFAULT 0,
		flow_document TEXT
	);

	CREATE TABLE IF NOT EXISTS screening_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		screened_at DATETIME NOT NULL,
		record_id TEXT NOT NULL,
		source_database TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		decision TEXT NOT NULL CHECK (decision IN ('included', 'excluded')),
		reason TEXT NOT NULL DEFAULT '',
		quality_score REAL,
		notes TEXT NOT NULL DEFAULT '',
		UNIQUE(run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_label ON runs(label);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_entries_run ON screening_entries(run_id);
	`

	_, err := db.Exec(schema)
	return err
}
