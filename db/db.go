// ABOUTME: Database connection management and initialization
// ABOUTME: Opens SQLite in WAL mode with immediate transactions at the XDG data path
package db

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// dsnOptions: WAL for concurrent readers, immediate transactions so the
// overlap check and the insert hold the write lock together, a busy timeout
// so short lock waits do not surface as errors.
const dsnOptions = "?_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"

func OpenDatabase(path string) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+dsnOptions)
	if err != nil {
		return nil, err
	}

	// Configure connection pool for SQLite (avoid database locked errors)
	db.SetMaxOpenConns(1)

	// Initialize schema
	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
