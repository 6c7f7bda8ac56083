// Package store persists the signed-in session in SQLite.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/xonecas/moji/internal/config"
)

//go:embed schema.sql
var schemaV1 string

// migrations[i] takes a database from user_version i to i+1.
var migrations = []string{
	schemaV1,
}

// Store is the local database.
type Store struct {
	db *sql.DB
}

// New opens moji.db in the data directory.
func New() (*Store, error) {
	dir, err := config.EnsureDataDir()
	if err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	return Open(filepath.Join(dir, "moji.db"))
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	return open(path, 0, true)
}

// OpenMemory opens a private in-memory database.
func OpenMemory() (*Store, error) {
	// Every pooled connection would see its own empty database.
	return open(":memory:", 1, false)
}

func open(dsn string, maxConns int, wal bool) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if wal {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Version returns the schema version recorded in the database.
func (s *Store) Version() (int, error) {
	var v int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// migrate applies every migration newer than the recorded version, each in
// its own transaction.
func (s *Store) migrate() error {
	from, err := s.Version()
	if err != nil {
		return err
	}
	if from > len(migrations) {
		return fmt.Errorf("database schema v%d is newer than this build (v%d)", from, len(migrations))
	}

	for v := from; v < len(migrations); v++ {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("record v%d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit v%d: %w", v+1, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
