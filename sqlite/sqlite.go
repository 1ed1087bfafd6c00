package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore implements botflow.Store on a single SQLite file.
// Suitable for single-process deployments and tests; the write mutex
// serializes mutations so the driver never sees a busy database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) a SQLite database at path. Use ":memory:"
// for an ephemeral store.
func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("botflow: open database: %w", err)
	}

	// A single connection keeps :memory: databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("botflow: enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("botflow: enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Timestamps are stored as fixed-width UTC text so lexicographic
// order matches chronological order in SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
