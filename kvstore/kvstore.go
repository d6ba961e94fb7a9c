// Package kvstore provides a durable keyed store backed by a single SQLite
// file. Fields keep their first-insert order, which callers rely on when
// rendering stored metadata.
package kvstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	_ "modernc.org/sqlite" // sqlite driver
)

// ErrKeyNotFound is returned when a key does not exist in the store.
var ErrKeyNotFound = errors.New("key not found")

const (
	busyRetryAttempts = 5
	busyRetryDelay    = 50 * time.Millisecond
)

// Entry is a single key/value pair in insertion order.
type Entry struct {
	Key   string
	Value string
}

// Store is a keyed store over one SQLite database file. A Store is intended
// to be opened, mutated and closed per call site; concurrent openers of the
// same file are serialized by SQLite, with busy errors retried.
type Store struct {
	db *sql.DB
}

// Open opens the store at path, creating the database file and schema when
// they do not exist yet.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}

	if _, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS fields (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			seq   INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to initialize store schema at %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Set upserts the value for key. A new key is appended after all existing
// keys; overwriting an existing key keeps its original position.
func (s *Store) Set(key, value string) error {
	return s.retryBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO fields (key, value, seq)
			VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM fields))
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)

		return err
	})
}

// Get returns the value for key, or ErrKeyNotFound.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM fields WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return "", err
	}

	return value, nil
}

// All returns every entry in insertion order.
func (s *Store) All() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT key, value FROM fields ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Delete removes key from the store. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	return s.retryBusy(func() error {
		_, err := s.db.Exec(`DELETE FROM fields WHERE key = ?`, key)

		return err
	})
}

// retryBusy retries fn while SQLite reports the database as busy or locked,
// which happens when another process holds the write lock on the same file.
func (s *Store) retryBusy(fn func() error) error {
	return retry.Do(fn,
		retry.Attempts(busyRetryAttempts),
		retry.Delay(busyRetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isBusyErr),
	)
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
