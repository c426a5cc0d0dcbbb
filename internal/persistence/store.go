// Package persistence implements the host's two on-disk key/value stores:
// the filesystem-tree blob and the snapshot blob(s). Every call reopens the
// underlying SQLite database — there is no shared connection state to get
// out of sync across the command surface's independently-dispatched
// handlers.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoDataDir is returned when no data directory is configured (an empty
// path). A directory that cannot be created yields a separate wrapped error.
var ErrNoDataDir = errors.New("no app dir")

const fsSchema = `CREATE TABLE IF NOT EXISTS fs_state (id INTEGER PRIMARY KEY, json TEXT);`

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshot_state (id INTEGER PRIMARY KEY, json TEXT);
CREATE TABLE IF NOT EXISTS snapshots (name TEXT PRIMARY KEY, json TEXT);
`

// Store is the persistence adapter described in the spec's component A.
// It holds only the configured data directory; every operation opens,
// uses, and closes its own database handle.
type Store struct {
	dataDir string
}

// New creates a Store rooted at dataDir, creating the directory if it does
// not already exist. Returns ErrNoDataDir if dataDir is empty.
func New(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, ErrNoDataDir
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dataDir: dataDir}, nil
}

func (s *Store) open(file, schema string) (*sql.DB, error) {
	path := filepath.Join(s.dataDir, file)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", file, err)
	}
	return db, nil
}

// SaveFS upserts the singleton filesystem-tree blob.
func (s *Store) SaveFS(raw json.RawMessage) error {
	db, err := s.open("fs.db", fsSchema)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(`INSERT OR REPLACE INTO fs_state (id, json) VALUES (0, ?)`, string(raw))
	return err
}

// LoadFS returns the singleton filesystem-tree blob, or nil if none has
// been saved yet.
func (s *Store) LoadFS() (json.RawMessage, error) {
	db, err := s.open("fs.db", fsSchema)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return loadRow(db, `SELECT json FROM fs_state WHERE id = 0`)
}

// SaveSnapshot upserts the singleton snapshot blob.
func (s *Store) SaveSnapshot(raw json.RawMessage) error {
	db, err := s.open("snapshot.db", snapshotSchema)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(`INSERT OR REPLACE INTO snapshot_state (id, json) VALUES (0, ?)`, string(raw))
	return err
}

// LoadSnapshot returns the singleton snapshot blob, or nil if none has been
// saved yet.
func (s *Store) LoadSnapshot() (json.RawMessage, error) {
	db, err := s.open("snapshot.db", snapshotSchema)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return loadRow(db, `SELECT json FROM snapshot_state WHERE id = 0`)
}

// SaveNamedSnapshot upserts a named snapshot row.
func (s *Store) SaveNamedSnapshot(name string, raw json.RawMessage) error {
	db, err := s.open("snapshot.db", snapshotSchema)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(`INSERT OR REPLACE INTO snapshots (name, json) VALUES (?, ?)`, name, string(raw))
	return err
}

// LoadNamedSnapshot returns the named snapshot row, or nil if absent.
func (s *Store) LoadNamedSnapshot(name string) (json.RawMessage, error) {
	db, err := s.open("snapshot.db", snapshotSchema)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return loadRowArgs(db, `SELECT json FROM snapshots WHERE name = ?`, name)
}

func loadRow(db *sql.DB, query string) (json.RawMessage, error) {
	return loadRowArgs(db, query)
}

func loadRowArgs(db *sql.DB, query string, args ...interface{}) (json.RawMessage, error) {
	var text string
	err := db.QueryRow(query, args...).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	// A stored row whose text isn't valid JSON would silently corrupt the
	// caller; fail loudly instead of downgrading to null.
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("stored value is not valid JSON")
	}
	return json.RawMessage(text), nil
}
