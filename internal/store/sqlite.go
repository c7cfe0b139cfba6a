package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/jobscout/internal/model"
)

// SQLiteStore keeps the current candidate profile in a SQLite database so it
// survives between CLI invocations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// profile table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	// A single row: there is at most one current profile.
	createTable := `CREATE TABLE IF NOT EXISTS profile (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		data       TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating profile table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveProfile replaces the stored profile.
func (s *SQLiteStore) SaveProfile(p model.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO profile (id, data, updated_at) VALUES (1, ?, ?)",
		string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// LoadProfile returns the stored profile. ok is false when none is stored.
func (s *SQLiteStore) LoadProfile() (p model.Profile, ok bool, err error) {
	var data string
	err = s.db.QueryRow("SELECT data FROM profile WHERE id = 1").Scan(&data)
	if err == sql.ErrNoRows {
		return model.Profile{}, false, nil
	}
	if err != nil {
		return model.Profile{}, false, fmt.Errorf("loading profile: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return model.Profile{}, false, fmt.Errorf("decoding stored profile: %w", err)
	}
	return p, true, nil
}

// ClearProfile deletes the stored profile. Clearing an empty store is a no-op.
func (s *SQLiteStore) ClearProfile() error {
	if _, err := s.db.Exec("DELETE FROM profile"); err != nil {
		return fmt.Errorf("clearing profile: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
