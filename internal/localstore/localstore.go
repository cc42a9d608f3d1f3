// Package localstore is the local fallback store: per-user key -> JSON
// snapshots and a users table in a SQLite file.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/claude/ironlog/internal/workouts"
	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the state directory.
const FileName = "ironlog.db"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		user_id    INTEGER NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		login        TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_seen    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Store persists snapshots in SQLite.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the SQLite database at dir/ironlog.db.
func Open(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("opening local db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating local tables: %w", err)
		}
	}

	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log}, nil
}

// LoadSnapshot returns the stored value for key. A value that is not valid
// JSON is deleted and reported as absent with an error wrapping
// workouts.ErrSnapshotDiscarded.
func (s *Store) LoadSnapshot(ctx context.Context, userID int, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM snapshots WHERE user_id = ? AND key = ?`, userID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading snapshot %s: %w", key, err)
	}
	if !json.Valid([]byte(value)) {
		s.log.Warn("discarding unparsable snapshot", "user_id", userID, "key", key)
		if err := s.DeleteSnapshot(ctx, userID, key); err != nil {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("snapshot %s: %w", key, workouts.ErrSnapshotDiscarded)
	}
	return []byte(value), true, nil
}

// SaveSnapshot stores value under key, replacing any previous value.
func (s *Store) SaveSnapshot(ctx context.Context, userID int, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (user_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		userID, key, string(value))
	if err != nil {
		return fmt.Errorf("writing snapshot %s: %w", key, err)
	}
	return nil
}

// DeleteSnapshot removes key. Deleting a missing key is not an error.
func (s *Store) DeleteSnapshot(ctx context.Context, userID int, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE user_id = ? AND key = ?`, userID, key)
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", key, err)
	}
	return nil
}

// GetOrCreateUser finds or creates a user by login name and returns its id.
// Updates last_seen and display_name on each call.
func (s *Store) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (login, display_name)
		VALUES (?, ?)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = CURRENT_TIMESTAMP,
			    display_name = COALESCE(NULLIF(excluded.display_name, ''), users.display_name)
		RETURNING id`, login, displayName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting user %q: %w", login, err)
	}
	return id, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
