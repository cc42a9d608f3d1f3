package upload

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// StateDB remembers which export files were uploaded, by path, size and
// content hash, so unchanged exports are not sent twice.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS uploaded_exports (
		path             TEXT PRIMARY KEY,
		size             INTEGER NOT NULL,
		hash             TEXT NOT NULL,
		workouts_created INTEGER NOT NULL DEFAULT 0,
		uploaded_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsUploaded reports whether the file was uploaded with the same size and hash.
func (s *StateDB) IsUploaded(ctx context.Context, relPath string, size int64, hash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM uploaded_exports WHERE path = ? AND size = ? AND hash = ?`,
		relPath, size, hash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking upload state: %w", err)
	}
	return count > 0, nil
}

// MarkUploaded records a successful upload. A changed file replaces its
// earlier record.
func (s *StateDB) MarkUploaded(ctx context.Context, relPath string, size int64, hash string, workoutsCreated int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO uploaded_exports (path, size, hash, workouts_created) VALUES (?, ?, ?, ?)`,
		relPath, size, hash, workoutsCreated,
	)
	if err != nil {
		return fmt.Errorf("recording upload: %w", err)
	}
	return nil
}

func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashFile computes the SHA-256 hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
