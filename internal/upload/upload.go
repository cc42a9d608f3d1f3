// Package upload sends Alpha Progression exports from a local directory to
// a remote ironlog server.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/claude/ironlog/internal/importer"
)

// Stats tracks upload progress.
type Stats struct {
	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int

	SessionsSent    int
	WorkoutsCreated int
	WorkoutsSkipped int
	SetsImported    int
}

// Uploader walks a directory of exports (*.csv, *.csv.gz) and uploads the
// new or changed ones.
type Uploader struct {
	client *Client
	state  *StateDB
	dir    string
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates an Uploader. client may be nil in dry-run mode.
func New(client *Client, state *StateDB, dir string, dryRun bool, log *slog.Logger) *Uploader {
	if log == nil {
		log = slog.Default()
	}
	return &Uploader{client: client, state: state, dir: dir, dryRun: dryRun, log: log}
}

// Run uploads every pending export. A failing file is counted and skipped;
// only cancellation stops the run early.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	files, err := exportFiles(u.dir)
	if err != nil {
		return &u.stats, err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		u.stats.FilesTotal++
		if err := u.process(ctx, f); err != nil {
			u.log.Warn("upload failed", "file", f, "error", err)
			u.stats.FilesErrored++
		}
	}
	return &u.stats, nil
}

func (u *Uploader) process(ctx context.Context, path string) error {
	relPath, _ := filepath.Rel(u.dir, path)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hash, err := HashFile(path)
	if err != nil {
		return fmt.Errorf("hashing: %w", err)
	}

	uploaded, err := u.state.IsUploaded(ctx, relPath, info.Size(), hash)
	if err != nil {
		return err
	}
	if uploaded {
		u.stats.FilesSkipped++
		u.log.Debug("already uploaded", "file", relPath)
		return nil
	}

	data, err := readExport(path)
	if err != nil {
		return err
	}

	if u.dryRun {
		sessions, err := importer.Parse(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("parsing: %w", err)
		}
		u.stats.SessionsSent += len(sessions)
		u.log.Info("dry run: would upload", "file", relPath, "sessions", len(sessions))
		return nil
	}

	stats, err := u.client.UploadAlpha(ctx, data)
	if err != nil {
		return err
	}
	u.stats.FilesUploaded++
	u.stats.SessionsSent += stats.SessionsReceived
	u.stats.WorkoutsCreated += stats.WorkoutsCreated
	u.stats.WorkoutsSkipped += stats.WorkoutsSkipped
	u.stats.SetsImported += stats.SetsImported
	u.log.Info("uploaded export", "file", relPath, "workouts_created", stats.WorkoutsCreated)

	return u.state.MarkUploaded(ctx, relPath, info.Size(), hash, stats.WorkoutsCreated)
}

// readExport returns the decompressed export.
func readExport(path string) ([]byte, error) {
	rc, err := importer.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func exportFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.csv", "*.csv.gz"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, m...)
	}
	sort.Strings(files)
	return files, nil
}
