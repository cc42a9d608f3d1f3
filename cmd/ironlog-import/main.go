package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/ironlog/internal/app"
	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/importer"
	"github.com/claude/ironlog/internal/logging"
	"github.com/claude/ironlog/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	filePath := flag.String("file", "", "path to an Alpha Progression CSV export, optionally gzipped (required)")
	login := flag.String("login", "local", "login of the user who receives the templates")
	displayName := flag.String("name", "", "display name used when the user is created")
	migrationsPath := flag.String("migrations", "migrations", "path to SQL migrations (postgres mode)")
	dryRun := flag.Bool("dry-run", false, "report counts without creating templates")
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: ironlog-import -config config.yaml -file export.csv [-login user@example.com] [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, closer := logging.New(logging.Params{Level: cfg.Log.Level, ToStdout: true})
	defer closer.Close()

	if *dryRun {
		log.Info("DRY RUN mode: no templates will be created")
	}

	if err := run(cfg, log, *filePath, *login, *displayName, *migrationsPath, *dryRun); err != nil {
		log.Error("import failed", "error", err)
		closer.Close()
		os.Exit(1)
	}
	log.Info("import complete")
}

func run(cfg *config.Config, log *slog.Logger, path, login, displayName, migrationsPath string, dryRun bool) error {
	ctx := context.Background()

	rt, err := app.Open(ctx, cfg, app.Options{MigrationsPath: migrationsPath}, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	uid, err := rt.Users.GetOrCreateUser(ctx, login, displayName)
	if err != nil {
		return fmt.Errorf("resolving user %q: %w", login, err)
	}
	st, err := rt.Store(uid, false)
	if err != nil {
		return err
	}
	if err := st.Load(ctx); err != nil {
		return fmt.Errorf("loading workouts: %w", err)
	}

	f, err := importer.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	stats, importErr := importer.New(log, dryRun).Import(ctx, st, f)
	printStats(log, stats)

	if rt.DB != nil && !dryRun {
		logImport(ctx, log, rt.DB, uid, stats, importErr, int(time.Since(start).Milliseconds()))
	}
	return importErr
}

func logImport(ctx context.Context, log *slog.Logger, db *storage.DB, uid int, stats *importer.Stats, importErr error, durationMs int) {
	entry := storage.ImportLog{
		UserID:           uid,
		Source:           "alpha-cli",
		Status:           "success",
		SessionsReceived: stats.SessionsReceived,
		WorkoutsCreated:  stats.WorkoutsCreated,
		SetsImported:     stats.SetsImported,
		DurationMs:       &durationMs,
	}
	if importErr != nil {
		msg := importErr.Error()
		entry.Status = "error"
		entry.ErrorMessage = &msg
	}
	if _, err := db.InsertImportLog(ctx, entry); err != nil {
		log.Warn("failed to log import", "error", err)
	}
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"sessions_received", stats.SessionsReceived,
		"workouts_created", stats.WorkoutsCreated,
		"workouts_skipped", stats.WorkoutsSkipped,
		"sets_imported", stats.SetsImported,
		"warmups_dropped", stats.WarmupsDropped,
	)
}
