package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/claude/ironlog/internal/logging"
	"github.com/claude/ironlog/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "ironlog server URL (e.g. https://ironlog.tail1234.ts.net)")
	dir := flag.String("path", "", "directory holding Alpha Progression exports (*.csv, *.csv.gz)")
	apiKey := flag.String("api-key", os.Getenv("IRONLOG_API_KEY"), "import API key (defaults to $IRONLOG_API_KEY)")
	stateDir := flag.String("state-dir", "", "upload state directory (default ~/.ironlog-upload)")
	dryRun := flag.Bool("dry-run", false, "parse exports but don't send them")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("ironlog-upload", Version)
		return
	}

	log, closer := logging.New(logging.Params{Level: "info"})
	defer closer.Close()

	if *dir == "" {
		fmt.Fprintf(os.Stderr, "Usage: ironlog-upload -server <URL> -path <export dir> [-api-key KEY] [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if (*serverURL == "" || *apiKey == "") && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -server and -api-key are required (or use -dry-run)\n")
		os.Exit(1)
	}

	if *stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		*stateDir = filepath.Join(homeDir, ".ironlog-upload")
	}

	state, err := upload.OpenStateDB(*stateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	var client *upload.Client
	if !*dryRun {
		client = upload.NewClient(*serverURL, *apiKey)
	} else {
		log.Info("DRY RUN mode: exports will be parsed but not sent")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := upload.New(client, state, *dir, *dryRun, log).Run(ctx)
	printStats(log, stats)
	if err != nil {
		log.Error("upload failed", "error", err)
		os.Exit(1)
	}
	log.Info("upload complete")
}

func printStats(log *slog.Logger, stats *upload.Stats) {
	log.Info("upload summary",
		"files_total", stats.FilesTotal,
		"files_uploaded", stats.FilesUploaded,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"sessions_sent", stats.SessionsSent,
		"workouts_created", stats.WorkoutsCreated,
		"workouts_skipped", stats.WorkoutsSkipped,
		"sets_imported", stats.SetsImported,
	)
}
