package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/ironlog/internal/app"
	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/logging"
	ironmcp "github.com/claude/ironlog/internal/mcp"
	"github.com/claude/ironlog/internal/metrics"
	"github.com/claude/ironlog/internal/server"
	"go.uber.org/multierr"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrationsPath := flag.String("migrations", "migrations", "path to SQL migrations (postgres mode)")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, logCloser := logging.New(logging.Params{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		ToStdout:   cfg.Log.ToStdout,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	log.Info("ironlog starting", "version", Version, "mode", cfg.Backend.Mode)

	if err := run(cfg, log, *migrationsPath, *migrateOnly); err != nil {
		log.Error("ironlog failed", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
	log.Info("server stopped")
	logCloser.Close()
}

func run(cfg *config.Config, log *slog.Logger, migrationsPath string, migrateOnly bool) (err error) {
	ctx := context.Background()

	reg := metrics.NewRegistry()
	m := metrics.NewManager("ironlog", "server", reg)

	rt, err := app.Open(ctx, cfg, app.Options{MigrationsPath: migrationsPath, Metrics: m}, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, rt.Close()) }()

	if migrateOnly {
		log.Info("migrate-only: exiting")
		return nil
	}

	stores := rt.Manager()
	opts := server.Options{
		Stores:      stores,
		Users:       rt.Users,
		Metrics:     m,
		Gatherer:    reg,
		MCP:         ironmcp.New(ironmcp.StoreSource{Stores: stores}, Version, log),
		APIKey:      cfg.Auth.APIKey,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log,
	}
	if rt.DB != nil {
		opts.ImportLogs = rt.DB
	}

	// Listen on the tailnet or plain TCP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			return fmt.Errorf("tsnet start: %w", err)
		}
		defer func() { err = multierr.Append(err, tsServer.Close()) }()

		lc, err := tsServer.LocalClient()
		if err != nil {
			return fmt.Errorf("tsnet local client: %w", err)
		}
		opts.WhoIs = lc

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			return fmt.Errorf("tsnet listen: %w", err)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{
		Handler:           server.New(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down", "signal", sig)
	case err := <-serveErr:
		return fmt.Errorf("serving: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
