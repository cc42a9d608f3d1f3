// Package app opens the configured persistence mode and builds per-user
// workout stores on top of it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/localstore"
	"github.com/claude/ironlog/internal/metrics"
	"github.com/claude/ironlog/internal/restclient"
	"github.com/claude/ironlog/internal/storage"
	"github.com/claude/ironlog/internal/workouts"
	"go.uber.org/multierr"
)

// UserResolver maps a login to a numeric user id.
type UserResolver interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

// Runtime is an opened persistence mode.
type Runtime struct {
	Mode  string
	Users UserResolver

	// DB is set in postgres mode only.
	DB *storage.DB

	backend workouts.Backend
	local   workouts.Snapshotter
	log     *slog.Logger
	metrics *metrics.Manager
	closers []func() error
}

// Options tune Open.
type Options struct {
	// MigrationsPath is applied before connecting in postgres mode. Empty
	// skips migrations.
	MigrationsPath string
	Metrics        *metrics.Manager
}

// Open connects the backend selected by cfg.Backend.Mode.
func Open(ctx context.Context, cfg *config.Config, opts Options, log *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Mode: cfg.Backend.Mode, log: log, metrics: opts.Metrics}

	switch cfg.Backend.Mode {
	case config.ModePostgres:
		dsn := cfg.Database.DSN()
		if opts.MigrationsPath != "" {
			if err := storage.RunMigrations(dsn, opts.MigrationsPath); err != nil {
				return nil, fmt.Errorf("running migrations: %w", err)
			}
			log.Info("migrations applied")
		}
		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connecting database: %w", err)
		}
		rt.DB, rt.backend, rt.Users = db, db, db
		rt.closers = append(rt.closers, func() error { db.Close(); return nil })
		log.Info("database connected")

	case config.ModeREST:
		c := restclient.New(cfg.REST.URL, cfg.REST.APIKey, cfg.REST.Timeout)
		rt.backend, rt.Users = c, c
		log.Info("using REST backend", "url", cfg.REST.URL)

	case config.ModeLocal:
		ls, err := localstore.Open(cfg.Local.Dir, log)
		if err != nil {
			return nil, err
		}
		rt.local, rt.Users = ls, ls
		rt.closers = append(rt.closers, ls.Close)
		log.Info("using local store", "dir", cfg.Local.Dir)

	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Backend.Mode)
	}
	return rt, nil
}

// Store builds an unloaded store for a user. seed adds the sample workout
// for users without any.
func (rt *Runtime) Store(userID int, seed bool) (*workouts.Store, error) {
	return workouts.New(workouts.Config{
		UserID:  userID,
		Backend: rt.backend,
		Local:   rt.local,
		Logger:  rt.log,
		Metrics: rt.metrics,
		Seed:    seed,
	})
}

// Manager hands out seeded per-user stores.
func (rt *Runtime) Manager() *workouts.Manager {
	return workouts.NewManager(func(userID int) (*workouts.Store, error) {
		return rt.Store(userID, true)
	})
}

// Close releases the backend connections.
func (rt *Runtime) Close() error {
	var err error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, rt.closers[i]())
	}
	return err
}
