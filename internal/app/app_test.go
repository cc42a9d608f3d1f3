package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func localConfig(dir string) *config.Config {
	cfg := &config.Config{}
	cfg.Backend.Mode = config.ModeLocal
	cfg.Local.Dir = dir
	return cfg
}

func TestOpenLocal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	rt, err := Open(ctx, localConfig(dir), Options{}, quietLog)
	require.NoError(t, err)
	assert.Nil(t, rt.DB)

	uid, err := rt.Users.GetOrCreateUser(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	st, err := rt.Manager().For(ctx, uid)
	require.NoError(t, err)
	ws := st.Workouts()
	require.Len(t, ws, 1, "new users get the sample workout")
	_, err = st.Add(ctx, "Push Day", "", nil)
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	// Snapshots survive a reopen.
	rt, err = Open(ctx, localConfig(dir), Options{}, quietLog)
	require.NoError(t, err)
	defer rt.Close()
	again, err := rt.Users.GetOrCreateUser(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)
	assert.Equal(t, uid, again)

	st, err = rt.Store(uid, false)
	require.NoError(t, err)
	require.NoError(t, st.Load(ctx))
	assert.Len(t, st.Workouts(), 2)
}

func TestOpenREST(t *testing.T) {
	cfg := &config.Config{}
	cfg.Backend.Mode = config.ModeREST
	cfg.REST.URL = "http://127.0.0.1:1"
	cfg.REST.Timeout = time.Second

	rt, err := Open(context.Background(), cfg, Options{}, quietLog)
	require.NoError(t, err)
	assert.NotNil(t, rt.Users)
	_, err = rt.Store(1, false)
	assert.NoError(t, err)
	assert.NoError(t, rt.Close())
}

func TestOpenUnknownMode(t *testing.T) {
	cfg := &config.Config{}
	cfg.Backend.Mode = "redis"
	_, err := Open(context.Background(), cfg, Options{}, quietLog)
	assert.ErrorContains(t, err, "unknown backend mode")
}
