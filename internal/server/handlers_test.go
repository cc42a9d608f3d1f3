package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/claude/ironlog/internal/catalog"
	"github.com/claude/ironlog/internal/importer"
	"github.com/claude/ironlog/internal/localstore"
	"github.com/claude/ironlog/internal/metrics"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/notify"
	"github.com/claude/ironlog/internal/session"
	"github.com/claude/ironlog/internal/storage"
	"github.com/claude/ironlog/internal/workouts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeImportLogs struct {
	mu   sync.Mutex
	logs []storage.ImportLog
}

func (f *fakeImportLogs) InsertImportLog(_ context.Context, l storage.ImportLog) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.ID = int64(len(f.logs) + 1)
	f.logs = append(f.logs, l)
	return l.ID, nil
}

func (f *fakeImportLogs) QueryImportLogs(_ context.Context, userID, limit int) ([]storage.ImportLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.ImportLog
	for _, l := range f.logs {
		if l.UserID == userID && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

type testEnv struct {
	srv  *Server
	logs *fakeImportLogs
}

// newTestEnv serves the API from a SQLite snapshot store in a temp dir.
func newTestEnv(t *testing.T, configure func(*Options)) *testEnv {
	t.Helper()
	ls, err := localstore.Open(t.TempDir(), quietLog)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ls.Close() })

	m, reg := metrics.NewTestManagerAndRegistry()
	logs := &fakeImportLogs{}
	opts := Options{
		Stores: workouts.NewManager(func(uid int) (*workouts.Store, error) {
			return workouts.New(workouts.Config{UserID: uid, Local: ls, Logger: quietLog, Metrics: m})
		}),
		Users:       ls,
		ImportLogs:  logs,
		Metrics:     m,
		Gatherer:    reg,
		APIKey:      "secret",
		CORSOrigins: []string{"*"},
		Logger:      quietLog,
	}
	if configure != nil {
		configure(&opts)
	}
	return &testEnv{srv: New(opts), logs: logs}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func (e *testEnv) createWorkout(t *testing.T, name string) models.Workout {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/workouts", map[string]any{
		"name":        name,
		"description": "test",
		"exercises": []map[string]any{
			{"exerciseId": "e1", "sets": []map[string]any{{"weight": 60, "reps": 8}}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Workout](t, rec)
}

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no Tailscale middleware is active.
func TestHandleMeDefault(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	ctx := context.WithValue(req.Context(), userInfoKey, UserInfo{Login: "local", DisplayName: "Local Dev User"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
	if info.DisplayName != "Local Dev User" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Local Dev User")
	}
}

// TestHandleMeTailscaleUser verifies the /api/v1/me endpoint returns the
// Tailscale user identity when set in context.
func TestHandleMeTailscaleUser(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	ctx := context.WithValue(req.Context(), userInfoKey, UserInfo{Login: "alice@example.com", DisplayName: "Alice"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "alice@example.com" {
		t.Errorf("login = %q, want %q", info.Login, "alice@example.com")
	}
	if info.DisplayName != "Alice" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Alice")
	}
}

func TestMeResolvesUserID(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	info := decode[UserInfo](t, rec)
	assert.Equal(t, "local", info.Login)
	assert.Positive(t, info.UserID)
}

func TestExercises(t *testing.T) {
	env := newTestEnv(t, nil)

	all := decode[[]catalog.Exercise](t, env.do(t, http.MethodGet, "/api/v1/exercises", nil))
	assert.Len(t, all, 15)

	core := decode[[]catalog.Exercise](t, env.do(t, http.MethodGet, "/api/v1/exercises?category=Core", nil))
	assert.Len(t, core, 3)

	none := env.do(t, http.MethodGet, "/api/v1/exercises?category=Cardio", nil)
	assert.Equal(t, "[]", strings.TrimSpace(none.Body.String()))

	groups := decode[[]catalog.Category](t, env.do(t, http.MethodGet, "/api/v1/exercises?grouped=true", nil))
	assert.Len(t, groups, 6)
}

func TestWorkoutCRUD(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/workouts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.Workout](t, rec))

	w := env.createWorkout(t, "Push Day")
	require.Len(t, w.Exercises, 1)
	assert.Equal(t, "Bench Press", w.Exercises[0].ExerciseName)
	assert.NotEqual(t, w.Exercises[0].ID.String(), "00000000-0000-0000-0000-000000000000")

	rec = env.do(t, http.MethodGet, "/api/v1/workouts/"+w.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, w.ID, decode[models.Workout](t, rec).ID)

	w.Name = "Push Day A"
	w.Exercises[0].Sets[0].Weight = 65
	rec = env.do(t, http.MethodPut, "/api/v1/workouts/"+w.ID.String(), w)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Workout](t, rec)
	assert.Equal(t, "Push Day A", updated.Name)
	assert.Equal(t, 65.0, updated.Exercises[0].Sets[0].Weight)
	assert.Equal(t, w.Exercises[0].Sets[0].ID, updated.Exercises[0].Sets[0].ID)

	rec = env.do(t, http.MethodPost, "/api/v1/workouts/"+w.ID.String()+"/exercises", map[string]string{"exerciseId": "e5"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	withPushUp := decode[models.Workout](t, rec)
	require.Len(t, withPushUp.Exercises, 2)
	assert.Equal(t, "Push-up", withPushUp.Exercises[1].ExerciseName)
	assert.Len(t, withPushUp.Exercises[1].Sets, 3)

	rec = env.do(t, http.MethodPost, "/api/v1/workouts/"+w.ID.String()+"/exercises", map[string]string{"exerciseId": "e99"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/workouts/"+w.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/workouts/"+w.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/workouts/"+w.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkoutsListedNewestFirst(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createWorkout(t, "First")
	env.createWorkout(t, "Second")

	ws := decode[[]models.Workout](t, env.do(t, http.MethodGet, "/api/v1/workouts", nil))
	require.Len(t, ws, 2)
	assert.Equal(t, "Second", ws[0].Name)
}

func TestWorkoutBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"missing name", http.MethodPost, "/api/v1/workouts", map[string]string{"name": "  "}},
		{"invalid JSON", http.MethodPost, "/api/v1/workouts", "{"},
		{"invalid id", http.MethodGet, "/api/v1/workouts/not-a-uuid", nil},
		{"negative reps", http.MethodPost, "/api/v1/workouts", map[string]any{
			"name":      "Bad",
			"exercises": []map[string]any{{"exerciseId": "e1", "sets": []map[string]any{{"reps": -1}}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[errorBody](t, rec).Error)
		})
	}
}

type sessionResponse struct {
	models.WorkoutSession
	ElapsedSeconds int64           `json:"elapsedSeconds"`
	Elapsed        string          `json:"elapsed"`
	Completed      map[string]bool `json:"completed"`
}

func TestSessionFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.createWorkout(t, "Push Day")

	rec := env.do(t, http.MethodGet, "/api/v1/session", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/workouts/"+w.ID.String()+"/session", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sess := decode[sessionResponse](t, rec)
	assert.Equal(t, w.ID, sess.WorkoutID)
	require.Len(t, sess.Exercises, 1)
	assert.False(t, sess.Exercises[0].Sets[0].Completed)
	assert.NotEmpty(t, sess.Elapsed)

	rec = env.do(t, http.MethodPost, "/api/v1/workouts/"+w.ID.String()+"/session", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	exPath := "/api/v1/session/exercises/" + sess.Exercises[0].ID.String()

	rec = env.do(t, http.MethodPatch, exPath+"/sets/0", map[string]any{"field": "weight", "value": 62.5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 62.5, decode[sessionResponse](t, rec).Exercises[0].Sets[0].Weight)

	rec = env.do(t, http.MethodPatch, exPath+"/sets/0", map[string]any{"field": "completed", "value": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decode[sessionResponse](t, rec)
	assert.True(t, edited.Completed[sess.Exercises[0].ID.String()])

	rec = env.do(t, http.MethodPatch, exPath+"/sets/0", map[string]any{"field": "tempo", "value": "3-1-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPatch, exPath+"/sets/7", map[string]any{"field": "reps", "value": "5"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodPatch, exPath+"/sets/x", map[string]any{"field": "reps", "value": "5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ex := edited.Exercises[0]
	ex.Notes = "felt strong"
	rec = env.do(t, http.MethodPut, exPath, ex)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "felt strong", decode[sessionResponse](t, rec).Exercises[0].Notes)

	rec = env.do(t, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sess.ID, decode[sessionResponse](t, rec).ID)

	rec = env.do(t, http.MethodPost, "/api/v1/session/end", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ended := decode[struct {
		Session sessionResponse `json:"session"`
		Workout models.Workout  `json:"workout"`
	}](t, rec)
	assert.NotNil(t, ended.Session.EndTime)
	assert.NotNil(t, ended.Workout.LastPerformed)
	assert.Equal(t, 62.5, ended.Workout.Exercises[0].Sets[0].Weight)

	rec = env.do(t, http.MethodPost, "/api/v1/session/end", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/session", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartSessionUnknownWorkout(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/api/v1/workouts/7d0e4c1a-0000-4000-8000-000000000009/session", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationsDrain(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createWorkout(t, "Push Day")

	notices := decode[[]notify.Notice](t, env.do(t, http.MethodGet, "/api/v1/notifications", nil))
	require.Len(t, notices, 1)
	assert.Equal(t, notify.Info, notices[0].Level)
	assert.Equal(t, `Workout "Push Day" created`, notices[0].Message)

	again := decode[[]notify.Notice](t, env.do(t, http.MethodGet, "/api/v1/notifications", nil))
	assert.Empty(t, again)
}

const alphaExport = `
"Push";"2026-02-17 5:04 h";"1:12 hr"
"1. Bench Press · Barbell · 6 reps";"WU1 · 50 kg · 8 reps"
#;KG;REPS;RIR
1;100;6;0
2;100;6;0

"Pull";"2026-02-18 5:04 h";"0:58 hr"
"1. Lat Pulldown · Cable · 10 reps"
#;KG;REPS;RIR
1;60;10;1
`

func TestAlphaImportAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/import/alpha", alphaExport)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/import/alpha", alphaExport, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAlphaImport(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/import/alpha?dry_run=true", alphaExport, "X-API-Key", "secret")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[importer.Stats](t, rec)
	assert.Equal(t, 2, stats.WorkoutsCreated)
	assert.Empty(t, decode[[]models.Workout](t, env.do(t, http.MethodGet, "/api/v1/workouts", nil)))
	assert.Empty(t, env.logs.logs, "dry runs are not logged")

	rec = env.do(t, http.MethodPost, "/api/v1/import/alpha", alphaExport, "X-API-Key", "secret")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats = decode[importer.Stats](t, rec)
	assert.Equal(t, 2, stats.SessionsReceived)
	assert.Equal(t, 2, stats.WorkoutsCreated)
	assert.Equal(t, 3, stats.SetsImported)
	assert.Equal(t, 1, stats.WarmupsDropped)

	ws := decode[[]models.Workout](t, env.do(t, http.MethodGet, "/api/v1/workouts", nil))
	require.Len(t, ws, 2)

	rec = env.do(t, http.MethodPost, "/api/v1/import/alpha", alphaExport, "X-API-Key", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[importer.Stats](t, rec).WorkoutsSkipped)

	logs := decode[[]storage.ImportLog](t, env.do(t, http.MethodGet, "/api/v1/imports", nil))
	require.Len(t, logs, 2)
	assert.Equal(t, "alpha", logs[0].Source)
	assert.Equal(t, "success", logs[0].Status)
	assert.Equal(t, 2, logs[0].WorkoutsCreated)
}

func TestAlphaImportParseError(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/api/v1/import/alpha", "1;100;6;0\n", "X-API-Key", "secret")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Len(t, env.logs.logs, 1)
	assert.Equal(t, "error", env.logs.logs[0].Status)
	require.NotNil(t, env.logs.logs[0].ErrorMessage)
}

func TestOptionalRoutes(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.APIKey = ""
		o.ImportLogs = nil
		o.Gatherer = nil
	})
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/import/alpha", alphaExport).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/imports", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/metrics", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/api/v1/workouts", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ironlog_test_request{method="GET",status="200"}`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", workouts.ErrWorkoutNotFound), http.StatusNotFound},
		{session.ErrExerciseNotFound, http.StatusNotFound},
		{session.ErrSetNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: name is required", workouts.ErrInvalidWorkout), http.StatusBadRequest},
		{session.ErrUnknownField, http.StatusBadRequest},
		{workouts.ErrSessionActive, http.StatusConflict},
		{workouts.ErrNoActiveSession, http.StatusConflict},
		{fmt.Errorf("%w: %w", workouts.ErrBackend, errors.New("timeout")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteErrorIncludesStateOnlyForBackendErrors(t *testing.T) {
	s := &Server{log: quietLog}

	rec := httptest.NewRecorder()
	s.writeError(rec, fmt.Errorf("%w: %w", workouts.ErrBackend, errors.New("timeout")), map[string]string{"kept": "yes"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":{"kept":"yes"}`)

	rec = httptest.NewRecorder()
	s.writeError(rec, workouts.ErrNoActiveSession, map[string]string{"kept": "yes"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotContains(t, rec.Body.String(), "state")
}

func TestRawValue(t *testing.T) {
	tests := map[string]string{
		`"12"`:  "12",
		`12.5`:  "12.5",
		`true`:  "true",
		` 8 `:   "8",
		`"yes"`: "yes",
	}
	for in, want := range tests {
		if got := rawValue(json.RawMessage(in)); got != want {
			t.Errorf("rawValue(%s) = %q, want %q", in, got, want)
		}
	}
}
