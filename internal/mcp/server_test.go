package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/catalog"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/workouts"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// TestUserIDFromContextDefault verifies the default user ID (1) when no value
// is set in the context.
func TestUserIDFromContextDefault(t *testing.T) {
	ctx := context.Background()
	if id := UserIDFromContext(ctx); id != 1 {
		t.Errorf("UserIDFromContext(empty) = %d, want 1", id)
	}
}

// TestUserIDFromContextSet verifies the user ID is extracted from context
// after being set by WithUserID.
func TestUserIDFromContextSet(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	if id := UserIDFromContext(ctx); id != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", id)
	}
}

type fakeSource struct {
	workouts map[int][]models.Workout
	active   map[int]*models.WorkoutSession
}

func (f *fakeSource) ListWorkouts(_ context.Context, userID int) ([]models.Workout, error) {
	return f.workouts[userID], nil
}

func (f *fakeSource) GetWorkout(_ context.Context, userID int, id uuid.UUID) (models.Workout, error) {
	for _, w := range f.workouts[userID] {
		if w.ID == id {
			return w.Clone(), nil
		}
	}
	return models.Workout{}, ErrNotFound
}

func (f *fakeSource) ActiveSession(_ context.Context, userID int) (*models.WorkoutSession, error) {
	return f.active[userID], nil
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

var (
	pushID = uuid.MustParse("7d0e4c1a-0000-4000-8000-000000000001")
	legsID = uuid.MustParse("7d0e4c1a-0000-4000-8000-000000000002")
)

func newFakeSource() *fakeSource {
	return &fakeSource{
		workouts: map[int][]models.Workout{
			7: {
				{ID: pushID, Name: "Push Day", Exercises: []models.WorkoutExercise{
					{ID: uuid.New(), ExerciseID: "e1", ExerciseName: "Old Bench Name", Sets: []models.ExerciseSet{{Reps: 8}, {Reps: 8}}},
					{ID: uuid.New(), ExerciseID: "", ExerciseName: "Cable Fly", Sets: []models.ExerciseSet{{Reps: 12}}},
				}},
				{ID: legsID, Name: "Leg Day"},
			},
		},
		active: map[int]*models.WorkoutSession{},
	}
}

func TestListWorkoutsTool(t *testing.T) {
	h := &handlers{ds: newFakeSource(), log: slog.Default()}
	ctx := WithUserID(context.Background(), 7)

	res, err := h.listWorkouts(ctx, toolRequest("list_workouts", nil))
	if err != nil {
		t.Fatal(err)
	}
	var got []workoutSummary
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d workouts, want 2", len(got))
	}
	if got[0].Exercises != 2 || got[0].Sets != 3 {
		t.Errorf("push summary = %+v, want 2 exercises and 3 sets", got[0])
	}

	res, _ = h.listWorkouts(ctx, toolRequest("list_workouts", map[string]any{"name": "LEG"}))
	got = nil
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != legsID {
		t.Errorf("filtered = %+v, want only Leg Day", got)
	}
}

func TestListWorkoutsToolOtherUser(t *testing.T) {
	h := &handlers{ds: newFakeSource(), log: slog.Default()}
	res, _ := h.listWorkouts(WithUserID(context.Background(), 8), toolRequest("list_workouts", nil))
	if got := strings.TrimSpace(resultText(t, res)); got != "[]" {
		t.Errorf("other user sees %s, want []", got)
	}
}

func TestGetWorkoutTool(t *testing.T) {
	h := &handlers{ds: newFakeSource(), log: slog.Default()}
	ctx := WithUserID(context.Background(), 7)

	res, err := h.getWorkout(ctx, toolRequest("get_workout", map[string]any{"id": pushID.String()}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, res))
	}
	var w models.Workout
	if err := json.Unmarshal([]byte(resultText(t, res)), &w); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Exercises[0].ExerciseName != "Bench Press" {
		t.Errorf("catalog name = %q, want Bench Press", w.Exercises[0].ExerciseName)
	}
	if w.Exercises[1].ExerciseName != "Cable Fly" {
		t.Errorf("fallback name = %q, want Cable Fly", w.Exercises[1].ExerciseName)
	}
}

func TestGetWorkoutToolErrors(t *testing.T) {
	h := &handlers{ds: newFakeSource(), log: slog.Default()}
	ctx := WithUserID(context.Background(), 7)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing id", nil, "id parameter is required"},
		{"bad id", map[string]any{"id": "nope"}, "invalid id"},
		{"unknown id", map[string]any{"id": uuid.NewString()}, "workout not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.getWorkout(ctx, toolRequest("get_workout", tt.args))
			if err != nil {
				t.Fatal(err)
			}
			if !res.IsError {
				t.Fatal("expected error result")
			}
			if got := resultText(t, res); !strings.Contains(got, tt.want) {
				t.Errorf("error = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestGetActiveSessionTool(t *testing.T) {
	src := newFakeSource()
	h := &handlers{ds: src, log: slog.Default()}
	ctx := WithUserID(context.Background(), 7)

	res, _ := h.getActiveSession(ctx, toolRequest("get_active_session", nil))
	if got := resultText(t, res); got != "No active workout" {
		t.Errorf("no session text = %q", got)
	}

	exID := uuid.New()
	src.active[7] = &models.WorkoutSession{
		ID:        uuid.New(),
		WorkoutID: pushID,
		StartTime: time.Now().Add(-90 * time.Second),
		Exercises: []models.WorkoutExercise{{ID: exID, Sets: []models.ExerciseSet{{Completed: true}}}},
	}
	res, _ = h.getActiveSession(ctx, toolRequest("get_active_session", nil))
	var got struct {
		Elapsed        string          `json:"elapsed"`
		ElapsedSeconds int64           `json:"elapsed_seconds"`
		Completed      map[string]bool `json:"completed"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ElapsedSeconds < 90 || !strings.HasPrefix(got.Elapsed, "01:") {
		t.Errorf("elapsed = %q (%d s), want about 01:30", got.Elapsed, got.ElapsedSeconds)
	}
	if !got.Completed[exID.String()] {
		t.Errorf("completed = %v, want exercise done", got.Completed)
	}
}

func TestListExercisesTool(t *testing.T) {
	h := &handlers{ds: newFakeSource(), log: slog.Default()}

	res, _ := h.listExercises(context.Background(), toolRequest("list_exercises", map[string]any{"category": "Core"}))
	var got []catalog.Exercise
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("core exercises = %d, want 3", len(got))
	}

	res, _ = h.listExercises(context.Background(), toolRequest("list_exercises", nil))
	got = nil
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 15 {
		t.Errorf("all exercises = %d, want 15", len(got))
	}
}

func TestExerciseCatalogResource(t *testing.T) {
	h := &handlers{ds: newFakeSource(), log: slog.Default()}
	var req mcp.ReadResourceRequest
	req.Params.URI = "ironlog://exercise_catalog"

	contents, err := h.exerciseCatalog(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content type = %T", contents[0])
	}
	var cats []catalog.Category
	if err := json.Unmarshal([]byte(tc.Text), &cats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cats) != 6 {
		t.Errorf("categories = %d, want 6", len(cats))
	}
	if tc.URI != "ironlog://exercise_catalog" {
		t.Errorf("uri = %q", tc.URI)
	}
}

// memSnapshots is an in-memory workouts.Snapshotter.
type memSnapshots struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memSnapshots) LoadSnapshot(_ context.Context, _ int, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memSnapshots) SaveSnapshot(_ context.Context, _ int, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memSnapshots) DeleteSnapshot(_ context.Context, _ int, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestStoreSource(t *testing.T) {
	mgr := workouts.NewManager(func(userID int) (*workouts.Store, error) {
		return workouts.New(workouts.Config{
			UserID: userID,
			Local:  &memSnapshots{data: map[string][]byte{}},
			Seed:   true,
		})
	})
	src := StoreSource{Stores: mgr}
	ctx := context.Background()

	ws, err := src.ListWorkouts(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(ws) != 1 {
		t.Fatalf("seeded workouts = %d, want 1", len(ws))
	}

	w, err := src.GetWorkout(ctx, 3, ws[0].ID)
	if err != nil || w.ID != ws[0].ID {
		t.Fatalf("GetWorkout = %v, %v", w.ID, err)
	}
	if _, err := src.GetWorkout(ctx, 3, uuid.New()); err != ErrNotFound {
		t.Errorf("unknown workout error = %v, want ErrNotFound", err)
	}

	sess, err := src.ActiveSession(ctx, 3)
	if err != nil || sess != nil {
		t.Fatalf("ActiveSession = %v, %v, want nil", sess, err)
	}
	st, _ := mgr.For(ctx, 3)
	if _, err := st.StartSession(ctx, w.ID); err != nil {
		t.Fatal(err)
	}
	sess, err = src.ActiveSession(ctx, 3)
	if err != nil || sess == nil || sess.WorkoutID != w.ID {
		t.Fatalf("ActiveSession after start = %v, %v", sess, err)
	}
}
