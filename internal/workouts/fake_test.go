package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

var errInjected = errors.New("injected failure")

// fakeBackend is an in-memory Backend with per-method failure injection.
type fakeBackend struct {
	mu        sync.Mutex
	workouts  map[uuid.UUID]models.WorkoutRow
	exercises map[string]map[uuid.UUID]models.ExerciseRow
	sets      map[string]map[uuid.UUID]models.SetRow
	sessions  map[uuid.UUID]models.SessionRow
	fail      map[string]error
	calls     []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		workouts:  make(map[uuid.UUID]models.WorkoutRow),
		exercises: make(map[string]map[uuid.UUID]models.ExerciseRow),
		sets:      make(map[string]map[uuid.UUID]models.SetRow),
		sessions:  make(map[uuid.UUID]models.SessionRow),
		fail:      make(map[string]error),
	}
}

func (b *fakeBackend) failOn(method string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[method] = errInjected
}

func (b *fakeBackend) clearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = make(map[string]error)
}

// enter records a call and returns its injected error. Callers hold mu.
func (b *fakeBackend) enter(method string) error {
	b.calls = append(b.calls, method)
	return b.fail[method]
}

func (b *fakeBackend) exTable(t models.Table) map[uuid.UUID]models.ExerciseRow {
	m, ok := b.exercises[t.Name]
	if !ok {
		m = make(map[uuid.UUID]models.ExerciseRow)
		b.exercises[t.Name] = m
	}
	return m
}

func (b *fakeBackend) setTable(t models.Table) map[uuid.UUID]models.SetRow {
	m, ok := b.sets[t.Name]
	if !ok {
		m = make(map[uuid.UUID]models.SetRow)
		b.sets[t.Name] = m
	}
	return m
}

func (b *fakeBackend) ListWorkouts(_ context.Context, userID int) ([]models.WorkoutRow, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("ListWorkouts"); err != nil {
		return nil, err
	}
	var out []models.WorkoutRow
	for _, w := range b.workouts {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (b *fakeBackend) GetWorkout(_ context.Context, userID int, id uuid.UUID) (models.WorkoutRow, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("GetWorkout"); err != nil {
		return models.WorkoutRow{}, err
	}
	w, ok := b.workouts[id]
	if !ok || w.UserID != userID {
		return models.WorkoutRow{}, fmt.Errorf("workout %s: %w", id, ErrWorkoutNotFound)
	}
	return w, nil
}

func (b *fakeBackend) InsertWorkout(_ context.Context, row models.WorkoutRow) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("InsertWorkout"); err != nil {
		return err
	}
	b.workouts[row.ID] = row
	return nil
}

func (b *fakeBackend) UpdateWorkout(_ context.Context, row models.WorkoutRow) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("UpdateWorkout"); err != nil {
		return err
	}
	if _, ok := b.workouts[row.ID]; !ok {
		return ErrWorkoutNotFound
	}
	b.workouts[row.ID] = row
	return nil
}

func (b *fakeBackend) DeleteWorkout(_ context.Context, userID int, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("DeleteWorkout"); err != nil {
		return err
	}
	delete(b.workouts, id)
	exs := b.exTable(models.WorkoutExercisesTable)
	sets := b.setTable(models.ExerciseSetsTable)
	for exID, ex := range exs {
		if ex.ParentID != id {
			continue
		}
		for setID, s := range sets {
			if s.ParentID == exID {
				delete(sets, setID)
			}
		}
		delete(exs, exID)
	}
	return nil
}

func (b *fakeBackend) ListExercises(_ context.Context, t models.Table, parentID uuid.UUID) ([]models.ExerciseRow, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("ListExercises"); err != nil {
		return nil, err
	}
	var out []models.ExerciseRow
	for _, ex := range b.exTable(t) {
		if ex.ParentID == parentID {
			out = append(out, ex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (b *fakeBackend) ListSets(_ context.Context, t models.Table, exerciseIDs []uuid.UUID) ([]models.SetRow, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("ListSets"); err != nil {
		return nil, err
	}
	want := make(map[uuid.UUID]bool, len(exerciseIDs))
	for _, id := range exerciseIDs {
		want[id] = true
	}
	var out []models.SetRow
	for _, s := range b.setTable(t) {
		if want[s.ParentID] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ParentID != out[j].ParentID {
			return out[i].ParentID.String() < out[j].ParentID.String()
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

func (b *fakeBackend) InsertExercises(_ context.Context, t models.Table, rows []models.ExerciseRow) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("InsertExercises"); err != nil {
		return err
	}
	m := b.exTable(t)
	for _, r := range rows {
		if _, dup := m[r.ID]; dup {
			return fmt.Errorf("duplicate key %s", r.ID)
		}
	}
	for _, r := range rows {
		m[r.ID] = r
	}
	return nil
}

func (b *fakeBackend) UpdateExercise(_ context.Context, t models.Table, row models.ExerciseRow) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("UpdateExercise"); err != nil {
		return err
	}
	b.exTable(t)[row.ID] = row
	return nil
}

func (b *fakeBackend) DeleteExercises(_ context.Context, t models.Table, ids []uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("DeleteExercises"); err != nil {
		return err
	}
	m := b.exTable(t)
	sets := b.setTable(childSets(t))
	for _, id := range ids {
		delete(m, id)
		for setID, s := range sets {
			if s.ParentID == id {
				delete(sets, setID)
			}
		}
	}
	return nil
}

// childSets mirrors the ON DELETE CASCADE from exercise to set tables.
func childSets(t models.Table) models.Table {
	if t == models.SessionExercisesTable {
		return models.SessionSetsTable
	}
	return models.ExerciseSetsTable
}

func (b *fakeBackend) InsertSets(_ context.Context, t models.Table, rows []models.SetRow) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("InsertSets"); err != nil {
		return err
	}
	m := b.setTable(t)
	for _, r := range rows {
		m[r.ID] = r
	}
	return nil
}

func (b *fakeBackend) UpdateSet(_ context.Context, t models.Table, row models.SetRow) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("UpdateSet"); err != nil {
		return err
	}
	b.setTable(t)[row.ID] = row
	return nil
}

func (b *fakeBackend) DeleteSets(_ context.Context, t models.Table, ids []uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("DeleteSets"); err != nil {
		return err
	}
	m := b.setTable(t)
	for _, id := range ids {
		delete(m, id)
	}
	return nil
}

func (b *fakeBackend) InsertSession(_ context.Context, row models.SessionRow) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("InsertSession"); err != nil {
		return err
	}
	b.sessions[row.ID] = row
	return nil
}

func (b *fakeBackend) UpdateSession(_ context.Context, row models.SessionRow) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("UpdateSession"); err != nil {
		return err
	}
	b.sessions[row.ID] = row
	return nil
}

func (b *fakeBackend) OpenSessions(_ context.Context, workoutIDs []uuid.UUID) ([]models.SessionRow, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("OpenSessions"); err != nil {
		return nil, err
	}
	want := make(map[uuid.UUID]bool, len(workoutIDs))
	for _, id := range workoutIDs {
		want[id] = true
	}
	var out []models.SessionRow
	for _, s := range b.sessions {
		if s.EndTime == nil && want[s.WorkoutID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (b *fakeBackend) count(tableName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.exercises[tableName]; ok {
		return len(m)
	}
	return len(b.sets[tableName])
}

// fakeSnapshots is an in-memory Snapshotter.
type fakeSnapshots struct {
	mu      sync.Mutex
	values  map[string][]byte
	saveErr error
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{values: make(map[string][]byte)}
}

func snapKey(userID int, key string) string { return fmt.Sprintf("%d/%s", userID, key) }

func (f *fakeSnapshots) LoadSnapshot(_ context.Context, userID int, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[snapKey(userID, key)]
	if ok && !json.Valid(v) {
		delete(f.values, snapKey(userID, key))
		return nil, false, fmt.Errorf("snapshot %s: %w", key, ErrSnapshotDiscarded)
	}
	return v, ok, nil
}

func (f *fakeSnapshots) SaveSnapshot(_ context.Context, userID int, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.values[snapKey(userID, key)] = value
	return nil
}

func (f *fakeSnapshots) DeleteSnapshot(_ context.Context, userID int, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, snapKey(userID, key))
	return nil
}

// stepClock advances one minute per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}
