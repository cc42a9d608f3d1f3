package workouts

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/reconcile"
	"github.com/google/uuid"
)

// Backend is the table-level CRUD API the store reads and writes through.
// Implementations: storage.DB (Postgres) and restclient.Client (PostgREST).
type Backend interface {
	reconcile.Writer

	// ListWorkouts returns the user's workouts, newest first.
	ListWorkouts(ctx context.Context, userID int) ([]models.WorkoutRow, error)
	GetWorkout(ctx context.Context, userID int, id uuid.UUID) (models.WorkoutRow, error)
	InsertWorkout(ctx context.Context, row models.WorkoutRow) error
	UpdateWorkout(ctx context.Context, row models.WorkoutRow) error
	DeleteWorkout(ctx context.Context, userID int, id uuid.UUID) error

	// ListExercises returns the exercises under parentID in ascending order.
	ListExercises(ctx context.Context, t models.Table, parentID uuid.UUID) ([]models.ExerciseRow, error)
	// ListSets returns the sets under any of the given exercises, ordered by
	// parent and then ascending order.
	ListSets(ctx context.Context, t models.Table, exerciseIDs []uuid.UUID) ([]models.SetRow, error)

	InsertSession(ctx context.Context, row models.SessionRow) error
	UpdateSession(ctx context.Context, row models.SessionRow) error
	// OpenSessions returns sessions without an end time for any of the given
	// workouts.
	OpenSessions(ctx context.Context, workoutIDs []uuid.UUID) ([]models.SessionRow, error)
}

// ErrSnapshotDiscarded is wrapped by LoadSnapshot when a stored value was not
// valid JSON and has been deleted.
var ErrSnapshotDiscarded = errors.New("unparsable snapshot discarded")

// Snapshotter is the legacy local key -> JSON store. Values are written on
// every change and read once when the store loads.
type Snapshotter interface {
	LoadSnapshot(ctx context.Context, userID int, key string) ([]byte, bool, error)
	SaveSnapshot(ctx context.Context, userID int, key string, value []byte) error
	DeleteSnapshot(ctx context.Context, userID int, key string) error
}

// Snapshot keys.
const (
	WorkoutsKey       = "workouts"
	CurrentSessionKey = "currentWorkout"
)

// fetchTree reads one exercise tree (template or session) under parentID.
func fetchTree(ctx context.Context, b Backend, tables models.Tables, parentID uuid.UUID) ([]models.WorkoutExercise, error) {
	exRows, err := b.ListExercises(ctx, tables.Exercises, parentID)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", tables.Exercises.Name, err)
	}
	if len(exRows) == 0 {
		return []models.WorkoutExercise{}, nil
	}

	ids := make([]uuid.UUID, len(exRows))
	for i, r := range exRows {
		ids[i] = r.ID
	}
	setRows, err := b.ListSets(ctx, tables.Sets, ids)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", tables.Sets.Name, err)
	}
	byParent := make(map[uuid.UUID][]models.SetRow, len(exRows))
	for _, s := range setRows {
		byParent[s.ParentID] = append(byParent[s.ParentID], s)
	}

	out := make([]models.WorkoutExercise, 0, len(exRows))
	for _, r := range exRows {
		out = append(out, models.ExerciseToDomain(r, byParent[r.ID]))
	}
	return out, nil
}

func fetchWorkout(ctx context.Context, b Backend, userID int, id uuid.UUID) (models.Workout, error) {
	row, err := b.GetWorkout(ctx, userID, id)
	if err != nil {
		return models.Workout{}, fmt.Errorf("getting workout %s: %w", id, err)
	}
	exs, err := fetchTree(ctx, b, models.TemplateTables, id)
	if err != nil {
		return models.Workout{}, fmt.Errorf("fetching workout %s: %w", id, err)
	}
	return models.WorkoutToDomain(row, exs), nil
}
