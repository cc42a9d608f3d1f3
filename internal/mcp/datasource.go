package mcp

import (
	"context"
	"errors"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/workouts"
	"github.com/google/uuid"
)

// ErrNotFound is returned by a DataSource for an unknown workout.
var ErrNotFound = errors.New("not found")

// DataSource abstracts the data layer for MCP tools. StoreSource (in
// process) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListWorkouts(ctx context.Context, userID int) ([]models.Workout, error)
	GetWorkout(ctx context.Context, userID int, id uuid.UUID) (models.Workout, error)
	// ActiveSession returns nil when the user has no session in progress.
	ActiveSession(ctx context.Context, userID int) (*models.WorkoutSession, error)
}

// StoreSource reads the per-user stores the HTTP API serves.
type StoreSource struct {
	Stores *workouts.Manager
}

var _ DataSource = StoreSource{}

func (s StoreSource) ListWorkouts(ctx context.Context, userID int) ([]models.Workout, error) {
	st, err := s.Stores.For(ctx, userID)
	if err != nil {
		return nil, err
	}
	return st.Workouts(), nil
}

func (s StoreSource) GetWorkout(ctx context.Context, userID int, id uuid.UUID) (models.Workout, error) {
	st, err := s.Stores.For(ctx, userID)
	if err != nil {
		return models.Workout{}, err
	}
	w, err := st.Get(id)
	if errors.Is(err, workouts.ErrWorkoutNotFound) {
		return models.Workout{}, ErrNotFound
	}
	return w, err
}

func (s StoreSource) ActiveSession(ctx context.Context, userID int) (*models.WorkoutSession, error) {
	st, err := s.Stores.For(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess, ok := st.ActiveSession()
	if !ok {
		return nil, nil
	}
	return &sess, nil
}
