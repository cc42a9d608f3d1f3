package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkoutRow is a row of the workouts table.
type WorkoutRow struct {
	ID            uuid.UUID  `json:"id"`
	UserID        int        `json:"user_id"`
	Name          string     `json:"name"`
	Description   *string    `json:"description"`
	CreatedAt     time.Time  `json:"created_at"`
	LastPerformed *time.Time `json:"last_performed"`
}

// ExerciseRow is a row of workout_exercises or session_exercises. ParentID is
// workout_id or session_id depending on the table.
type ExerciseRow struct {
	ID           uuid.UUID `json:"id"`
	ParentID     uuid.UUID `json:"-"`
	ExerciseID   string    `json:"exercise_id"`
	ExerciseName string    `json:"exercise_name"`
	Notes        *string   `json:"notes"`
	Order        int       `json:"order"`
}

// SetRow is a row of exercise_sets or session_sets. ParentID is
// workout_exercise_id or session_exercise_id depending on the table.
type SetRow struct {
	ID        uuid.UUID `json:"id"`
	ParentID  uuid.UUID `json:"-"`
	Weight    Number    `json:"weight"`
	Reps      Number    `json:"reps"`
	Completed bool      `json:"completed"`
	Order     int       `json:"order"`
}

// SessionRow is a row of the workout_sessions table.
type SessionRow struct {
	ID        uuid.UUID  `json:"id"`
	WorkoutID uuid.UUID  `json:"workout_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// Table names a child table and the foreign-key column pointing at its parent.
type Table struct {
	Name   string
	Parent string
}

// Tables pairs an exercise table with the set table that hangs off it.
type Tables struct {
	Exercises Table
	Sets      Table
}

var (
	WorkoutExercisesTable = Table{Name: "workout_exercises", Parent: "workout_id"}
	ExerciseSetsTable     = Table{Name: "exercise_sets", Parent: "workout_exercise_id"}
	SessionExercisesTable = Table{Name: "session_exercises", Parent: "session_id"}
	SessionSetsTable      = Table{Name: "session_sets", Parent: "session_exercise_id"}

	// TemplateTables hold the exercise tree of a Workout.
	TemplateTables = Tables{Exercises: WorkoutExercisesTable, Sets: ExerciseSetsTable}
	// SessionTables hold the exercise tree of a WorkoutSession.
	SessionTables = Tables{Exercises: SessionExercisesTable, Sets: SessionSetsTable}
)
