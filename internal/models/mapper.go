package models

import (
	"math"

	"github.com/google/uuid"
)

// MaxWeight is the largest weight the NUMERIC(10,2) weight columns hold.
const MaxWeight = 99999999.99

// CoerceWeight clamps a weight to a finite, non-negative value no larger than
// MaxWeight and rounds it to the two decimals the backend stores.
func CoerceWeight(w float64) float64 {
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return 0
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return math.Round(w*100) / 100
}

// CoerceReps truncates reps to a non-negative integer.
func CoerceReps(r float64) int {
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return 0
	}
	if r > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(r)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SetToDomain converts a set row.
func SetToDomain(row SetRow) ExerciseSet {
	return ExerciseSet{
		ID:        row.ID,
		Weight:    CoerceWeight(row.Weight.Float64()),
		Reps:      CoerceReps(row.Reps.Float64()),
		Completed: row.Completed,
		Order:     row.Order,
	}
}

// SetToRow converts a set for storage under parentID at the given position.
func SetToRow(s ExerciseSet, parentID uuid.UUID, order int) SetRow {
	return SetRow{
		ID:        s.ID,
		ParentID:  parentID,
		Weight:    Number(CoerceWeight(s.Weight)),
		Reps:      Number(CoerceReps(float64(s.Reps))),
		Completed: s.Completed,
		Order:     order,
	}
}

// ExerciseToDomain converts an exercise row and its set rows. Set rows are
// expected in ascending order.
func ExerciseToDomain(row ExerciseRow, sets []SetRow) WorkoutExercise {
	ex := WorkoutExercise{
		ID:           row.ID,
		ExerciseID:   row.ExerciseID,
		ExerciseName: row.ExerciseName,
		Notes:        deref(row.Notes),
		Order:        row.Order,
		Sets:         make([]ExerciseSet, 0, len(sets)),
	}
	for _, s := range sets {
		ex.Sets = append(ex.Sets, SetToDomain(s))
	}
	return ex
}

// ExerciseToRow converts an exercise (without its sets) for storage.
func ExerciseToRow(ex WorkoutExercise, parentID uuid.UUID, order int) ExerciseRow {
	return ExerciseRow{
		ID:           ex.ID,
		ParentID:     parentID,
		ExerciseID:   ex.ExerciseID,
		ExerciseName: ex.ExerciseName,
		Notes:        optional(ex.Notes),
		Order:        order,
	}
}

// WorkoutToDomain converts a workout row plus its already-mapped exercises.
func WorkoutToDomain(row WorkoutRow, exercises []WorkoutExercise) Workout {
	if exercises == nil {
		exercises = []WorkoutExercise{}
	}
	return Workout{
		ID:            row.ID,
		Name:          row.Name,
		Description:   deref(row.Description),
		CreatedAt:     row.CreatedAt,
		LastPerformed: row.LastPerformed,
		Exercises:     exercises,
	}
}

// WorkoutToRow converts a workout header for storage.
func WorkoutToRow(w Workout, userID int) WorkoutRow {
	return WorkoutRow{
		ID:            w.ID,
		UserID:        userID,
		Name:          w.Name,
		Description:   optional(w.Description),
		CreatedAt:     w.CreatedAt,
		LastPerformed: w.LastPerformed,
	}
}

// SessionToDomain converts a session row plus its already-mapped exercises.
func SessionToDomain(row SessionRow, exercises []WorkoutExercise) WorkoutSession {
	if exercises == nil {
		exercises = []WorkoutExercise{}
	}
	return WorkoutSession{
		ID:        row.ID,
		WorkoutID: row.WorkoutID,
		StartTime: row.StartTime,
		EndTime:   row.EndTime,
		Exercises: exercises,
	}
}

// SessionToRow converts a session header for storage.
func SessionToRow(s WorkoutSession) SessionRow {
	return SessionRow{
		ID:        s.ID,
		WorkoutID: s.WorkoutID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
	}
}
