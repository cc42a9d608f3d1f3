package models

import (
	"time"

	"github.com/google/uuid"
)

// ExerciseSet is one planned or performed set.
type ExerciseSet struct {
	ID        uuid.UUID `json:"id"`
	Weight    float64   `json:"weight"`
	Reps      int       `json:"reps"`
	Completed bool      `json:"completed"`
	Order     int       `json:"order"`
}

// WorkoutExercise is an exercise placed in a workout or session. ExerciseID
// references the catalog; ExerciseName is a denormalized copy.
type WorkoutExercise struct {
	ID           uuid.UUID     `json:"id"`
	ExerciseID   string        `json:"exerciseId"`
	ExerciseName string        `json:"exerciseName"`
	Notes        string        `json:"notes,omitempty"`
	Order        int           `json:"order"`
	Sets         []ExerciseSet `json:"sets"`
}

// Workout is a reusable template and the root of its exercise tree.
type Workout struct {
	ID            uuid.UUID         `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	LastPerformed *time.Time        `json:"lastPerformed,omitempty"`
	Exercises     []WorkoutExercise `json:"exercises"`
}

// WorkoutSession is one in-progress performance of a Workout.
type WorkoutSession struct {
	ID        uuid.UUID         `json:"id"`
	WorkoutID uuid.UUID         `json:"workoutId"`
	StartTime time.Time         `json:"startTime"`
	EndTime   *time.Time        `json:"endTime,omitempty"`
	Exercises []WorkoutExercise `json:"exercises"`
}

// CloneExercises deep-copies an exercise list so callers can mutate the
// result without aliasing set slices.
func CloneExercises(in []WorkoutExercise) []WorkoutExercise {
	if in == nil {
		return nil
	}
	out := make([]WorkoutExercise, len(in))
	for i, ex := range in {
		out[i] = ex
		if ex.Sets != nil {
			out[i].Sets = make([]ExerciseSet, len(ex.Sets))
			copy(out[i].Sets, ex.Sets)
		}
	}
	return out
}

// Clone deep-copies the workout.
func (w Workout) Clone() Workout {
	w.Exercises = CloneExercises(w.Exercises)
	if w.LastPerformed != nil {
		t := *w.LastPerformed
		w.LastPerformed = &t
	}
	return w
}

// Clone deep-copies the session.
func (s WorkoutSession) Clone() WorkoutSession {
	s.Exercises = CloneExercises(s.Exercises)
	if s.EndTime != nil {
		t := *s.EndTime
		s.EndTime = &t
	}
	return s
}

// FindExercise returns the index of the exercise with the given id, or -1.
func FindExercise(exercises []WorkoutExercise, id uuid.UUID) int {
	for i, ex := range exercises {
		if ex.ID == id {
			return i
		}
	}
	return -1
}
