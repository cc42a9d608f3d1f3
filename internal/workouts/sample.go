package workouts

import (
	"time"

	"github.com/claude/ironlog/internal/catalog"
	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

const (
	sampleName        = "Full Body Workout"
	sampleDescription = "A complete full body workout for beginners"

	// Defaults for an exercise added from the catalog.
	defaultSetCount = 3
	defaultReps     = 8
)

var samplePlan = []struct {
	exerciseID string
	weight     float64
	reps       int
}{
	{"e1", 45, 10},
	{"e2", 85, 8},
	{"e3", 95, 6},
}

// SampleWorkout is the template seeded for users without any workouts.
func SampleWorkout(now time.Time, newID func() uuid.UUID) models.Workout {
	w := models.Workout{
		ID:          newID(),
		Name:        sampleName,
		Description: sampleDescription,
		CreatedAt:   now,
		Exercises:   make([]models.WorkoutExercise, 0, len(samplePlan)),
	}
	for i, p := range samplePlan {
		ex := models.WorkoutExercise{
			ID:           newID(),
			ExerciseID:   p.exerciseID,
			ExerciseName: catalog.DisplayName(p.exerciseID, ""),
			Order:        i,
		}
		for j := 0; j < 3; j++ {
			ex.Sets = append(ex.Sets, models.ExerciseSet{ID: newID(), Weight: p.weight, Reps: p.reps, Order: j})
		}
		w.Exercises = append(w.Exercises, ex)
	}
	return w
}

// CatalogExercise returns a new exercise entry for the catalog id with the
// default sets. Unknown ids get the display fallback name.
func CatalogExercise(exerciseID string) models.WorkoutExercise {
	ex := models.WorkoutExercise{
		ExerciseID:   exerciseID,
		ExerciseName: catalog.DisplayName(exerciseID, ""),
		Sets:         make([]models.ExerciseSet, defaultSetCount),
	}
	for i := range ex.Sets {
		ex.Sets[i] = models.ExerciseSet{Reps: defaultReps, Order: i}
	}
	return ex
}
