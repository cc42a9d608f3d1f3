package importer

import (
	"fmt"
	"strings"

	"github.com/claude/ironlog/internal/catalog"
	"github.com/claude/ironlog/internal/models"
)

// Template converts a parsed session into a new workout template. Exercise
// names are matched against the catalog; unmatched exercises keep their
// exported name and an empty catalog id. Warm-up sets are dropped and
// working sets keep their export order, uncompleted. Identifiers are left
// for the store to assign.
func Template(s Session) models.Workout {
	w := models.Workout{
		Name:        strings.TrimSpace(s.Name),
		Description: describe(s),
		Exercises:   make([]models.WorkoutExercise, 0, len(s.Exercises)),
	}
	for i, ex := range s.Exercises {
		we := models.WorkoutExercise{
			ExerciseName: ex.Name,
			Notes:        ex.Equipment,
			Order:        i,
			Sets:         []models.ExerciseSet{},
		}
		if c, ok := matchCatalog(ex.Name); ok {
			we.ExerciseID = c.ID
			we.ExerciseName = c.Name
		}
		for j, set := range ex.WorkingSets() {
			we.Sets = append(we.Sets, models.ExerciseSet{
				Weight: models.CoerceWeight(set.WeightKg),
				Reps:   models.CoerceReps(float64(set.Reps)),
				Order:  j,
			})
		}
		w.Exercises = append(w.Exercises, we)
	}
	return w
}

// matchCatalog tries the exported name, then its singular form
// ("Pull-ups" finds "Pull-up").
func matchCatalog(name string) (catalog.Exercise, bool) {
	if c, ok := catalog.FindByName(name); ok {
		return c, true
	}
	if trimmed, ok := strings.CutSuffix(strings.TrimSpace(name), "s"); ok && trimmed != "" {
		return catalog.FindByName(trimmed)
	}
	return catalog.Exercise{}, false
}

func describe(s Session) string {
	d := "Imported from Alpha Progression"
	if !s.Date.IsZero() {
		d += fmt.Sprintf(", performed %s", s.Date.Format("2006-01-02"))
	}
	if s.Duration != "" {
		d += fmt.Sprintf(" (%s)", s.Duration)
	}
	return d
}
