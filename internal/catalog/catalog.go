package catalog

import (
	"sort"
	"strings"
)

// UnknownExerciseName is shown when a workout references an exercise id that
// is not in the catalog and carries no denormalized name.
const UnknownExerciseName = "Unknown Exercise"

// Exercise is an immutable reference exercise.
type Exercise struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

// Category groups catalog exercises for the exercise picker.
type Category struct {
	Name      string     `json:"name"`
	Exercises []Exercise `json:"exercises"`
}

var exercises = []Exercise{
	{ID: "e1", Name: "Bench Press", Category: "Chest"},
	{ID: "e2", Name: "Squat", Category: "Legs"},
	{ID: "e3", Name: "Deadlift", Category: "Back"},
	{ID: "e4", Name: "Pull-up", Category: "Back"},
	{ID: "e5", Name: "Push-up", Category: "Chest"},
	{ID: "e6", Name: "Shoulder Press", Category: "Shoulders"},
	{ID: "e7", Name: "Bicep Curl", Category: "Arms"},
	{ID: "e8", Name: "Tricep Extension", Category: "Arms"},
	{ID: "e9", Name: "Leg Press", Category: "Legs"},
	{ID: "e10", Name: "Lat Pulldown", Category: "Back"},
	{ID: "e11", Name: "Leg Curl", Category: "Legs"},
	{ID: "e12", Name: "Leg Extension", Category: "Legs"},
	{ID: "e13", Name: "Plank", Category: "Core"},
	{ID: "e14", Name: "Crunches", Category: "Core"},
	{ID: "e15", Name: "Russian Twist", Category: "Core"},
}

var byID = func() map[string]Exercise {
	m := make(map[string]Exercise, len(exercises))
	for _, e := range exercises {
		m[e.ID] = e
	}
	return m
}()

// All returns a copy of the catalog in its canonical order.
func All() []Exercise {
	out := make([]Exercise, len(exercises))
	copy(out, exercises)
	return out
}

// Lookup finds an exercise by id.
func Lookup(id string) (Exercise, bool) {
	e, ok := byID[id]
	return e, ok
}

// DisplayName resolves the name to show for an exercise reference.
// Catalog names win; otherwise the stored fallback, otherwise UnknownExerciseName.
func DisplayName(id, fallback string) string {
	if e, ok := byID[id]; ok {
		return e.Name
	}
	if fallback != "" {
		return fallback
	}
	return UnknownExerciseName
}

// FindByName matches a catalog exercise by name, ignoring case and surrounding space.
func FindByName(name string) (Exercise, bool) {
	name = strings.TrimSpace(name)
	for _, e := range exercises {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Exercise{}, false
}

// ByCategory groups the catalog by category. Categories are sorted by name,
// exercises keep catalog order within their category.
func ByCategory() []Category {
	idx := map[string]int{}
	var out []Category
	for _, e := range exercises {
		i, ok := idx[e.Category]
		if !ok {
			i = len(out)
			idx[e.Category] = i
			out = append(out, Category{Name: e.Category})
		}
		out[i].Exercises = append(out[i].Exercises, e)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// InCategory returns the exercises of one category (case-insensitive).
// An empty category returns the full catalog.
func InCategory(category string) []Exercise {
	if category == "" {
		return All()
	}
	var out []Exercise
	for _, e := range exercises {
		if strings.EqualFold(e.Category, category) {
			out = append(out, e)
		}
	}
	return out
}
