package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// SetField names an editable set field.
type SetField string

const (
	FieldWeight    SetField = "weight"
	FieldReps      SetField = "reps"
	FieldCompleted SetField = "completed"
)

// ParseField validates a field name.
func ParseField(s string) (SetField, error) {
	switch f := SetField(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldWeight, FieldReps, FieldCompleted:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// RecordSetEdit returns a copy of the session with one field of one set
// changed, plus whether every set of that exercise is now completed.
//
// Numeric input that does not parse coerces to zero, as do negative values.
// Completed accepts the strconv.ParseBool spellings; anything else is false.
func RecordSetEdit(s models.WorkoutSession, exerciseID uuid.UUID, setIndex int, field SetField, value string) (models.WorkoutSession, bool, error) {
	i := models.FindExercise(s.Exercises, exerciseID)
	if i < 0 {
		return s, false, fmt.Errorf("%w: %s", ErrExerciseNotFound, exerciseID)
	}
	if setIndex < 0 || setIndex >= len(s.Exercises[i].Sets) {
		return s, false, fmt.Errorf("%w: %d", ErrSetNotFound, setIndex)
	}

	out := s.Clone()
	set := &out.Exercises[i].Sets[setIndex]
	switch field {
	case FieldWeight:
		set.Weight = models.CoerceWeight(parseLeadingFloat(value))
	case FieldReps:
		set.Reps = models.CoerceReps(parseLeadingFloat(value))
	case FieldCompleted:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		set.Completed = err == nil && b
	default:
		return s, false, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return out, AllCompleted(out.Exercises[i]), nil
}

// ReplaceExercise returns a copy of the session with the exercise of the same
// id swapped for ex. Set weights and reps are coerced on the way in.
func ReplaceExercise(s models.WorkoutSession, ex models.WorkoutExercise) (models.WorkoutSession, error) {
	i := models.FindExercise(s.Exercises, ex.ID)
	if i < 0 {
		return s, fmt.Errorf("%w: %s", ErrExerciseNotFound, ex.ID)
	}
	out := s.Clone()
	ex = models.CloneExercises([]models.WorkoutExercise{ex})[0]
	ex.Order = out.Exercises[i].Order
	for j := range ex.Sets {
		ex.Sets[j].Weight = models.CoerceWeight(ex.Sets[j].Weight)
		if ex.Sets[j].Reps < 0 {
			ex.Sets[j].Reps = 0
		}
	}
	out.Exercises[i] = ex
	return out, nil
}

// parseLeadingFloat parses the longest numeric prefix of s ("12kg" -> 12).
// No numeric prefix yields 0.
func parseLeadingFloat(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	seenDigit, seenDot := false, false
loop:
	for end < len(s) {
		c := s[end]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case c == '.' && !seenDot:
			seenDot = true
		case (c == '-' || c == '+') && end == 0:
		default:
			break loop
		}
		end++
	}
	if !seenDigit {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0
	}
	return f
}
