// Package session projects workout templates into live sessions and folds
// finished sessions back into their templates.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

var (
	ErrExerciseNotFound = errors.New("exercise not found in session")
	ErrSetNotFound      = errors.New("set index out of range")
	ErrUnknownField     = errors.New("unknown set field")
)

// Projector creates and closes sessions. Its clock and id source are
// replaceable for tests.
type Projector struct {
	now   func() time.Time
	newID func() uuid.UUID
}

// Option configures a Projector.
type Option func(*Projector)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Projector) { p.now = now }
}

// WithIDs overrides uuid.New.
func WithIDs(newID func() uuid.UUID) Option {
	return func(p *Projector) { p.newID = newID }
}

// NewProjector returns a Projector using the wall clock and random UUIDs.
func NewProjector(opts ...Option) *Projector {
	p := &Projector{now: time.Now, newID: uuid.New}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start deep-copies the workout's exercise tree into a new session. Every copy
// gets a fresh identifier and every set starts not completed.
func (p *Projector) Start(w models.Workout) models.WorkoutSession {
	s := models.WorkoutSession{
		ID:        p.newID(),
		WorkoutID: w.ID,
		StartTime: p.now().UTC(),
		Exercises: make([]models.WorkoutExercise, 0, len(w.Exercises)),
	}
	for i, ex := range w.Exercises {
		cp := models.WorkoutExercise{
			ID:           p.newID(),
			ExerciseID:   ex.ExerciseID,
			ExerciseName: ex.ExerciseName,
			Notes:        ex.Notes,
			Order:        i,
			Sets:         make([]models.ExerciseSet, 0, len(ex.Sets)),
		}
		for j, set := range ex.Sets {
			cp.Sets = append(cp.Sets, models.ExerciseSet{
				ID:     p.newID(),
				Weight: set.Weight,
				Reps:   set.Reps,
				Order:  j,
			})
		}
		s.Exercises = append(s.Exercises, cp)
	}
	return s
}

// End stamps the session's end time and folds its exercises back into the
// template as the authoritative exercise list. LastPerformed becomes the end
// time; name and description are left alone.
//
// Exercises and sets that line up with the template by position (and, for
// exercises, by catalog id) take the template's identifiers so that saving the
// template updates rows instead of replacing them.
func (p *Projector) End(s models.WorkoutSession, w models.Workout) (models.WorkoutSession, models.Workout) {
	end := p.now().UTC()
	s = s.Clone()
	s.EndTime = &end

	w = w.Clone()
	w.Exercises = p.fold(w.Exercises, s.Exercises)
	performed := end
	w.LastPerformed = &performed
	return s, w
}

func (p *Projector) fold(template, performed []models.WorkoutExercise) []models.WorkoutExercise {
	out := models.CloneExercises(performed)
	if out == nil {
		out = []models.WorkoutExercise{}
	}
	for i := range out {
		ex := &out[i]
		ex.Order = i
		var tplSets []models.ExerciseSet
		if i < len(template) && template[i].ExerciseID == ex.ExerciseID {
			ex.ID = template[i].ID
			tplSets = template[i].Sets
		} else {
			ex.ID = p.newID()
		}
		for j := range ex.Sets {
			ex.Sets[j].Order = j
			if j < len(tplSets) {
				ex.Sets[j].ID = tplSets[j].ID
			} else {
				ex.Sets[j].ID = p.newID()
			}
		}
	}
	return out
}

// AllCompleted reports whether every set of the exercise is completed.
// An exercise without sets counts as completed.
func AllCompleted(ex models.WorkoutExercise) bool {
	for _, s := range ex.Sets {
		if !s.Completed {
			return false
		}
	}
	return true
}

// ElapsedSeconds returns the whole seconds since the session started, or
// until it ended when it has an end time.
func ElapsedSeconds(s models.WorkoutSession, now time.Time) int64 {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	d := end.Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// FormatElapsed renders seconds as zero-padded mm:ss. Minutes are not
// wrapped into hours.
func FormatElapsed(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
