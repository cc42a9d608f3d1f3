package workouts

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/notify"
	"github.com/claude/ironlog/internal/reconcile"
	"github.com/claude/ironlog/internal/session"
	"github.com/google/uuid"
)

// StartSession projects a template into a new active session. Only one
// session may be active; starting another returns ErrSessionActive.
func (s *Store) StartSession(ctx context.Context, workoutID uuid.UUID) (models.WorkoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return models.WorkoutSession{}, fmt.Errorf("%w: %s", ErrSessionActive, s.active.ID)
	}
	i := s.indexOf(workoutID)
	if i < 0 {
		s.notices.Push(notify.Error, "Workout not found")
		return models.WorkoutSession{}, fmt.Errorf("%w: %s", ErrWorkoutNotFound, workoutID)
	}
	w := s.workouts[i]
	sess := s.proj.Start(w)

	if s.backend != nil {
		if err := s.backend.InsertSession(ctx, models.SessionToRow(sess)); err != nil {
			err = fmt.Errorf("%w: inserting session: %w", ErrBackend, err)
			s.fail("start_session", "Failed to start workout", err)
			return models.WorkoutSession{}, err
		}
		plan := reconcile.Exercises(nil, sess.Exercises, s.newID)
		res, err := reconcile.Apply(ctx, s.backend, models.SessionTables, sess.ID, plan)
		s.metrics.Reconciled(models.SessionTables, res)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrBackend, err)
			s.fail("start_session", "Failed to start workout", err)
			return models.WorkoutSession{}, err
		}
	}

	s.active = &sess
	s.persist(ctx, CurrentSessionKey)
	s.metrics.SessionEvent("started")
	s.notices.Push(notify.Info, "Started workout: "+w.Name)
	s.log.Info("session started", "session_id", sess.ID, "workout_id", w.ID)
	return sess.Clone(), nil
}

// ActiveSession returns a copy of the active session, if any.
func (s *Store) ActiveSession() (models.WorkoutSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return models.WorkoutSession{}, false
	}
	return s.active.Clone(), true
}

// UpdateSessionExercise replaces one exercise of the active session (notes
// and sets). Sets are reconciled by id. When persisting fails the local edit
// is kept and the error is returned alongside the updated session.
func (s *Store) UpdateSessionExercise(ctx context.Context, ex models.WorkoutExercise) (models.WorkoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		s.notices.Push(notify.Error, "No active workout")
		return models.WorkoutSession{}, ErrNoActiveSession
	}
	next, err := session.ReplaceExercise(*s.active, ex)
	if err != nil {
		return models.WorkoutSession{}, err
	}
	i := models.FindExercise(next.Exercises, ex.ID)
	sp := reconcile.Sets(s.active.Exercises[i].Sets, next.Exercises[i].Sets, s.newID)
	next.Exercises[i].Sets = sp.Result
	ex = next.Exercises[i]

	var saveErr error
	if s.backend != nil {
		plan := reconcile.ExercisePlan{
			Update: []models.WorkoutExercise{ex},
			Sets:   []reconcile.ExerciseSets{{ExerciseID: ex.ID, Plan: sp}},
		}
		res, err := reconcile.Apply(ctx, s.backend, models.SessionTables, s.active.ID, plan)
		s.metrics.Reconciled(models.SessionTables, res)
		if err != nil {
			saveErr = fmt.Errorf("%w: %w", ErrBackend, err)
			s.fail("update_session_exercise", "Failed to update exercise", saveErr)
		}
	}

	s.active = &next
	s.persist(ctx, CurrentSessionKey)
	return next.Clone(), saveErr
}

// RecordSetEdit changes one field of one set in the active session and
// reports whether all sets of that exercise are completed. When persisting
// fails the local edit is kept and the error is returned.
func (s *Store) RecordSetEdit(ctx context.Context, exerciseID uuid.UUID, setIndex int, field session.SetField, value string) (models.WorkoutSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		s.notices.Push(notify.Error, "No active workout")
		return models.WorkoutSession{}, false, ErrNoActiveSession
	}
	next, done, err := session.RecordSetEdit(*s.active, exerciseID, setIndex, field, value)
	if err != nil {
		return models.WorkoutSession{}, false, err
	}

	var saveErr error
	if s.backend != nil {
		i := models.FindExercise(next.Exercises, exerciseID)
		set := next.Exercises[i].Sets[setIndex]
		row := models.SetToRow(set, exerciseID, set.Order)
		if err := s.backend.UpdateSet(ctx, models.SessionSetsTable, row); err != nil {
			saveErr = fmt.Errorf("%w: updating set: %w", ErrBackend, err)
			s.fail("record_set", "Failed to update exercise", saveErr)
		} else {
			s.metrics.Reconciled(models.SessionTables, reconcile.Result{SetsUpdated: 1})
		}
	}

	s.active = &next
	s.persist(ctx, CurrentSessionKey)
	return next.Clone(), done, saveErr
}

// EndSession folds the active session's exercises back into the originating
// template, which also gets LastPerformed, and then stamps the session's end
// time. The template is written first so a session whose fold failed is still
// open in the backend and resumes after a restart. On failure the session
// stays active and the template is re-read from the backend so a retry
// reconciles against current rows.
func (s *Store) EndSession(ctx context.Context) (models.WorkoutSession, models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		s.notices.Push(notify.Error, "No active workout to end")
		return models.WorkoutSession{}, models.Workout{}, ErrNoActiveSession
	}
	i := s.indexOf(s.active.WorkoutID)
	if i < 0 {
		s.notices.Push(notify.Error, "Workout not found")
		return models.WorkoutSession{}, models.Workout{}, fmt.Errorf("%w: %s", ErrWorkoutNotFound, s.active.WorkoutID)
	}
	prev := s.workouts[i]
	ended, folded := s.proj.End(*s.active, prev)

	plan := reconcile.Exercises(prev.Exercises, folded.Exercises, s.newID)
	folded.Exercises = plan.Result

	if s.backend != nil {
		err := s.saveTemplate(ctx, folded, plan)
		if err == nil {
			if err = s.backend.UpdateSession(ctx, models.SessionToRow(ended)); err != nil {
				err = fmt.Errorf("%w: ending session: %w", ErrBackend, err)
			}
		}
		if err != nil {
			s.fail("end_session", "Failed to end workout", err)
			s.workouts[i] = s.refetchOr(ctx, prev)
			return models.WorkoutSession{}, models.Workout{}, err
		}
	}

	s.workouts[i] = folded
	s.active = nil
	s.persist(ctx, WorkoutsKey)
	s.persist(ctx, CurrentSessionKey)
	s.metrics.SessionEvent("ended")
	s.notices.Push(notify.Info, "Workout completed")
	s.log.Info("session ended", "session_id", ended.ID, "workout_id", folded.ID,
		"elapsed", session.FormatElapsed(session.ElapsedSeconds(ended, s.now())))
	return ended, folded.Clone(), nil
}
