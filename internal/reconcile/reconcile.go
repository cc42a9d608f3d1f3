// Package reconcile computes and applies the insert/update/delete operations
// that bring a stored exercise tree in line with an edited one.
package reconcile

import (
	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// IDFunc generates identifiers for inserted items that arrive without one.
type IDFunc func() uuid.UUID

// SetPlan is the set-level diff for one exercise.
type SetPlan struct {
	Insert []models.ExerciseSet
	Update []models.ExerciseSet
	Delete []models.ExerciseSet
	// Result is the updated set list with identifiers and dense orders assigned.
	Result []models.ExerciseSet
}

// ExerciseSets ties a set plan to the exercise that owns it.
type ExerciseSets struct {
	ExerciseID uuid.UUID
	Plan       SetPlan
}

// ExercisePlan is the exercise-level diff plus one nested set plan per
// surviving or inserted exercise, in updated order.
type ExercisePlan struct {
	Insert []models.WorkoutExercise
	Update []models.WorkoutExercise
	Delete []models.WorkoutExercise
	Sets   []ExerciseSets
	// Result is the updated exercise tree with identifiers and dense orders assigned.
	Result []models.WorkoutExercise
}

// Sets diffs two set lists by identifier. Every updated set gets its index as
// Order; sets without an identifier get one from newID.
func Sets(prev, next []models.ExerciseSet, newID IDFunc) SetPlan {
	if newID == nil {
		newID = uuid.New
	}
	prevIDs := make(map[uuid.UUID]struct{}, len(prev))
	for _, s := range prev {
		prevIDs[s.ID] = struct{}{}
	}
	nextIDs := make(map[uuid.UUID]struct{}, len(next))
	for _, s := range next {
		nextIDs[s.ID] = struct{}{}
	}

	plan := SetPlan{Result: make([]models.ExerciseSet, 0, len(next))}
	for _, s := range prev {
		if _, ok := nextIDs[s.ID]; !ok {
			plan.Delete = append(plan.Delete, s)
		}
	}
	for i, s := range next {
		s.Order = i
		if _, ok := prevIDs[s.ID]; ok && s.ID != uuid.Nil {
			plan.Update = append(plan.Update, s)
		} else {
			if s.ID == uuid.Nil {
				s.ID = newID()
			}
			plan.Insert = append(plan.Insert, s)
		}
		plan.Result = append(plan.Result, s)
	}
	return plan
}

// Exercises diffs two exercise lists by identifier and recurses into the sets
// of every exercise that survives or is inserted. Deleted exercises take their
// sets with them, so no set plan is produced for them.
func Exercises(prev, next []models.WorkoutExercise, newID IDFunc) ExercisePlan {
	if newID == nil {
		newID = uuid.New
	}
	prevByID := make(map[uuid.UUID]models.WorkoutExercise, len(prev))
	for _, ex := range prev {
		prevByID[ex.ID] = ex
	}
	nextIDs := make(map[uuid.UUID]struct{}, len(next))
	for _, ex := range next {
		nextIDs[ex.ID] = struct{}{}
	}

	plan := ExercisePlan{Result: make([]models.WorkoutExercise, 0, len(next))}
	for _, ex := range prev {
		if _, ok := nextIDs[ex.ID]; !ok {
			plan.Delete = append(plan.Delete, ex)
		}
	}
	for i, ex := range next {
		ex.Order = i
		old, existed := prevByID[ex.ID]
		existed = existed && ex.ID != uuid.Nil
		if !existed && ex.ID == uuid.Nil {
			ex.ID = newID()
		}

		var prevSets []models.ExerciseSet
		if existed {
			prevSets = old.Sets
		}
		sp := Sets(prevSets, ex.Sets, newID)
		ex.Sets = sp.Result

		if existed {
			plan.Update = append(plan.Update, ex)
		} else {
			plan.Insert = append(plan.Insert, ex)
		}
		plan.Sets = append(plan.Sets, ExerciseSets{ExerciseID: ex.ID, Plan: sp})
		plan.Result = append(plan.Result, ex)
	}
	return plan
}

// Empty reports whether the plan issues no insert or delete at any level.
// Updates are always issued for surviving items.
func (p ExercisePlan) Empty() bool {
	if len(p.Insert) > 0 || len(p.Delete) > 0 {
		return false
	}
	for _, s := range p.Sets {
		if len(s.Plan.Insert) > 0 || len(s.Plan.Delete) > 0 {
			return false
		}
	}
	return true
}
