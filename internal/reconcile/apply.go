package reconcile

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// Writer is the subset of the backend CRUD API that Apply needs.
type Writer interface {
	InsertExercises(ctx context.Context, t models.Table, rows []models.ExerciseRow) error
	UpdateExercise(ctx context.Context, t models.Table, row models.ExerciseRow) error
	DeleteExercises(ctx context.Context, t models.Table, ids []uuid.UUID) error
	InsertSets(ctx context.Context, t models.Table, rows []models.SetRow) error
	UpdateSet(ctx context.Context, t models.Table, row models.SetRow) error
	DeleteSets(ctx context.Context, t models.Table, ids []uuid.UUID) error
}

// Result counts the operations that were applied.
type Result struct {
	ExercisesInserted int `json:"exercises_inserted"`
	ExercisesUpdated  int `json:"exercises_updated"`
	ExercisesDeleted  int `json:"exercises_deleted"`
	SetsInserted      int `json:"sets_inserted"`
	SetsUpdated       int `json:"sets_updated"`
	SetsDeleted       int `json:"sets_deleted"`
}

// Apply writes the plan under parentID: exercises are deleted, updated and
// inserted, then the set deletes of every exercise run before any set update
// or insert, so a set that moved to another exercise is removed from its old
// parent before it is written under the new one.
//
// Apply stops at the first failing call. The returned Result counts what was
// written before the failure; nothing is rolled back.
func Apply(ctx context.Context, w Writer, tables models.Tables, parentID uuid.UUID, plan ExercisePlan) (Result, error) {
	var res Result

	if len(plan.Delete) > 0 {
		ids := make([]uuid.UUID, len(plan.Delete))
		for i, ex := range plan.Delete {
			ids[i] = ex.ID
		}
		if err := w.DeleteExercises(ctx, tables.Exercises, ids); err != nil {
			return res, fmt.Errorf("deleting %d exercises: %w", len(ids), err)
		}
		res.ExercisesDeleted = len(ids)
	}

	for _, ex := range plan.Update {
		if err := w.UpdateExercise(ctx, tables.Exercises, models.ExerciseToRow(ex, parentID, ex.Order)); err != nil {
			return res, fmt.Errorf("updating exercise %s: %w", ex.ID, err)
		}
		res.ExercisesUpdated++
	}

	if len(plan.Insert) > 0 {
		rows := make([]models.ExerciseRow, len(plan.Insert))
		for i, ex := range plan.Insert {
			rows[i] = models.ExerciseToRow(ex, parentID, ex.Order)
		}
		if err := w.InsertExercises(ctx, tables.Exercises, rows); err != nil {
			return res, fmt.Errorf("inserting %d exercises: %w", len(rows), err)
		}
		res.ExercisesInserted = len(rows)
	}

	for _, es := range plan.Sets {
		if err := deleteSets(ctx, w, tables.Sets, es, &res); err != nil {
			return res, err
		}
	}
	for _, es := range plan.Sets {
		if err := writeSets(ctx, w, tables.Sets, es, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func deleteSets(ctx context.Context, w Writer, t models.Table, es ExerciseSets, res *Result) error {
	if len(es.Plan.Delete) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(es.Plan.Delete))
	for i, s := range es.Plan.Delete {
		ids[i] = s.ID
	}
	if err := w.DeleteSets(ctx, t, ids); err != nil {
		return fmt.Errorf("deleting %d sets of exercise %s: %w", len(ids), es.ExerciseID, err)
	}
	res.SetsDeleted += len(ids)
	return nil
}

func writeSets(ctx context.Context, w Writer, t models.Table, es ExerciseSets, res *Result) error {
	sp := es.Plan
	for _, s := range sp.Update {
		if err := w.UpdateSet(ctx, t, models.SetToRow(s, es.ExerciseID, s.Order)); err != nil {
			return fmt.Errorf("updating set %s: %w", s.ID, err)
		}
		res.SetsUpdated++
	}

	if len(sp.Insert) > 0 {
		rows := make([]models.SetRow, len(sp.Insert))
		for i, s := range sp.Insert {
			rows[i] = models.SetToRow(s, es.ExerciseID, s.Order)
		}
		if err := w.InsertSets(ctx, t, rows); err != nil {
			return fmt.Errorf("inserting %d sets of exercise %s: %w", len(rows), es.ExerciseID, err)
		}
		res.SetsInserted += len(rows)
	}
	return nil
}
