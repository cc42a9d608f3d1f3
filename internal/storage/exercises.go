package storage

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// ListExercises returns the exercise rows of one workout or session.
func (db *DB) ListExercises(ctx context.Context, t models.Table, parentID uuid.UUID) ([]models.ExerciseRow, error) {
	table, parent, err := idents(t)
	if err != nil {
		return nil, err
	}
	rows, err := db.Pool.Query(ctx, fmt.Sprintf(
		`SELECT id, %[2]s, exercise_id, exercise_name, notes, "order" FROM %[1]s
		 WHERE %[2]s = $1 ORDER BY "order" ASC`, table, parent), parentID)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", t.Name, err)
	}
	defer rows.Close()

	var result []models.ExerciseRow
	for rows.Next() {
		var r models.ExerciseRow
		if err := rows.Scan(&r.ID, &r.ParentID, &r.ExerciseID, &r.ExerciseName, &r.Notes, &r.Order); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", t.Name, err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ListSets returns the set rows under the given exercises.
func (db *DB) ListSets(ctx context.Context, t models.Table, exerciseIDs []uuid.UUID) ([]models.SetRow, error) {
	if len(exerciseIDs) == 0 {
		return nil, nil
	}
	table, parent, err := idents(t)
	if err != nil {
		return nil, err
	}
	rows, err := db.Pool.Query(ctx, fmt.Sprintf(
		`SELECT id, %[2]s, weight, reps, completed, "order" FROM %[1]s
		 WHERE %[2]s = ANY($1) ORDER BY %[2]s, "order" ASC`, table, parent), exerciseIDs)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", t.Name, err)
	}
	defer rows.Close()

	var result []models.SetRow
	for rows.Next() {
		var (
			r      models.SetRow
			weight float64
			reps   int
		)
		if err := rows.Scan(&r.ID, &r.ParentID, &weight, &reps, &r.Completed, &r.Order); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", t.Name, err)
		}
		r.Weight = models.Number(weight)
		r.Reps = models.Number(reps)
		result = append(result, r)
	}
	return result, rows.Err()
}

// InsertExercises batch-inserts exercise rows.
func (db *DB) InsertExercises(ctx context.Context, t models.Table, rows []models.ExerciseRow) error {
	if len(rows) == 0 {
		return nil
	}
	table, parent, err := idents(t)
	if err != nil {
		return err
	}
	args := make([]any, 0, len(rows)*6)
	for _, r := range rows {
		args = append(args, r.ID, r.ParentID, r.ExerciseID, r.ExerciseName, r.Notes, r.Order)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, %s, exercise_id, exercise_name, notes, "order") VALUES `, table, parent) +
		placeholders(len(rows), 6)
	if _, err := db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %s: %w", t.Name, err)
	}
	return nil
}

// UpdateExercise rewrites one exercise row's mutable fields.
func (db *DB) UpdateExercise(ctx context.Context, t models.Table, row models.ExerciseRow) error {
	table, _, err := idents(t)
	if err != nil {
		return err
	}
	tag, err := db.Pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET exercise_id = $2, exercise_name = $3, notes = $4, "order" = $5 WHERE id = $1`, table),
		row.ID, row.ExerciseID, row.ExerciseName, row.Notes, row.Order)
	if err != nil {
		return fmt.Errorf("updating %s %s: %w", t.Name, row.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", t.Name, row.ID, ErrNotFound)
	}
	return nil
}

// DeleteExercises removes exercise rows by id; their sets cascade.
func (db *DB) DeleteExercises(ctx context.Context, t models.Table, ids []uuid.UUID) error {
	return db.deleteByIDs(ctx, t, ids)
}

// InsertSets batch-inserts set rows.
func (db *DB) InsertSets(ctx context.Context, t models.Table, rows []models.SetRow) error {
	if len(rows) == 0 {
		return nil
	}
	table, parent, err := idents(t)
	if err != nil {
		return err
	}
	args := make([]any, 0, len(rows)*6)
	for _, r := range rows {
		args = append(args, r.ID, r.ParentID, r.Weight.Float64(), int(r.Reps), r.Completed, r.Order)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, %s, weight, reps, completed, "order") VALUES `, table, parent) +
		placeholders(len(rows), 6)
	if _, err := db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %s: %w", t.Name, err)
	}
	return nil
}

// UpdateSet rewrites one set row's mutable fields.
func (db *DB) UpdateSet(ctx context.Context, t models.Table, row models.SetRow) error {
	table, _, err := idents(t)
	if err != nil {
		return err
	}
	tag, err := db.Pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET weight = $2, reps = $3, completed = $4, "order" = $5 WHERE id = $1`, table),
		row.ID, row.Weight.Float64(), int(row.Reps), row.Completed, row.Order)
	if err != nil {
		return fmt.Errorf("updating %s %s: %w", t.Name, row.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", t.Name, row.ID, ErrNotFound)
	}
	return nil
}

// DeleteSets removes set rows by id.
func (db *DB) DeleteSets(ctx context.Context, t models.Table, ids []uuid.UUID) error {
	return db.deleteByIDs(ctx, t, ids)
}

func (db *DB) deleteByIDs(ctx context.Context, t models.Table, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	table, _, err := idents(t)
	if err != nil {
		return err
	}
	if _, err := db.Pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, table), ids); err != nil {
		return fmt.Errorf("deleting %d rows from %s: %w", len(ids), t.Name, err)
	}
	return nil
}
