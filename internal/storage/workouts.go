package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const workoutColumns = `id, user_id, name, description, created_at, last_performed`

func scanWorkout(row pgx.Row) (models.WorkoutRow, error) {
	var w models.WorkoutRow
	err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Description, &w.CreatedAt, &w.LastPerformed)
	return w, err
}

// ListWorkouts returns the user's workout headers, newest first.
func (db *DB) ListWorkouts(ctx context.Context, userID int) ([]models.WorkoutRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+workoutColumns+` FROM workouts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutRow
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// GetWorkout returns one workout header owned by the user.
func (db *DB) GetWorkout(ctx context.Context, userID int, id uuid.UUID) (models.WorkoutRow, error) {
	w, err := scanWorkout(db.Pool.QueryRow(ctx,
		`SELECT `+workoutColumns+` FROM workouts WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.WorkoutRow{}, fmt.Errorf("workout %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.WorkoutRow{}, fmt.Errorf("getting workout %s: %w", id, err)
	}
	return w, nil
}

// InsertWorkout inserts a workout header.
func (db *DB) InsertWorkout(ctx context.Context, row models.WorkoutRow) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO workouts (`+workoutColumns+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		row.ID, row.UserID, row.Name, row.Description, row.CreatedAt, row.LastPerformed)
	if err != nil {
		return fmt.Errorf("inserting workout: %w", err)
	}
	return nil
}

// UpdateWorkout rewrites the mutable header fields.
func (db *DB) UpdateWorkout(ctx context.Context, row models.WorkoutRow) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE workouts SET name = $3, description = $4, last_performed = $5
		 WHERE id = $1 AND user_id = $2`,
		row.ID, row.UserID, row.Name, row.Description, row.LastPerformed)
	if err != nil {
		return fmt.Errorf("updating workout %s: %w", row.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workout %s: %w", row.ID, ErrNotFound)
	}
	return nil
}

// DeleteWorkout removes a workout; exercises, sets and sessions cascade.
func (db *DB) DeleteWorkout(ctx context.Context, userID int, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM workouts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting workout %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workout %s: %w", id, ErrNotFound)
	}
	return nil
}
