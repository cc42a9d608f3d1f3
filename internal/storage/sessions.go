package storage

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// InsertSession inserts a workout_sessions row.
func (db *DB) InsertSession(ctx context.Context, row models.SessionRow) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO workout_sessions (id, workout_id, start_time, end_time) VALUES ($1,$2,$3,$4)`,
		row.ID, row.WorkoutID, row.StartTime, row.EndTime)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// UpdateSession sets a session's end time.
func (db *DB) UpdateSession(ctx context.Context, row models.SessionRow) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE workout_sessions SET end_time = $2 WHERE id = $1`, row.ID, row.EndTime)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", row.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", row.ID, ErrNotFound)
	}
	return nil
}

// OpenSessions returns unfinished sessions of the given workouts, newest first.
func (db *DB) OpenSessions(ctx context.Context, workoutIDs []uuid.UUID) ([]models.SessionRow, error) {
	if len(workoutIDs) == 0 {
		return nil, nil
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, workout_id, start_time, end_time FROM workout_sessions
		 WHERE workout_id = ANY($1) AND end_time IS NULL
		 ORDER BY start_time DESC`, workoutIDs)
	if err != nil {
		return nil, fmt.Errorf("querying open sessions: %w", err)
	}
	defer rows.Close()

	var result []models.SessionRow
	for rows.Next() {
		var r models.SessionRow
		if err := rows.Scan(&r.ID, &r.WorkoutID, &r.StartTime, &r.EndTime); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
