package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

const (
	workoutsTable = "workouts"
	sessionsTable = "workout_sessions"
	usersTable    = "users"
)

// ListWorkouts returns the user's workout headers, newest first.
func (c *Client) ListWorkouts(ctx context.Context, userID int) ([]models.WorkoutRow, error) {
	var rows []models.WorkoutRow
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  workoutsTable,
		params: url.Values{"user_id": {eq(userID)}, "order": {"created_at.desc"}},
	}, &rows)
	return rows, err
}

// GetWorkout returns one workout header owned by the user.
func (c *Client) GetWorkout(ctx context.Context, userID int, id uuid.UUID) (models.WorkoutRow, error) {
	var rows []models.WorkoutRow
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  workoutsTable,
		params: url.Values{"id": {eq(id)}, "user_id": {eq(userID)}},
	}, &rows)
	if err != nil {
		return models.WorkoutRow{}, err
	}
	if len(rows) == 0 {
		return models.WorkoutRow{}, fmt.Errorf("workout %s: %w", id, ErrNotFound)
	}
	return rows[0], nil
}

func (c *Client) InsertWorkout(ctx context.Context, row models.WorkoutRow) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		table:  workoutsTable,
		body:   []models.WorkoutRow{row},
		prefer: "return=minimal",
	}, nil)
}

// UpdateWorkout rewrites the mutable header fields.
func (c *Client) UpdateWorkout(ctx context.Context, row models.WorkoutRow) error {
	return c.patch(ctx, workoutsTable,
		url.Values{"id": {eq(row.ID)}, "user_id": {eq(row.UserID)}},
		map[string]any{
			"name":           row.Name,
			"description":    row.Description,
			"last_performed": row.LastPerformed,
		}, row.ID)
}

// DeleteWorkout removes a workout; the hosted schema cascades to its children.
func (c *Client) DeleteWorkout(ctx context.Context, userID int, id uuid.UUID) error {
	var deleted []json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodDelete,
		table:  workoutsTable,
		params: url.Values{"id": {eq(id)}, "user_id": {eq(userID)}},
		prefer: "return=representation",
	}, &deleted)
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		return fmt.Errorf("workout %s: %w", id, ErrNotFound)
	}
	return nil
}

// patch updates rows matching params and fails with ErrNotFound when none matched.
func (c *Client) patch(ctx context.Context, table string, params url.Values, body map[string]any, id uuid.UUID) error {
	var updated []json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPatch,
		table:  table,
		params: params,
		body:   body,
		prefer: "return=representation",
	}, &updated)
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return nil
}

// ListExercises returns the exercise rows of one workout or session.
func (c *Client) ListExercises(ctx context.Context, t models.Table, parentID uuid.UUID) ([]models.ExerciseRow, error) {
	var raw []json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  t.Name,
		params: url.Values{t.Parent: {eq(parentID)}, "order": {"order.asc"}},
	}, &raw)
	if err != nil {
		return nil, err
	}
	rows, err := decodeChildren(raw, t.Parent, func(r *models.ExerciseRow, p uuid.UUID) { r.ParentID = p })
	if err != nil {
		return nil, fmt.Errorf("restclient: decode %s: %w", t.Name, err)
	}
	return rows, nil
}

// ListSets returns the set rows under the given exercises.
func (c *Client) ListSets(ctx context.Context, t models.Table, exerciseIDs []uuid.UUID) ([]models.SetRow, error) {
	if len(exerciseIDs) == 0 {
		return nil, nil
	}
	var raw []json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  t.Name,
		params: url.Values{t.Parent: {in(exerciseIDs)}, "order": {t.Parent + ".asc,order.asc"}},
	}, &raw)
	if err != nil {
		return nil, err
	}
	rows, err := decodeChildren(raw, t.Parent, func(r *models.SetRow, p uuid.UUID) { r.ParentID = p })
	if err != nil {
		return nil, fmt.Errorf("restclient: decode %s: %w", t.Name, err)
	}
	return rows, nil
}

func (c *Client) InsertExercises(ctx context.Context, t models.Table, rows []models.ExerciseRow) error {
	if len(rows) == 0 {
		return nil
	}
	body := make([]map[string]any, len(rows))
	for i, r := range rows {
		m, err := withParent(r, t.Parent, r.ParentID)
		if err != nil {
			return fmt.Errorf("restclient: encode %s: %w", t.Name, err)
		}
		body[i] = m
	}
	return c.do(ctx, request{method: http.MethodPost, table: t.Name, body: body, prefer: "return=minimal"}, nil)
}

func (c *Client) UpdateExercise(ctx context.Context, t models.Table, row models.ExerciseRow) error {
	return c.patch(ctx, t.Name, url.Values{"id": {eq(row.ID)}}, map[string]any{
		"exercise_id":   row.ExerciseID,
		"exercise_name": row.ExerciseName,
		"notes":         row.Notes,
		"order":         row.Order,
	}, row.ID)
}

func (c *Client) DeleteExercises(ctx context.Context, t models.Table, ids []uuid.UUID) error {
	return c.deleteIDs(ctx, t.Name, ids)
}

func (c *Client) InsertSets(ctx context.Context, t models.Table, rows []models.SetRow) error {
	if len(rows) == 0 {
		return nil
	}
	body := make([]map[string]any, len(rows))
	for i, r := range rows {
		m, err := withParent(r, t.Parent, r.ParentID)
		if err != nil {
			return fmt.Errorf("restclient: encode %s: %w", t.Name, err)
		}
		body[i] = m
	}
	return c.do(ctx, request{method: http.MethodPost, table: t.Name, body: body, prefer: "return=minimal"}, nil)
}

func (c *Client) UpdateSet(ctx context.Context, t models.Table, row models.SetRow) error {
	return c.patch(ctx, t.Name, url.Values{"id": {eq(row.ID)}}, map[string]any{
		"weight":    row.Weight.Float64(),
		"reps":      int(row.Reps),
		"completed": row.Completed,
		"order":     row.Order,
	}, row.ID)
}

func (c *Client) DeleteSets(ctx context.Context, t models.Table, ids []uuid.UUID) error {
	return c.deleteIDs(ctx, t.Name, ids)
}

func (c *Client) deleteIDs(ctx context.Context, table string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return c.do(ctx, request{
		method: http.MethodDelete,
		table:  table,
		params: url.Values{"id": {in(ids)}},
	}, nil)
}

func (c *Client) InsertSession(ctx context.Context, row models.SessionRow) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		table:  sessionsTable,
		body:   []models.SessionRow{row},
		prefer: "return=minimal",
	}, nil)
}

// UpdateSession sets a session's end time.
func (c *Client) UpdateSession(ctx context.Context, row models.SessionRow) error {
	return c.patch(ctx, sessionsTable, url.Values{"id": {eq(row.ID)}},
		map[string]any{"end_time": row.EndTime}, row.ID)
}

// OpenSessions returns unfinished sessions of the given workouts, newest first.
func (c *Client) OpenSessions(ctx context.Context, workoutIDs []uuid.UUID) ([]models.SessionRow, error) {
	if len(workoutIDs) == 0 {
		return nil, nil
	}
	var rows []models.SessionRow
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  sessionsTable,
		params: url.Values{
			"workout_id": {in(workoutIDs)},
			"end_time":   {"is.null"},
			"order":      {"start_time.desc"},
		},
	}, &rows)
	return rows, err
}

// GetOrCreateUser upserts a user by login and returns its id.
func (c *Client) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	body := map[string]any{"login": login, "last_seen": c.now().UTC()}
	if displayName != "" {
		body["display_name"] = displayName
	}
	var rows []struct {
		ID int `json:"id"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		table:  usersTable,
		params: url.Values{"on_conflict": {"login"}},
		body:   []map[string]any{body},
		prefer: "resolution=merge-duplicates,return=representation",
	}, &rows)
	if err != nil {
		return 0, fmt.Errorf("upserting user %q: %w", login, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("upserting user %q: empty response", login)
	}
	return rows[0].ID, nil
}
